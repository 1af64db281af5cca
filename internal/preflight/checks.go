package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"mediaorganizer/internal/stage"
)

// stageCheckTimeout bounds each stage health probe.
const stageCheckTimeout = 10 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckStages runs the health check of every stage that would execute.
// Stages whose precondition skips them pass with the skip reason.
func CheckStages(ctx context.Context, handlers []stage.Handler) []Result {
	var results []Result
	for _, h := range handlers {
		name := stage.Label(h.Name())
		if pre, ok := h.(stage.Preconditioner); ok {
			skip, reason, err := pre.Precondition(ctx)
			if err != nil {
				results = append(results, Result{Name: name, Detail: err.Error()})
				continue
			}
			if skip {
				results = append(results, Result{Name: name, Passed: true, Detail: "skipped: " + reason})
				continue
			}
		}
		checker, ok := h.(stage.HealthChecker)
		if !ok {
			continue
		}
		checkCtx, cancel := context.WithTimeout(ctx, stageCheckTimeout)
		health := checker.HealthCheck(checkCtx)
		cancel()
		if health.Ready {
			results = append(results, Result{Name: name, Passed: true, Detail: "ready"})
			continue
		}
		results = append(results, Result{Name: name, Detail: health.Detail})
	}
	return results
}

// SummarizeError produces a human-readable summary for endpoint failures.
func SummarizeError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (endpoint unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (endpoint unreachable)"
	}
	return err.Error()
}
