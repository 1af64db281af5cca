package preflight

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"
)

// minFreeBytes is the free space below which the library check warns.
const minFreeBytes = 512 << 20

// CheckFreeSpace reports the space available to unprivileged writers on the
// filesystem holding path. Less than min is a warning, not a failure.
func CheckFreeSpace(name, path string, min uint64) Result {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := st.Bavail * uint64(st.Bsize)
	detail := humanize.IBytes(free) + " available"
	if free < min {
		return Result{Name: name, Passed: true, Warn: true, Detail: fmt.Sprintf("%s, below %s", detail, humanize.IBytes(min))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}
