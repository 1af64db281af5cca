package testsupport

import (
	"context"
	"errors"
	"path/filepath"
	"sync"

	"mediaorganizer/internal/classify"
	"mediaorganizer/internal/services"
)

// FakeClassifier answers classification and unsafe-score requests from
// tables keyed by file base name. It is safe for concurrent use.
type FakeClassifier struct {
	// Labels returned per base name; Default is used for unknown names.
	Labels  map[string][]classify.Label
	Default []classify.Label
	// Scores per base name for UnsafeScore.
	Scores map[string]float64
	// FailOnce makes the first request for a base name fail transiently.
	FailOnce map[string]bool
	// Fail makes every request for a base name fail.
	Fail map[string]bool

	mu     sync.Mutex
	calls  map[string]int
	failed map[string]bool
	batch  int
}

func (f *FakeClassifier) record(path string) error {
	name := filepath.Base(path)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
		f.failed = make(map[string]bool)
	}
	f.calls[name]++
	if f.Fail[name] {
		return services.Wrap(services.ErrExternalTool, "classify", "request", name, errors.New("classifier rejected file"))
	}
	if f.FailOnce[name] && !f.failed[name] {
		f.failed[name] = true
		return services.Wrap(services.ErrTransient, "classify", "request", name, errors.New("connection reset"))
	}
	return nil
}

// Classify returns the configured labels for path.
func (f *FakeClassifier) Classify(_ context.Context, path string, _ []string) ([]classify.Label, error) {
	if err := f.record(path); err != nil {
		return nil, err
	}
	if labels, ok := f.Labels[filepath.Base(path)]; ok {
		return labels, nil
	}
	return f.Default, nil
}

// UnsafeScore returns the configured score for path.
func (f *FakeClassifier) UnsafeScore(_ context.Context, path string) (float64, error) {
	if err := f.record(path); err != nil {
		return 0, err
	}
	return f.Scores[filepath.Base(path)], nil
}

// Calls returns how many requests named the base name.
func (f *FakeClassifier) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// FakeBatchClassifier adds batch requests to FakeClassifier.
type FakeBatchClassifier struct {
	FakeClassifier
}

// ClassifyBatch answers each path in order and counts the request.
func (f *FakeBatchClassifier) ClassifyBatch(ctx context.Context, paths []string, labels []string) ([][]classify.Label, error) {
	f.mu.Lock()
	f.batch++
	f.mu.Unlock()
	out := make([][]classify.Label, 0, len(paths))
	for _, path := range paths {
		result, err := f.Classify(ctx, path, labels)
		if err != nil {
			return nil, err
		}
		out = append(out, result)
	}
	return out, nil
}

// Batches returns how many batch requests were made.
func (f *FakeBatchClassifier) Batches() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batch
}
