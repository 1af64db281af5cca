package taglog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"mediaorganizer/internal/services"
)

// Mode selects how Open treats an existing file.
type Mode int

const (
	// Truncate starts a fresh file with a header.
	Truncate Mode = iota
	// Append keeps existing rows; the header is written only to a new or empty file.
	Append
)

// Writer appends delimited rows to a log file. It is safe for concurrent use.
type Writer struct {
	mu   sync.Mutex
	path string
	file *os.File
	csv  *csv.Writer
	rows int
}

// Open prepares a log writer.
func Open(path string, header []string, comma rune, mode Mode) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrWriteFailed, "log", "ensure directory", path, err)
	}

	writeHeader := true
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if mode == Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			writeHeader = false
		}
	}
	file, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, services.Wrap(services.ErrWriteFailed, "log", "open", path, err)
	}

	w := &Writer{path: path, file: file, csv: csv.NewWriter(file)}
	w.csv.Comma = comma
	if writeHeader {
		if err := w.csv.Write(header); err != nil {
			_ = file.Close()
			return nil, services.Wrap(services.ErrWriteFailed, "log", "write header", path, err)
		}
		if err := w.flushLocked(); err != nil {
			_ = file.Close()
			return nil, err
		}
	}
	return w, nil
}

// Path returns the log file path.
func (w *Writer) Path() string { return w.path }

// Rows returns the number of rows written since Open, excluding the header.
func (w *Writer) Rows() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rows
}

// Write buffers one row.
func (w *Writer) Write(record []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return services.Wrap(services.ErrWriteFailed, "log", "write", w.path+": writer closed", nil)
	}
	if err := w.csv.Write(record); err != nil {
		return services.Wrap(services.ErrWriteFailed, "log", "write", w.path, err)
	}
	w.rows++
	return nil
}

// Flush writes buffered rows and syncs the file.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return services.Wrap(services.ErrWriteFailed, "log", "flush", w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		return services.Wrap(services.ErrWriteFailed, "log", "sync", w.path, err)
	}
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	flushErr := w.flushLocked()
	closeErr := w.file.Close()
	w.file = nil
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", w.path, closeErr)
	}
	return nil
}
