package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DailyFileWriter is an io.Writer that appends to a technical log file
// named after the current UTC day (<prefix>-YYYY-MM-DD.log), rotating
// transparently when the day changes. It holds at most one open file.
//
// Write errors are swallowed: the technical log must never take down the
// process it is observing.
type DailyFileWriter struct {
	dir    string
	prefix string

	mu   sync.Mutex
	day  string
	file *os.File

	now func() time.Time
}

// NewDailyFileWriter creates a writer that rotates by UTC day under dir.
func NewDailyFileWriter(dir, prefix string) *DailyFileWriter {
	return &DailyFileWriter{
		dir:    dir,
		prefix: prefix,
		now:    time.Now,
	}
}

// Write appends p to the current day's log file, opening or rotating the
// file first if needed. It always reports full success so that an
// io.MultiWriter wrapping it keeps feeding the other sinks.
func (w *DailyFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.ensureOpen(); err != nil {
		return len(p), nil
	}
	w.file.Write(p) //nolint:errcheck
	return len(p), nil
}

func (w *DailyFileWriter) ensureOpen() error {
	day := w.now().UTC().Format("2006-01-02")
	if w.file != nil && w.day == day {
		return nil
	}
	if w.file != nil {
		w.file.Close()
		w.file = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(w.dir, fmt.Sprintf("%s-%s.log", w.prefix, day))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.day = day
	return nil
}

// Close closes the currently open file, if any.
func (w *DailyFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.day = ""
	return err
}
