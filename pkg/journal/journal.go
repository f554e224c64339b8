package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/noesislabs/noesis-bridge/pkg/types"
)

// Path returns the journal file location for a UTC day (YYYY-MM-DD):
//
//	<outDir>/events/<YYYY>/<YYYY-MM>/events-<YYYY-MM-DD>.jsonl
func Path(outDir, day string) string {
	year := day[:4]
	month := day[:7]
	return filepath.Join(outDir, "events", year, month, fmt.Sprintf("events-%s.jsonl", day))
}

// Writer appends telemetry events to the day-partitioned journal. It is a
// pure durability layer: it never re-reads, validates, or mutates event
// content. Each Append serializes one self-contained JSON line, writes it
// to the file for the current UTC day, and fsyncs before returning, so
// every record survives a crash the moment Append returns.
//
// The writer holds at most one open file; a day rollover closes the
// current file and opens the next transparently on the next write. It is
// not safe for concurrent callers; only the session's primary loop writes.
type Writer struct {
	outDir string

	day  string
	file *os.File
	path string

	now func() time.Time
}

// NewWriter creates a journal writer rooted at outDir.
func NewWriter(outDir string) *Writer {
	return &Writer{
		outDir: outDir,
		now:    time.Now,
	}
}

// Append writes one event as a single JSON line and forces it to stable
// storage. It returns the path of the file written. Any error here means
// durability can no longer be guaranteed and must be treated as fatal for
// the current run.
func (w *Writer) Append(ev *types.Event) (string, error) {
	day := types.DayUTC(w.now())
	if err := w.ensureOpen(day); err != nil {
		return "", err
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event seq=%d: %w", ev.Seq, err)
	}
	line = append(line, '\n')

	if _, err := w.file.Write(line); err != nil {
		return "", fmt.Errorf("failed to append event seq=%d to %s: %w", ev.Seq, w.path, err)
	}
	if err := w.file.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync %s: %w", w.path, err)
	}
	return w.path, nil
}

func (w *Writer) ensureOpen(day string) error {
	if w.file != nil && w.day == day {
		return nil
	}

	// day rollover (or first write)
	w.Close()

	path := Path(w.outDir, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}

	w.file = f
	w.day = day
	w.path = path
	return nil
}

// Close closes the currently open journal file, if any.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	w.day = ""
	w.path = ""
	return err
}
