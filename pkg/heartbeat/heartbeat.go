package heartbeat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/noesislabs/noesis-bridge/pkg/log"
)

// DefaultInterval is how often a snapshot is emitted.
const DefaultInterval = 30 * time.Second

// SnapshotFunc produces the current liveness record. It must be cheap and
// safe to call from the reporter goroutine while the session runs.
type SnapshotFunc func() any

// Reporter periodically writes a full-replace liveness snapshot to a fixed
// path. Each emission supersedes the previous one; a failed emission is
// logged and skipped, never escalated.
type Reporter struct {
	path     string
	interval time.Duration
	snapshot SnapshotFunc
	logger   zerolog.Logger

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewReporter creates a reporter writing snapshots from fn to path.
func NewReporter(path string, interval time.Duration, fn SnapshotFunc) *Reporter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Reporter{
		path:     path,
		interval: interval,
		snapshot: fn,
		logger:   log.WithComponent("heartbeat"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the emission loop. The first snapshot is written
// immediately so monitoring sees the process as soon as it is up.
func (r *Reporter) Start() {
	go r.run()
}

// Stop halts the emission loop and waits for it to finish.
func (r *Reporter) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *Reporter) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.emit()
	for {
		select {
		case <-ticker.C:
			r.emit()
		case <-r.stopCh:
			return
		}
	}
}

func (r *Reporter) emit() {
	if err := WriteAtomic(r.path, r.snapshot()); err != nil {
		r.logger.Warn().Err(err).Str("path", r.path).Msg("heartbeat write failed")
		return
	}
	r.logger.Debug().Str("path", r.path).Msg("heartbeat written")
}

// WriteAtomic marshals payload as JSON and replaces path in one rename so
// a concurrent reader never observes a partially written file.
func WriteAtomic(path string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
