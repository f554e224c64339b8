package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/noesislabs/noesis-bridge/pkg/config"
	"github.com/noesislabs/noesis-bridge/pkg/heartbeat"
	"github.com/noesislabs/noesis-bridge/pkg/journal"
	"github.com/noesislabs/noesis-bridge/pkg/log"
	"github.com/noesislabs/noesis-bridge/pkg/metrics"
	"github.com/noesislabs/noesis-bridge/pkg/session"
	"github.com/noesislabs/noesis-bridge/pkg/types"
)

const (
	initialBackoff    = 1 * time.Second
	backoffMultiplier = 1.7
	maxBackoff        = 30 * time.Second

	// readyResetAfter is how long a session must hold Ready for the next
	// failure to be considered fresh (backoff returns to initial).
	readyResetAfter = 60 * time.Second

	heartbeatFile = "bridge.heartbeat.json"
)

// Runner is the top-level retry loop. It owns everything with run scope:
// the run_id, the counters, the run metadata file, and the heartbeat
// reporter. Sessions come and go underneath it.
type Runner struct {
	cfg     *config.Config
	version string
	logger  zerolog.Logger

	runID    string
	counters *session.Counters
}

// NewRunner creates a run driver for one process run.
func NewRunner(cfg *config.Config, version string) *Runner {
	runID := newRunID()
	return &Runner{
		cfg:      cfg,
		version:  version,
		logger:   log.WithRunID(runID).With().Str("component", "bridge").Logger(),
		runID:    runID,
		counters: session.NewCounters(),
	}
}

// RunID returns this run's identifier.
func (r *Runner) RunID() string {
	return r.runID
}

// Run executes the bridge until ctx is cancelled. Sessions are rebuilt
// with exponential backoff after every failure; the process never exits
// on its own.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info().
		Str("mode", string(r.cfg.Mode.Name)).
		Msg("bridge starting")

	if err := r.writeRunMeta(); err != nil {
		return err
	}

	hb := heartbeat.NewReporter(
		filepath.Join(r.cfg.Output.OutDir, heartbeatFile),
		heartbeat.DefaultInterval,
		func() any { return r.counters.Snapshot(r.runID) },
	)
	hb.Start()
	defer hb.Stop()

	if addr := r.cfg.Metrics.Listen; addr != "" {
		errCh := metrics.Serve(addr)
		go func() {
			if err := <-errCh; err != nil {
				r.logger.Warn().Err(err).Str("addr", addr).Msg("metrics endpoint failed")
			}
		}()
		r.logger.Info().Str("addr", addr).Msg("metrics endpoint listening")
	}

	ingest := r.cfg.Mode.Name == config.ModeIngest
	if ingest {
		r.logger.Info().Msg("ingest mode: telemetry will be journaled")
	} else {
		r.logger.Info().Msg("passive mode: telemetry ignored")
	}

	backoff := initialBackoff
	for {
		if err := ctx.Err(); err != nil {
			r.logger.Info().Msg("bridge stopping")
			return nil
		}

		sess, writer := r.newSession(ingest)
		err := sess.Run(ctx)
		if writer != nil {
			writer.Close()
		}

		if ctx.Err() != nil {
			r.logger.Info().Msg("bridge stopping")
			return nil
		}

		if errors.Is(err, session.ErrAuthRejected) {
			// Credentials are static; a human has to fix them. Retry
			// anyway so the fix takes effect without a restart.
			r.logger.Error().Err(err).
				Str("user", r.cfg.Auth.Username).
				Msg("LOGIN REJECTED - check credentials")
		}

		backoff = resetAfterReady(sess.ReadyFor(), backoff)

		r.logger.Warn().Err(err).Dur("backoff", backoff).Msg("session down, retrying")
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			r.logger.Info().Msg("bridge stopping")
			return nil
		}
		backoff = nextBackoff(backoff)
	}
}

func (r *Runner) newSession(ingest bool) (*session.Session, *journal.Writer) {
	var writer *journal.Writer
	if ingest {
		writer = journal.NewWriter(r.cfg.Output.OutDir)
	}
	sess := session.New(session.Config{
		Addr:     r.cfg.Addr(),
		Username: r.cfg.Auth.Username,
		Password: r.cfg.Auth.Password,
		RunID:    r.runID,
		Ingest:   ingest,
	}, r.counters, writer)
	return sess, writer
}

// writeRunMeta persists the immutable per-run metadata record.
func (r *Runner) writeRunMeta() error {
	meta := types.RunMeta{
		RunID:        r.runID,
		StartedAtUTC: time.Now().UTC().Format(time.RFC3339),
		Host:         r.cfg.Connection.Host,
		Port:         r.cfg.Connection.Port,
		PID:          os.Getpid(),
		Version:      r.version,
		AuthUser:     r.cfg.Auth.Username,
	}

	dir := filepath.Join(r.cfg.Output.OutDir, r.cfg.Output.MetaSubdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create meta directory: %w", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run meta: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.json", r.runID))
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write run meta: %w", err)
	}

	r.logger.Info().Str("path", path).Msg("run meta written")
	return nil
}

// newRunID builds an identifier that is unique across process runs and
// sortable by start time.
func newRunID() string {
	started := time.Now().UTC().Format("2006-01-02T15:04:05Z")
	return fmt.Sprintf("%s-%s", started, uuid.NewString()[:6])
}

func nextBackoff(cur time.Duration) time.Duration {
	next := time.Duration(float64(cur) * backoffMultiplier)
	if next > maxBackoff {
		next = maxBackoff
	}
	return next
}

// resetAfterReady returns the wait to apply after a session ends: a
// session that held Ready long enough starts the ladder over at the
// initial backoff, anything shorter keeps climbing.
func resetAfterReady(readyFor, cur time.Duration) time.Duration {
	if readyFor >= readyResetAfter {
		return initialBackoff
	}
	return cur
}
