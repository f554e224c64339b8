package bridge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noesislabs/noesis-bridge/pkg/config"
	"github.com/noesislabs/noesis-bridge/pkg/log"
	"github.com/noesislabs/noesis-bridge/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: os.Stderr})
	os.Exit(m.Run())
}

// TestNextBackoff tests growth and cap
func TestNextBackoff(t *testing.T) {
	b := initialBackoff
	var seen []time.Duration
	for i := 0; i < 12; i++ {
		seen = append(seen, b)
		b = nextBackoff(b)
	}

	assert.Equal(t, initialBackoff, seen[0])
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1], "backoff never shrinks")
		assert.LessOrEqual(t, seen[i], maxBackoff)
	}
	assert.Equal(t, maxBackoff, seen[len(seen)-1], "backoff reaches the cap")
}

// TestResetAfterReady tests that sustained Ready operation restarts the
// backoff ladder while short-lived sessions keep climbing it
func TestResetAfterReady(t *testing.T) {
	climbed := nextBackoff(nextBackoff(initialBackoff))

	tests := []struct {
		name     string
		readyFor time.Duration
		cur      time.Duration
		expected time.Duration
	}{
		{"never ready keeps current", 0, climbed, climbed},
		{"short ready keeps current", readyResetAfter - time.Second, climbed, climbed},
		{"sustained ready resets", readyResetAfter, climbed, initialBackoff},
		{"long ready resets", 10 * readyResetAfter, maxBackoff, initialBackoff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resetAfterReady(tt.readyFor, tt.cur))
		})
	}
}

// TestNewRunID tests format and uniqueness across runs
func TestNewRunID(t *testing.T) {
	re := regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}Z-[0-9a-f]{6}$`)

	a := newRunID()
	b := newRunID()
	assert.Regexp(t, re, a)
	assert.Regexp(t, re, b)
	assert.NotEqual(t, a, b)
}

// TestWriteRunMeta tests the immutable per-run metadata record
func TestWriteRunMeta(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Connection: config.ConnectionConfig{Host: "mux.example.net", Port: 2860},
		Auth:       config.AuthConfig{Username: "Noesis", Password: "secret"},
		Output:     config.OutputConfig{OutDir: dir, MetaSubdir: "meta", LogsSubdir: "logs"},
		Mode:       config.ModeConfig{Name: config.ModeIngest},
	}

	r := NewRunner(cfg, "test-version")
	require.NoError(t, r.writeRunMeta())

	path := filepath.Join(dir, "meta", "run-"+r.RunID()+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	meta := types.RunMeta{}
	require.NoError(t, json.Unmarshal(data, &meta))
	assert.Equal(t, r.RunID(), meta.RunID)
	assert.Equal(t, "mux.example.net", meta.Host)
	assert.Equal(t, 2860, meta.Port)
	assert.Equal(t, os.Getpid(), meta.PID)
	assert.Equal(t, "test-version", meta.Version)
	assert.Equal(t, "Noesis", meta.AuthUser)
	assert.NotEmpty(t, meta.StartedAtUTC)
}
