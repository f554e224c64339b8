package heartbeat

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noesislabs/noesis-bridge/pkg/log"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: os.Stderr})
	os.Exit(m.Run())
}

// TestWriteAtomicReplaces tests that each write fully supersedes the
// previous snapshot and no temp file is left behind
func TestWriteAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hb.json")

	require.NoError(t, WriteAtomic(path, map[string]any{"n": 1, "old_field": true}))
	require.NoError(t, WriteAtomic(path, map[string]any{"n": 2}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	snap := map[string]any{}
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, float64(2), snap["n"])
	assert.NotContains(t, snap, "old_field", "stale fields must not survive a replace")

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

// TestWriteAtomicNeverPartial tests that a reader polling the file only
// ever sees complete JSON while writes are in flight
func TestWriteAtomicNeverPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hb.json")
	payload := map[string]any{"filler": string(make([]byte, 4096))}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			WriteAtomic(path, payload) //nolint:errcheck
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue // not written yet
		}
		assert.True(t, json.Valid(data), "reader must never observe partial JSON")
	}
}

// TestReporterEmitsImmediately tests that the first snapshot appears
// without waiting a full interval
func TestReporterEmitsImmediately(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hb.json")

	rep := NewReporter(path, time.Hour, func() any {
		return map[string]any{"alive": true}
	})
	rep.Start()
	defer rep.Stop()

	require.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, time.Second, 10*time.Millisecond)
}

// TestReporterLatestWins tests consecutive emissions
func TestReporterLatestWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hb.json")

	n := 0
	rep := NewReporter(path, 20*time.Millisecond, func() any {
		n++
		return map[string]any{"n": n}
	})
	rep.Start()

	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		snap := map[string]int{}
		if json.Unmarshal(data, &snap) != nil {
			return false
		}
		return snap["n"] >= 2
	}, time.Second, 5*time.Millisecond)

	rep.Stop()
}
