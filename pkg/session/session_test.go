package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noesislabs/noesis-bridge/pkg/journal"
	"github.com/noesislabs/noesis-bridge/pkg/log"
	"github.com/noesislabs/noesis-bridge/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel, JSONOutput: true, Output: os.Stderr})
	os.Exit(m.Run())
}

func testConfig(dial DialFunc) Config {
	return Config{
		Addr:          "test:2860",
		Username:      "Noesis",
		Password:      "secret",
		RunID:         "run-test",
		Ingest:        true,
		ReadTimeout:   10 * time.Millisecond,
		BannerWindow:  40 * time.Millisecond,
		LoginWindow:   40 * time.Millisecond,
		KeepaliveIdle: time.Hour,
		Dial:          dial,
	}
}

func dialerFor(conn net.Conn) DialFunc {
	return func(ctx context.Context, addr string) (net.Conn, error) {
		return conn, nil
	}
}

// serverScript drives the far end of a net.Pipe like a MUX would:
// banner, login exchange, who reply, then telemetry lines, then close.
type serverScript struct {
	rejectLogin bool
	lines       []string
	linger      bool
}

func runServer(t *testing.T, conn net.Conn, sc serverScript) {
	t.Helper()
	go func() {
		defer conn.Close()
		br := bufio.NewReader(conn)

		conn.Write([]byte("Welcome to TestMUX\r\n"))

		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		if !strings.HasPrefix(line, "connect ") {
			return
		}

		if sc.rejectLogin {
			conn.Write([]byte("Either that player does not exist, or has a different password.\r\n"))
			// linger so the session can finish its login window
			br.ReadString('\n') //nolint:errcheck
			return
		}
		conn.Write([]byte("Connected.\r\n"))

		if _, err := br.ReadString('\n'); err != nil { // who probe
			return
		}
		conn.Write([]byte("Players online: 1\r\n"))

		// let the post-login collect window expire so telemetry is
		// seen by the ready loop, not swallowed as the who reply
		time.Sleep(150 * time.Millisecond)

		for _, l := range sc.lines {
			conn.Write([]byte(l + "\r\n"))
		}
		if sc.linger {
			// hold the connection open until the session closes it
			br.ReadString('\n') //nolint:errcheck
		}
	}()
}

func readJournal(t *testing.T, outDir string) []*types.Event {
	t.Helper()
	path := journal.Path(outDir, types.DayUTC(time.Now()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var events []*types.Event
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		ev := &types.Event{}
		require.NoError(t, json.Unmarshal([]byte(line), ev))
		events = append(events, ev)
	}
	return events
}

// TestRunIngestsTelemetry tests the full pipeline: login, parse, write
func TestRunIngestsTelemetry(t *testing.T) {
	dir := t.TempDir()
	client, server := net.Pipe()
	runServer(t, server, serverScript{
		lines: []string{
			"The wind howls outside.",
			"NOESIS: t=SAY|actor=#1|loc=#2|raw=hello",
			"NOESIS: t=SAY|actor=#1|raw=missing loc",
			"NOESIS: t=MOVE|actor=#1|from=#2|to=#3",
		},
	})

	counters := NewCounters()
	writer := journal.NewWriter(dir)
	defer writer.Close()

	sess := New(testConfig(dialerFor(client)), counters, writer)
	err := sess.Run(context.Background())
	require.Error(t, err, "peer close must surface as an error")

	events := readJournal(t, dir)
	require.Len(t, events, 2)

	assert.Equal(t, uint64(1), events[0].Seq)
	assert.Equal(t, types.EventSay, events[0].Type)
	assert.Equal(t, "hello", events[0].Content["raw"])

	// the dropped SAY must not have consumed a sequence number
	assert.Equal(t, uint64(2), events[1].Seq)
	assert.Equal(t, types.EventMove, events[1].Type)

	assert.Equal(t, uint64(2), counters.EventsWritten())
	assert.False(t, counters.Connected())
}

// TestRunLoginRejected tests the explicit auth failure path
func TestRunLoginRejected(t *testing.T) {
	client, server := net.Pipe()
	runServer(t, server, serverScript{rejectLogin: true})

	counters := NewCounters()
	sess := New(testConfig(dialerFor(client)), counters, nil)

	err := sess.Run(context.Background())
	assert.ErrorIs(t, err, ErrAuthRejected)
	assert.Zero(t, sess.ReadyFor(), "a rejected session never reaches Ready")
}

// TestRunSeqContinuesAcrossSessions tests that a reconnect within one run
// keeps seq strictly increasing with no duplicate and no reset
func TestRunSeqContinuesAcrossSessions(t *testing.T) {
	dir := t.TempDir()
	counters := NewCounters()

	run := func(lines []string) {
		client, server := net.Pipe()
		runServer(t, server, serverScript{lines: lines})

		writer := journal.NewWriter(dir)
		defer writer.Close()

		sess := New(testConfig(dialerFor(client)), counters, writer)
		require.Error(t, sess.Run(context.Background()))
	}

	run([]string{
		"NOESIS: t=SAY|actor=#1|loc=#2|raw=first",
		"NOESIS: t=SAY|actor=#1|loc=#2|raw=second",
	})
	run([]string{
		"NOESIS: t=SAY|actor=#1|loc=#2|raw=after reconnect",
	})

	events := readJournal(t, dir)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(i+1), ev.Seq)
		assert.Equal(t, "run-test", ev.RunID)
	}
}

// TestRunContextCancel tests orderly shutdown between frames
func TestRunContextCancel(t *testing.T) {
	client, server := net.Pipe()
	runServer(t, server, serverScript{linger: true})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	counters := NewCounters()
	sess := New(testConfig(dialerFor(client)), counters, nil)

	err := sess.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, counters.Connected())
}

// TestKeepaliveSentWhenIdle tests that a Ready session idle past the
// threshold sends the no-op keepalive command
func TestKeepaliveSentWhenIdle(t *testing.T) {
	client, server := net.Pipe()

	gotPing := make(chan struct{})
	go func() {
		defer server.Close()
		br := bufio.NewReader(server)

		server.Write([]byte("Welcome to TestMUX\r\n"))
		if _, err := br.ReadString('\n'); err != nil { // connect
			return
		}
		server.Write([]byte("Connected.\r\n"))
		if _, err := br.ReadString('\n'); err != nil { // who probe
			return
		}
		server.Write([]byte("Players online: 1\r\n"))

		pinged := false
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				return
			}
			if !pinged && strings.TrimSpace(line) == keepaliveCommand {
				pinged = true
				close(gotPing)
			}
		}
	}()

	cfg := testConfig(dialerFor(client))
	cfg.Ingest = false
	cfg.KeepaliveIdle = 60 * time.Millisecond
	cfg.KeepaliveTick = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := New(cfg, NewCounters(), nil)
	done := make(chan error, 1)
	go func() { done <- sess.Run(ctx) }()

	select {
	case <-gotPing:
	case <-time.After(2 * time.Second):
		t.Fatal("no keepalive arrived while the session idled")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

// pingDropConn fails keepalive writes while passing everything else
// through, so the link stays usable around the failing sends.
type pingDropConn struct {
	net.Conn
}

func (c *pingDropConn) Write(p []byte) (int, error) {
	if strings.HasPrefix(string(p), keepaliveCommand) {
		return 0, errors.New("short write")
	}
	return c.Conn.Write(p)
}

// TestKeepaliveFailureDoesNotEndSession tests that failed keepalive
// sends are logged only: the session stays Ready and keeps ingesting
func TestKeepaliveFailureDoesNotEndSession(t *testing.T) {
	dir := t.TempDir()
	client, server := net.Pipe()

	go func() {
		defer server.Close()
		br := bufio.NewReader(server)

		server.Write([]byte("Welcome to TestMUX\r\n"))
		if _, err := br.ReadString('\n'); err != nil { // connect
			return
		}
		server.Write([]byte("Connected.\r\n"))
		if _, err := br.ReadString('\n'); err != nil { // who probe
			return
		}
		server.Write([]byte("Players online: 1\r\n"))

		// idle long enough for several keepalive attempts to fail
		time.Sleep(150 * time.Millisecond)
		server.Write([]byte("NOESIS: t=SAY|actor=#1|loc=#2|raw=still here\r\n"))
	}()

	cfg := testConfig(dialerFor(&pingDropConn{Conn: client}))
	cfg.KeepaliveIdle = 20 * time.Millisecond
	cfg.KeepaliveTick = 10 * time.Millisecond

	counters := NewCounters()
	writer := journal.NewWriter(dir)
	defer writer.Close()

	sess := New(cfg, counters, writer)
	require.Error(t, sess.Run(context.Background()))

	events := readJournal(t, dir)
	require.Len(t, events, 1)
	assert.Equal(t, "still here", events[0].Content["raw"])
}

// TestConsumeCarriesPartialLines tests reassembly of lines split across
// frames
func TestConsumeCarriesPartialLines(t *testing.T) {
	dir := t.TempDir()
	writer := journal.NewWriter(dir)
	defer writer.Close()

	counters := NewCounters()
	sess := New(testConfig(nil), counters, writer)

	require.NoError(t, sess.consume("NOESIS: t=SAY|actor=#1|loc=#2|raw=he"))
	assert.Equal(t, uint64(0), counters.Seq(), "no event before the newline arrives")

	require.NoError(t, sess.consume("llo\nleftover"))
	assert.Equal(t, uint64(1), counters.Seq())

	events := readJournal(t, dir)
	require.Len(t, events, 1)
	assert.Equal(t, "hello", events[0].Content["raw"])
}

// TestPassiveModeWritesNothing tests that passive mode still sees lines
// through the hook but never touches the journal
func TestPassiveModeWritesNothing(t *testing.T) {
	var hooked []string

	cfg := testConfig(nil)
	cfg.Ingest = false
	cfg.LineHook = func(line string) { hooked = append(hooked, line) }

	counters := NewCounters()
	sess := New(cfg, counters, nil)

	require.NoError(t, sess.consume("NOESIS: t=SAY|actor=#1|loc=#2|raw=hi\nplain text\n"))

	assert.Equal(t, []string{"NOESIS: t=SAY|actor=#1|loc=#2|raw=hi", "plain text"}, hooked)
	assert.Zero(t, counters.Seq())
	assert.Zero(t, counters.EventsWritten())
}

// TestCountersSnapshot tests the heartbeat view of the counters
func TestCountersSnapshot(t *testing.T) {
	c := NewCounters()

	hb := c.Snapshot("run-x")
	assert.Equal(t, "run-x", hb.RunID)
	assert.False(t, hb.Connected)
	assert.Empty(t, hb.LastRxUTC)
	assert.Empty(t, hb.LastWriteUTC)
	assert.Zero(t, hb.EventsWritten)

	c.setConnected(true)
	c.markReceive(time.Now())
	c.markWrite(time.Now())

	hb = c.Snapshot("run-x")
	assert.True(t, hb.Connected)
	assert.NotEmpty(t, hb.LastRxUTC)
	assert.NotEmpty(t, hb.LastWriteUTC)
	assert.Equal(t, uint64(1), hb.EventsWritten)
}
