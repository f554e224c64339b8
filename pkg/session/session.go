package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/noesislabs/noesis-bridge/pkg/journal"
	"github.com/noesislabs/noesis-bridge/pkg/log"
	"github.com/noesislabs/noesis-bridge/pkg/marker"
	"github.com/noesislabs/noesis-bridge/pkg/metrics"
	"github.com/noesislabs/noesis-bridge/pkg/telnet"
	"github.com/noesislabs/noesis-bridge/pkg/types"
)

// State is the session's position in the connect/login/reconnect cycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateLoggingIn    State = "logging_in"
	StateReady        State = "ready"
	StateDegraded     State = "degraded"
)

var (
	// ErrAuthRejected is returned when the server answers the login
	// command with the known rejection phrase. Credentials are static,
	// so this needs a human; the run driver still retries with backoff
	// but logs it loudly.
	ErrAuthRejected = errors.New("login rejected by server")

	// ErrPeerClosed is returned on a zero-length read from an
	// established connection.
	ErrPeerClosed = errors.New("connection closed by peer")
)

// loginRejectPhrase is the only signal TinyMUX gives about a failed
// login. There is no positive acknowledgement at all, so absence of this
// phrase within the login window is treated as success. That heuristic is
// deliberately weak; strengthening it needs a protocol change, not a
// smarter match.
const loginRejectPhrase = "Either that player does not exist"

const (
	defaultConnectTimeout = 10 * time.Second
	defaultReadTimeout    = 2 * time.Second
	defaultBannerWindow   = 2 * time.Second
	defaultLoginWindow    = 3 * time.Second
	defaultKeepaliveIdle  = 60 * time.Second
	defaultKeepaliveTick  = 5 * time.Second

	// keepaliveCommand is a server no-op; its only job is generating
	// traffic so the far end doesn't idle-disconnect us.
	keepaliveCommand = "+ping"

	recvBufferSize = 4096
)

// DialFunc opens the transport. Tests inject one returning an in-memory
// pipe; production uses net.Dialer.
type DialFunc func(ctx context.Context, addr string) (net.Conn, error)

// Config configures one Session.
type Config struct {
	Addr     string
	Username string
	Password string
	RunID    string

	// Ingest enables telemetry parsing and journal writes. When false
	// (passive mode) the session still logs in, keeps alive, and feeds
	// the heartbeat, but never touches the journal.
	Ingest bool

	// LineHook, when set, receives every decoded non-empty line. This is
	// the boundary for external line consumers (the chat responder);
	// the session itself never depends on what the hook does.
	LineHook func(line string)

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	BannerWindow   time.Duration
	LoginWindow    time.Duration
	KeepaliveIdle  time.Duration
	KeepaliveTick  time.Duration

	Dial DialFunc
}

func (c *Config) applyDefaults() {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = defaultReadTimeout
	}
	if c.BannerWindow <= 0 {
		c.BannerWindow = defaultBannerWindow
	}
	if c.LoginWindow <= 0 {
		c.LoginWindow = defaultLoginWindow
	}
	if c.KeepaliveIdle <= 0 {
		c.KeepaliveIdle = defaultKeepaliveIdle
	}
	if c.KeepaliveTick <= 0 {
		c.KeepaliveTick = defaultKeepaliveTick
	}
	if c.Dial == nil {
		c.Dial = func(ctx context.Context, addr string) (net.Conn, error) {
			d := &net.Dialer{Timeout: c.ConnectTimeout}
			return d.DialContext(ctx, "tcp", addr)
		}
	}
}

// Session owns the socket and drives the receive → decode → parse → write
// pipeline while Ready. One Session corresponds to one connection
// attempt; the run driver constructs a fresh Session after each failure,
// reusing the same Counters so seq and run_id carry across reconnects.
type Session struct {
	cfg      Config
	counters *Counters
	writer   *journal.Writer
	logger   zerolog.Logger

	// connMu guards conn for the keepalive goroutine, which issues
	// best-effort sends and must tolerate the socket being absent.
	connMu sync.Mutex
	conn   net.Conn

	state        State
	carry        string
	lastActivity atomic.Int64

	readyAt  time.Time
	readyFor time.Duration
}

// New creates a session. The writer may be nil only in passive mode.
func New(cfg Config, counters *Counters, writer *journal.Writer) *Session {
	cfg.applyDefaults()
	return &Session{
		cfg:      cfg,
		counters: counters,
		writer:   writer,
		logger:   log.WithComponent("session"),
		state:    StateDisconnected,
	}
}

// State returns the current state. It is only meaningful from the
// goroutine running the session; observers should use Counters.
func (s *Session) State() State {
	return s.state
}

// ReadyFor reports how long the session spent in Ready before Run
// returned. The run driver uses it to decide whether to reset backoff.
func (s *Session) ReadyFor() time.Duration {
	return s.readyFor
}

// Run drives the session through its states until the connection fails or
// ctx is cancelled. It always returns a non-nil error: either the failure
// that degraded the session, or ctx.Err().
//
// No event-processing error is allowed to stop the process; a panic while
// Ready is converted into a degraded-session error so the run driver can
// reconnect. Only journal durability failures are deliberately fatal for
// the run, and even those restart the session rather than crash.
func (s *Session) Run(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("session panic: %v", p)
		}
		s.degrade(err)
	}()

	s.transition(StateConnecting)
	metrics.ReconnectsTotal.Inc()
	if err := s.connect(ctx); err != nil {
		return err
	}

	s.transition(StateLoggingIn)
	if err := s.login(ctx); err != nil {
		return err
	}

	s.transition(StateReady)
	s.readyAt = time.Now()
	s.counters.setConnected(true)
	metrics.Connected.Set(1)

	kaCtx, kaCancel := context.WithCancel(ctx)
	defer kaCancel()
	go s.keepaliveLoop(kaCtx)

	return s.readLoop(ctx)
}

func (s *Session) transition(to State) {
	s.logger.Info().
		Str("from", string(s.state)).
		Str("to", string(to)).
		Str("run_id", s.cfg.RunID).
		Msg("state transition")
	s.state = to
}

// degrade records the Ready duration, tears down the socket, and moves
// the machine back to Disconnected. Degraded is transient by design: the
// session never lingers there, it surfaces the error to the run driver.
func (s *Session) degrade(err error) {
	if s.state == StateReady {
		s.readyFor = time.Since(s.readyAt)
		s.transition(StateDegraded)
	}
	s.counters.setConnected(false)
	metrics.Connected.Set(0)
	s.closeConn()
	if s.state != StateDisconnected {
		s.transition(StateDisconnected)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn().Err(err).Msg("session ended")
	}
}

func (s *Session) connect(ctx context.Context) error {
	s.logger.Info().Str("addr", s.cfg.Addr).Msg("connecting")

	conn, err := s.cfg.Dial(ctx, s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.cfg.Addr, err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	s.carry = ""
	s.touch()

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("connected")
	return nil
}

// login drains the MOTD banner, sends the connect command, and watches
// the response window for the rejection phrase. See loginRejectPhrase for
// why no positive confirmation is required.
func (s *Session) login(ctx context.Context) error {
	banner, err := s.collectFor(ctx, s.cfg.BannerWindow)
	if err != nil {
		return fmt.Errorf("failed reading login banner: %w", err)
	}
	if strings.TrimSpace(banner) != "" {
		s.logger.Debug().Int("bytes", len(banner)).Msg("banner received")
	}

	s.logger.Info().Str("user", s.cfg.Username).Msg("logging in")
	if err := s.sendLine(fmt.Sprintf("connect %s %s", s.cfg.Username, s.cfg.Password)); err != nil {
		return fmt.Errorf("failed to send login: %w", err)
	}

	resp, err := s.collectFor(ctx, s.cfg.LoginWindow)
	if strings.Contains(resp, loginRejectPhrase) {
		metrics.AuthFailuresTotal.Inc()
		return ErrAuthRejected
	}
	if err != nil {
		return fmt.Errorf("failed reading login response: %w", err)
	}
	s.logger.Info().Msg("login response received (ok)")

	// status probe; the reply is log evidence only, never a gate
	if err := s.sendLine("who"); err != nil {
		return fmt.Errorf("failed to send who: %w", err)
	}
	if who, err := s.collectFor(ctx, s.cfg.BannerWindow); err == nil && strings.TrimSpace(who) != "" {
		s.logger.Debug().Msg("who reply received")
	}
	return nil
}

// collectFor accumulates decoded text for a fixed window. Read timeouts
// inside the window are expected and ignored; real errors abort.
func (s *Session) collectFor(ctx context.Context, window time.Duration) (string, error) {
	var sb strings.Builder
	deadline := time.Now().Add(window)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return sb.String(), err
		}
		chunk, err := s.recvSome()
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
	return sb.String(), nil
}

// readLoop is the primary pipeline: receive, decode, split lines, parse,
// write. It only returns on error or cancellation.
func (s *Session) readLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		chunk, err := s.recvSome()
		if err != nil {
			return err
		}
		if chunk == "" {
			continue
		}
		if err := s.consume(chunk); err != nil {
			return err
		}
	}
}

// recvSome performs one bounded read and decodes the frame. A read
// timeout returns ("", nil) so the caller can check for cancellation;
// that short deadline is what keeps the loop responsive without
// asynchronous I/O.
func (s *Session) recvSome() (string, error) {
	conn := s.currentConn()
	if conn == nil {
		return "", ErrPeerClosed
	}

	if err := conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		return "", fmt.Errorf("failed to set read deadline: %w", err)
	}

	buf := make([]byte, recvBufferSize)
	n, err := conn.Read(buf)
	if n > 0 {
		metrics.BytesReceivedTotal.Add(float64(n))
		s.counters.markReceive(time.Now())
		s.touch()
		return telnet.Decode(buf[:n]), nil
	}
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return "", nil
		}
		return "", fmt.Errorf("receive failed: %w", err)
	}
	return "", ErrPeerClosed
}

// consume splits buffered text into lines and processes each complete
// one, carrying any trailing partial line to the next frame. The only
// error it can return is a journal durability failure.
func (s *Session) consume(chunk string) error {
	s.carry += strings.ReplaceAll(chunk, "\r", "\n")

	for {
		idx := strings.IndexByte(s.carry, '\n')
		if idx < 0 {
			return nil
		}
		line := strings.TrimSpace(s.carry[:idx])
		s.carry = s.carry[idx+1:]
		if line == "" {
			continue
		}
		if err := s.handleLine(line); err != nil {
			return err
		}
	}
}

func (s *Session) handleLine(line string) error {
	metrics.LinesTotal.Inc()

	if s.cfg.LineHook != nil {
		s.cfg.LineHook(line)
	}
	if !s.cfg.Ingest {
		return nil
	}

	fields, rej := marker.ParseLine(line)
	if rej != marker.RejectNone {
		if rej != marker.RejectBadPrefix {
			// Marker line that didn't decode: worth a counter, but
			// ordinary game text (bad_prefix) is not a drop.
			metrics.EventsDroppedTotal.WithLabelValues(string(rej)).Inc()
			s.logger.Debug().Str("reason", string(rej)).Str("line", line).Msg("marker line dropped")
		}
		return nil
	}

	ev, rej := marker.Build(fields)
	if rej != marker.RejectNone {
		metrics.EventsDroppedTotal.WithLabelValues(string(rej)).Inc()
		s.logger.Info().Str("reason", string(rej)).Str("line", line).Msg("event dropped")
		return nil
	}

	// The event is valid: only now does it consume a sequence number.
	ev.Seq = s.counters.NextSeq()
	ev.RunID = s.cfg.RunID
	ev.TsUTC = types.TimestampUTC(time.Now())

	start := time.Now()
	path, err := s.writer.Append(ev)
	if err != nil {
		// Durability failure: no silent data loss. This degrades the
		// session and the run driver rebuilds everything, writer
		// included, rather than continuing with a broken journal.
		return fmt.Errorf("journal append failed: %w", err)
	}
	metrics.WriteDuration.Observe(time.Since(start).Seconds())
	metrics.EventsWrittenTotal.WithLabelValues(string(ev.Type)).Inc()
	s.counters.markWrite(time.Now())

	s.logger.Info().
		Str("type", string(ev.Type)).
		Uint64("seq", ev.Seq).
		Str("actor", ev.Actor.DBRef).
		Str("loc", ev.Location.DBRef).
		Str("file", path).
		Msg("event written")
	return nil
}

// keepaliveLoop sends a no-op command whenever the link has been idle
// longer than the configured threshold. Send failures are logged only;
// a genuinely dead socket surfaces through the primary loop's next read.
func (s *Session) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.KeepaliveTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			idle := time.Since(time.UnixMilli(s.lastActivity.Load()))
			if idle < s.cfg.KeepaliveIdle {
				continue
			}
			if err := s.sendLine(keepaliveCommand); err != nil {
				s.logger.Warn().Err(err).Msg("keepalive send failed")
				continue
			}
			metrics.KeepalivesTotal.Inc()
			s.logger.Debug().Dur("idle", idle).Msg("keepalive sent")
		}
	}
}

// sendLine writes one newline-terminated command. With no socket present
// (mid-reconnect) it is a no-op returning nil, per the shared-resource
// policy for the timer goroutines.
func (s *Session) sendLine(line string) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()

	if conn == nil {
		return nil
	}
	if _, err := conn.Write([]byte(line + "\n")); err != nil {
		return fmt.Errorf("failed to send %q: %w", line, err)
	}
	s.touch()
	return nil
}

func (s *Session) currentConn() net.Conn {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.conn
}

func (s *Session) closeConn() {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixMilli())
}
