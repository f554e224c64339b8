package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/noesislabs/noesis-bridge/pkg/heartbeat"
	"github.com/noesislabs/noesis-bridge/pkg/journal"
	"github.com/noesislabs/noesis-bridge/pkg/log"
	"github.com/noesislabs/noesis-bridge/pkg/types"
)

const (
	defaultPollMs     = 200
	waitForFileDelay  = 1 * time.Second
	heartbeatInterval = 30 * time.Second
	rendererHeartbeat = "renderer.heartbeat.json"
)

// Config is the renderer's own YAML configuration.
type Config struct {
	OutDir          string `yaml:"out_dir"`
	IdentityMapPath string `yaml:"identity_map_path"`
	TemplatesPath   string `yaml:"templates_path"`
	Language        string `yaml:"language"`
	FromStart       bool   `yaml:"from_start"`
	PollMs          int    `yaml:"poll_ms"`
	CursorPath      string `yaml:"cursor_path"`
}

// LoadConfig reads and validates the renderer config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if strings.TrimSpace(cfg.OutDir) == "" {
		return nil, fmt.Errorf("invalid config: out_dir must be a non-empty path")
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	if cfg.PollMs < 50 {
		cfg.PollMs = defaultPollMs
	}
	if cfg.CursorPath == "" {
		cfg.CursorPath = filepath.Join(cfg.OutDir, "renderer.cursor.db")
	}
	return cfg, nil
}

// Follower tails the current day's journal file and renders each event.
// It is a read-only consumer: it polls independently of the bridge and
// never touches the journal's write path.
type Follower struct {
	cfg      *Config
	renderer *Renderer
	cursor   *Cursor
	out      io.Writer
	logger   zerolog.Logger

	lastHeartbeat time.Time
	lastLine      time.Time
	linesRendered uint64
	day           string
}

// NewFollower wires a follower from its config. Identity map and
// templates are optional; missing files leave dbrefs unresolved and
// built-in templates in effect.
func NewFollower(cfg *Config, out io.Writer) (*Follower, error) {
	logger := log.WithComponent("render")

	tpl := Templates{}
	if cfg.TemplatesPath != "" {
		t, err := LoadTemplates(cfg.TemplatesPath)
		if err != nil {
			return nil, err
		}
		tpl = t
	}

	ids := IdentityMap{}
	if cfg.IdentityMapPath != "" {
		i, err := LoadIdentityMap(cfg.IdentityMapPath)
		if err != nil {
			return nil, err
		}
		ids = i
	}

	cursor, err := OpenCursor(cfg.CursorPath)
	if err != nil {
		return nil, err
	}

	return &Follower{
		cfg:      cfg,
		renderer: NewRenderer(cfg.Language, tpl, ids),
		cursor:   cursor,
		out:      out,
		logger:   logger,
	}, nil
}

// Close releases the cursor database.
func (f *Follower) Close() error {
	return f.cursor.Close()
}

// Follow runs until ctx is cancelled, switching journal files on UTC day
// rollover.
func (f *Follower) Follow(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		f.day = types.DayUTC(time.Now())
		path := journal.Path(f.cfg.OutDir, f.day)

		if err := f.waitForFile(ctx, path); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		f.logger.Info().Str("path", path).Msg("following journal")
		if err := f.followFile(ctx, path); err != nil {
			return err
		}
	}
}

// waitForFile polls until the day's journal exists, the day changes, or
// ctx is cancelled.
func (f *Follower) waitForFile(ctx context.Context, path string) error {
	for {
		if _, err := os.Stat(path); err == nil {
			return nil
		}
		f.maybeHeartbeat()

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(waitForFileDelay):
		}
		if types.DayUTC(time.Now()) != f.day {
			return nil
		}
	}
}

// followFile tails one journal file, rendering complete lines as they
// appear. The cursor only advances past complete lines, so a restart
// never re-renders or drops a record.
func (f *Follower) followFile(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open journal %s: %w", path, err)
	}
	defer file.Close()

	offset := f.startOffset(file, path)
	poll := time.Duration(f.cfg.PollMs) * time.Millisecond

	for {
		if ctx.Err() != nil {
			return nil
		}
		if types.DayUTC(time.Now()) != f.day {
			return nil
		}
		f.maybeHeartbeat()

		fi, err := file.Stat()
		if err != nil {
			return fmt.Errorf("failed to stat journal %s: %w", path, err)
		}
		if fi.Size() <= offset {
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poll):
			}
			continue
		}

		buf := make([]byte, fi.Size()-offset)
		n, _ := file.ReadAt(buf, offset)
		consumed := f.renderLines(buf[:n])
		if consumed == 0 {
			// partial line, wait for the rest
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(poll):
			}
			continue
		}

		offset += int64(consumed)
		if err := f.cursor.Put(path, offset); err != nil {
			f.logger.Warn().Err(err).Msg("cursor update failed")
		}
	}
}

// startOffset resumes from the stored cursor when one exists; otherwise
// it starts at the beginning or the end per from_start.
func (f *Follower) startOffset(file *os.File, path string) int64 {
	if off, ok := f.cursor.Get(path); ok {
		return off
	}
	if f.cfg.FromStart {
		return 0
	}
	fi, err := file.Stat()
	if err != nil {
		return 0
	}
	return fi.Size()
}

// renderLines processes every complete line in data and returns how many
// bytes were consumed. A trailing partial line is left for the next read.
func (f *Follower) renderLines(data []byte) int {
	consumed := 0
	for {
		idx := bytes.IndexByte(data[consumed:], '\n')
		if idx < 0 {
			return consumed
		}
		line := bytes.TrimSpace(data[consumed : consumed+idx])
		consumed += idx + 1
		if len(line) == 0 {
			continue
		}

		ev := &types.Event{}
		if err := json.Unmarshal(line, ev); err != nil {
			f.logger.Warn().Err(err).Str("line", truncate(string(line), 160)).Msg("bad journal line")
			continue
		}
		text, ok := f.renderer.Render(ev)
		if !ok {
			continue
		}
		fmt.Fprintln(f.out, text)
		f.linesRendered++
		f.lastLine = time.Now()
	}
}

// maybeHeartbeat emits the renderer's own liveness snapshot at most once
// per interval. Failures are logged only.
func (f *Follower) maybeHeartbeat() {
	if time.Since(f.lastHeartbeat) < heartbeatInterval {
		return
	}
	f.lastHeartbeat = time.Now()

	hb := map[string]any{
		"ts":             types.TimestampUTC(time.Now()),
		"pid":            os.Getpid(),
		"following_day":  f.day,
		"lines_rendered": f.linesRendered,
		"poll_ms":        f.cfg.PollMs,
	}
	if !f.lastLine.IsZero() {
		hb["last_line_utc"] = types.TimestampUTC(f.lastLine)
	}

	path := filepath.Join(f.cfg.OutDir, rendererHeartbeat)
	if err := heartbeat.WriteAtomic(path, hb); err != nil {
		f.logger.Warn().Err(err).Msg("renderer heartbeat failed")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
