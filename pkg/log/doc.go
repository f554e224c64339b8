/*
Package log provides structured logging for the Noesis bridge using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific and run-scoped child loggers and configurable log
levels. It also provides DailyFileWriter, a UTC-day-rotating file sink used
for the bridge's technical log.

# Architecture

	┌─────────────────── LOGGING SYSTEM ────────────────────┐
	│                                                         │
	│  ┌───────────────────────────────────────────┐         │
	│  │            Global Logger                   │         │
	│  │  - Zerolog instance                        │         │
	│  │  - Initialized via log.Init()              │         │
	│  │  - Thread-safe for concurrent use          │         │
	│  └──────────────────┬────────────────────────┘         │
	│                     │                                   │
	│  ┌──────────────────▼────────────────────────┐         │
	│  │            Log Output                      │         │
	│  │  - Console (human) or JSON                 │         │
	│  │  - io.MultiWriter(console, DailyFileWriter)│         │
	│  │    for the rotating technical log          │         │
	│  │    logs/bridge-YYYY-MM-DD.log              │         │
	│  └───────────────────────────────────────────┘         │
	└─────────────────────────────────────────────────────────┘

# Usage

Initializing the logger with a rotating daily file:

	daily := log.NewDailyFileWriter(logsDir, "bridge")
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     io.MultiWriter(os.Stdout, daily),
	})

Component loggers:

	sessLog := log.WithComponent("session")
	sessLog.Info().Str("host", host).Msg("connecting")

	runLog := log.WithRunID(runID)
	runLog.Warn().Err(err).Msg("keepalive send failed")

# Design Notes

DailyFileWriter never propagates write errors: a failing disk must not stop
console logging (io.MultiWriter aborts on the first sink error), and the
technical log is diagnostics, not data. Durability-critical output lives in
pkg/journal, not here.

# Integration Points

  - pkg/session: connection and login lifecycle logs
  - pkg/bridge: run driver and backoff logs
  - pkg/heartbeat, pkg/render: emission and follow logs
*/
package log
