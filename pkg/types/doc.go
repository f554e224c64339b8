/*
Package types defines the shared data model for the Noesis bridge.

The types package contains the record shapes exchanged between the bridge's
components and persisted to disk: telemetry events, run metadata, and
heartbeat snapshots. It has no behavior beyond timestamp formatting helpers
and depends only on the standard library, so every other package can import
it without cycles.

# Core Types

Event:
  - One telemetry record, serialized as a single JSON line in the journal
  - ts_utc: ISO-8601 UTC, millisecond precision
  - run_id: stable across reconnects within one process run
  - seq: monotonically increasing within a run, starting at 1, no gaps
  - type: event kind discriminator (SAY, MOVE, ...)
  - actor/location: dbref + display name identity references
  - content: kind-specific payload (raw text, verb, from/to)
  - perception: visibility metadata, carried through opaquely

RunMeta:
  - One record per process run, written once at startup
  - Identifies host, port, pid, start time, and run_id

HeartbeatSnapshot:
  - Mutable liveness record, fully replaced on every emission
  - Connectivity flag, last-receive/last-write timestamps, event count

# Invariants

A sequence number is assigned only after an event passes kind validation;
input that is dropped never consumes a number. Events are written in
strictly increasing seq order within a run_id.

# Integration Points

This package is used by:

  - pkg/marker: constructs Event values from parsed marker lines
  - pkg/journal: serializes Event values to the day-partitioned log
  - pkg/heartbeat: serializes HeartbeatSnapshot
  - pkg/bridge: writes RunMeta at startup
  - pkg/render: decodes Event values back from the journal
*/
package types
