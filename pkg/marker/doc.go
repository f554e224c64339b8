/*
Package marker decodes the in-band NOESIS marker protocol.

The MUX world embeds structured telemetry inside otherwise free-form game
text: a line of the form

	NOESIS: t=SAY|actor=#12|loc=#7|raw=hello|verb=says

carries one event. The prefix is case-insensitive and the colon optional;
fields are pipe-separated, each split on the first `=` with both sides
whitespace-trimmed.

# Pipeline

Parsing is decode-then-validate:

	ParseLine(line) → Fields   (or a Reject reason)
	Build(fields)   → *types.Event (or a Reject reason)

Both stages are pure functions. A malformed field (no `=`) is dropped
silently without failing the rest of the line; a line that produces no
usable field, or fails kind validation, yields a Reject value consumed
only by diagnostics and drop counters.

# Event Kinds

The `t` key selects the kind; each kind has its own mandatory keys:

	SAY:  actor, loc        (optional: raw, verb)
	MOVE: actor, from, to   (optional: raw)

Build assigns no timestamp, run id, or sequence number. Sequence numbers
are assigned by the session only after Build succeeds, which keeps the
journal gap-free: dropped input never consumes a number.

# Integration Points

  - pkg/session: feeds every decoded line through ParseLine/Build
  - pkg/metrics: counts drops by Reject reason
*/
package marker
