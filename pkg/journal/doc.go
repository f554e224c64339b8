/*
Package journal persists telemetry events to a date-partitioned,
append-only JSON Lines log.

# Layout

One file per UTC calendar day, grouped under year and year-month
directories:

	events/
	  2026/
	    2026-08/
	      events-2026-08-27.jsonl

Each line is one self-contained event record (see pkg/types.Event). No
record ever spans two files: partitioning follows the write-time day, and
a day rollover closes the old file and opens the new one between writes.

# Durability

Append fsyncs the file before returning. Durability is chosen over
throughput: the journal is the system of record and a crash immediately
after Append must not lose the record. A write or sync failure is
returned to the caller and treated as fatal for the run; the run driver
restarts the whole session rather than continue with a writer it can no
longer trust.

# Concurrency

The writer is intentionally not safe for concurrent callers. Only the
session's primary receive loop appends, which is what guarantees journal
order matches wire order. Consumers (the renderer, external tooling) read
the files independently; they never share the handle.

# Integration Points

  - pkg/session: appends each validated event
  - pkg/render: locates and follows the current day's file via Path
*/
package journal
