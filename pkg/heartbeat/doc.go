/*
Package heartbeat emits periodic full-replace liveness snapshots for
external monitoring.

Unlike the append-only journal, the heartbeat is a single mutable file:
each emission fully supersedes the previous one and no history is kept.
The write uses a temp-file-then-rename strategy, so a reader polling the
file can never observe partial JSON.

# Failure Policy

A failed emission is logged at warn level and skipped. The heartbeat
exists to observe the session, so it must never be able to affect it; the
next tick simply tries again.

# Usage

	rep := heartbeat.NewReporter(
		filepath.Join(outDir, "bridge.heartbeat.json"),
		heartbeat.DefaultInterval,
		func() any { return counters.Snapshot(runID) },
	)
	rep.Start()
	defer rep.Stop()

The snapshot callback reads the session's counters through atomic
accessors only; the reporter never mutates session state.

# Integration Points

  - pkg/bridge: runs one reporter per process for the bridge heartbeat
  - pkg/render: reuses WriteAtomic for the renderer's own heartbeat
*/
package heartbeat
