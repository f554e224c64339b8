/*
Package session owns the MUX socket and the connect/login/reconnect state
machine.

# State Machine

	Disconnected → Connecting → LoggingIn → Ready → Degraded → Disconnected

Ready is the only state in which telemetry is parsed and written. Every
failure path, including panics inside the pipeline, converges on Degraded
and then Disconnected: the session surfaces its error to the run driver,
which tears it down and builds a fresh one. Nothing that happens while
processing events is allowed to stop the process; it can only force a
reconnect.

# Login

TinyMUX gives no positive login acknowledgement. The session drains the
banner for a bounded window, sends `connect <user> <pass>`, and watches
the response window for the one known rejection phrase; absence of that
phrase is treated as success. The heuristic is kept explicit
(loginRejectPhrase) because the protocol offers nothing stronger.

# Pipeline

While Ready, a single goroutine drives receive → telnet.Decode → line
split → marker parse → journal append, synchronously and in wire order.
Reads use a short deadline instead of asynchronous I/O so cancellation is
observed between frames. Sequence numbers are assigned strictly after
validation, so dropped input never creates a gap.

# Side Goroutines

The keepalive loop sends a no-op command when the link is idle past a
threshold; the heartbeat reporter (pkg/heartbeat) snapshots liveness. Both
only read the session's Counters through atomic accessors or issue
best-effort sends, tolerate the socket being absent mid-reconnect, and can
never block or degrade the primary loop.

# Counters

Counters live one level above the Session: the run driver creates them
once per process run and hands them to each Session, which is what keeps
seq strictly increasing across reconnects within one run_id.
*/
package session
