/*
Package bridge is the run driver: the top-level retry loop that keeps a
session alive indefinitely.

# Run Scope

A "run" is one continuous process execution, identified by a run_id that
spans every reconnect within it. The Runner owns everything with run
scope:

  - the run_id (start time + random suffix, unique across runs)
  - the session Counters (so seq never resets on reconnect)
  - the immutable run metadata file, written once at startup
  - the heartbeat reporter
  - the optional Prometheus endpoint

# Retry Policy

On any session failure the Runner waits and rebuilds a fresh Session
(new socket, new journal writer, same configuration and counters):

	backoff: 1s, ×1.7 per consecutive failure, capped at 30s
	reset:   after a session holds Ready for 60s or more

An explicit login rejection is logged loudly, since credentials are
static and need a human, but it is still retried, so fixing the password
on the server side takes effect without restarting the process.

Cancellation is observed between loop iterations and during backoff
sleeps; on shutdown the session's socket and the heartbeat reporter are
closed in order before Run returns.
*/
package bridge
