/*
Package config loads and validates the bridge's YAML configuration.

Configuration is read exactly once at startup. Missing or invalid required
values fail loudly before anything connects or writes; there are no runtime
configuration errors by construction.

# Configuration File

	connection:
	  host: mux.example.net
	  port: 2860
	auth:
	  username: Noesis
	  password: secret
	output:
	  out_dir: /var/lib/noesis
	  meta_subdir: meta     # default "meta"
	  logs_subdir: logs     # default "logs"
	mode:
	  name: ingest          # ingest | passive (default "passive")
	logging:
	  level: info           # debug | info | warn | error
	  console: true         # human-readable console output
	metrics:
	  listen: ":9310"       # empty disables the Prometheus endpoint

# Modes

ingest: marker lines are parsed and appended to the journal.

passive: the session connects, logs in, keeps alive, and heartbeats, but
telemetry is ignored. Useful for validating credentials and connectivity
against a production server without writing a single event.

# Integration Points

  - cmd/noesis-bridge: loads the file named by --config
  - pkg/bridge: consumes the validated Config
*/
package config
