/*
Package metrics exposes Prometheus metrics for the Noesis bridge.

Metrics are package-level collectors registered in init(), matching the
convention of defining every series in one place so dashboards have a
single file to read.

# Metrics

Session:

	noesis_connected                 gauge    1 while Ready, 0 otherwise
	noesis_reconnects_total          counter  (re)connect attempts
	noesis_auth_failures_total       counter  explicit login rejections
	noesis_bytes_received_total      counter  raw socket bytes
	noesis_lines_total               counter  decoded text lines
	noesis_keepalives_total          counter  no-op keepalive sends

Journal:

	noesis_events_written_total{type}    counter    durable appends by kind
	noesis_events_dropped_total{reason}  counter    pre-sequence drops
	noesis_write_duration_seconds        histogram  append+fsync latency

# Usage

The endpoint is optional and controlled by metrics.listen in the config;
an empty address disables it entirely. The heartbeat file remains the
primary liveness surface; metrics complement it for operators who
already run Prometheus.

	if cfg.Metrics.Listen != "" {
		metrics.Serve(cfg.Metrics.Listen)
	}
*/
package metrics
