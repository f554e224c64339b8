package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Session metrics
	Connected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "noesis_connected",
			Help: "Whether the session is connected and logged in (1 = ready, 0 = not)",
		},
	)

	ReconnectsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "noesis_reconnects_total",
			Help: "Total number of session (re)connect attempts",
		},
	)

	AuthFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "noesis_auth_failures_total",
			Help: "Total number of explicit login rejections from the server",
		},
	)

	BytesReceivedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "noesis_bytes_received_total",
			Help: "Total raw bytes received from the MUX socket",
		},
	)

	LinesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "noesis_lines_total",
			Help: "Total decoded text lines seen by the session",
		},
	)

	KeepalivesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "noesis_keepalives_total",
			Help: "Total keepalive no-op commands sent",
		},
	)

	// Journal metrics
	EventsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noesis_events_written_total",
			Help: "Total telemetry events durably appended to the journal, by type",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "noesis_events_dropped_total",
			Help: "Total marker lines dropped before sequencing, by reject reason",
		},
		[]string{"reason"},
	)

	WriteDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "noesis_write_duration_seconds",
			Help:    "Time taken to append and sync one event in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(Connected)
	prometheus.MustRegister(ReconnectsTotal)
	prometheus.MustRegister(AuthFailuresTotal)
	prometheus.MustRegister(BytesReceivedTotal)
	prometheus.MustRegister(LinesTotal)
	prometheus.MustRegister(KeepalivesTotal)
	prometheus.MustRegister(EventsWrittenTotal)
	prometheus.MustRegister(EventsDroppedTotal)
	prometheus.MustRegister(WriteDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Serve exposes the metrics endpoint on addr in a background goroutine.
// A serve error is reported on the returned channel; the bridge logs it
// and carries on, since metrics are observability, not data.
func Serve(addr string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", Handler())
		errCh <- http.ListenAndServe(addr, mux)
	}()
	return errCh
}
