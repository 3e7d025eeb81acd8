package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Stream metrics
	framesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callops_stream_frames_total",
			Help: "Total number of engine frames applied, by frame type",
		},
		[]string{"type"},
	)

	framesDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "callops_stream_frames_dropped_total",
			Help: "Total number of frames dropped because they failed to parse",
		},
	)

	streamReconnects = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "callops_stream_reconnects_total",
			Help: "Total number of stream reconnect attempts",
		},
	)

	// Eviction metrics
	evictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "callops_evictions_total",
			Help: "Eviction timers that fired, by kind and whether the guard still held",
		},
		[]string{"kind", "applied"},
	)

	// Gateway metrics
	watchedCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callops_watched_calls",
			Help: "Number of calls currently watched",
		},
	)

	dashboardClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "callops_dashboard_clients",
			Help: "Number of connected dashboard WebSocket clients",
		},
	)
)

func init() {
	prometheus.MustRegister(
		framesTotal,
		framesDropped,
		streamReconnects,
		evictionsTotal,
		watchedCalls,
		dashboardClients,
	)
}

// RecordFrame counts one applied engine frame
func RecordFrame(frameType string) {
	framesTotal.WithLabelValues(frameType).Inc()
}

// RecordFrameDropped counts one unparseable frame
func RecordFrameDropped() {
	framesDropped.Inc()
}

// RecordStreamReconnect counts one reconnect attempt
func RecordStreamReconnect() {
	streamReconnects.Inc()
}

// RecordEviction counts one fired eviction timer; applied is false when the
// guard no longer held and the mutation was skipped
func RecordEviction(kind string, applied bool) {
	evictionsTotal.WithLabelValues(kind, strconv.FormatBool(applied)).Inc()
}

// SetWatchedCalls updates the watched-call gauge
func SetWatchedCalls(n int) {
	watchedCalls.Set(float64(n))
}

// SetDashboardClients updates the dashboard client gauge
func SetDashboardClients(n int) {
	dashboardClients.Set(float64(n))
}

// Handler exposes the metrics endpoint
func Handler() http.Handler {
	return promhttp.Handler()
}
