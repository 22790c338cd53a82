package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the server's private registry. It is not the global default
// so tests and embedders never collide with other collectors.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

var (
	// AcquireTotal counts Acquire calls by outcome: cached | connected | fallback.
	AcquireTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "historian_acquire_total",
		Help: "Historian connection acquisitions by outcome.",
	}, []string{"outcome"})

	// Connected is 1 while the historian is reachable and 0 in fallback mode.
	Connected = factory.NewGauge(prometheus.GaugeOpts{
		Name: "historian_connected",
		Help: "1 when the last acquire reached the historian, 0 in fallback mode.",
	})

	// QueriesTotal counts historian queries by kind (latest | range | flow_rate)
	// and result (ok | empty | error).
	QueriesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "historian_queries_total",
		Help: "Historian queries by kind and result.",
	}, []string{"kind", "result"})

	// QueryDuration observes historian query latency by kind.
	QueryDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "historian_query_duration_seconds",
		Help:    "Historian query latency.",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"kind"})

	// LiveClients is the number of connected WebSocket clients.
	LiveClients = factory.NewGauge(prometheus.GaugeOpts{
		Name: "live_clients",
		Help: "Connected live telemetry WebSocket clients.",
	})

	// FramesBroadcast counts frames fanned out to clients by event type.
	FramesBroadcast = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "live_frames_broadcast_total",
		Help: "Live frames queued for clients, by event.",
	}, []string{"event"})

	// SlowClientsDropped counts clients disconnected because their send
	// buffer was full.
	SlowClientsDropped = factory.NewCounter(prometheus.CounterOpts{
		Name: "live_slow_clients_dropped_total",
		Help: "Live clients disconnected for falling behind.",
	})

	// CorrelationSignals counts per-window signal queries by outcome: ok | failed.
	CorrelationSignals = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "correlation_signal_queries_total",
		Help: "Per-window signal queries issued during batch correlation, by outcome.",
	}, []string{"outcome"})

	// FlowRateLookups counts flow-rate computations by outcome: found | empty | error.
	FlowRateLookups = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "flow_rate_lookups_total",
		Help: "Flow-rate lookups by outcome.",
	}, []string{"outcome"})
)

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
