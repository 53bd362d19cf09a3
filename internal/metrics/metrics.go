package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bullionwatch"

var (
	// ProviderRequests counts outbound provider calls by outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Outbound provider requests by provider, operation and result.",
	}, []string{"provider", "op", "result"})

	// CacheLookups counts TTL cache hits and misses.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Provider cache lookups by kind and result.",
	}, []string{"kind", "result"})

	// CalendarTiers counts event source tier attempts.
	CalendarTiers = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "calendar_tier_attempts_total",
		Help:      "Event source tier attempts by tier and result (hit, empty, error).",
	}, []string{"tier", "result"})

	// PipelineRuns counts snapshot pipeline runs.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pipeline_runs_total",
		Help:      "Snapshot pipeline runs by trigger and result.",
	}, []string{"trigger", "result"})

	// PipelineDuration observes run latency.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "pipeline_duration_seconds",
		Help:      "Snapshot pipeline run duration.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 45},
	})

	// DroppedRequests counts manual updates ignored because a run was in flight.
	DroppedRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "manual_requests_dropped_total",
		Help:      "Manual update requests dropped while a run was in flight.",
	})

	// UnavailableFields counts degraded snapshot fields.
	UnavailableFields = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_unavailable_fields_total",
		Help:      "Snapshot fields published as unavailable, by field.",
	}, []string{"field"})

	// Clients is the number of connected dashboard clients.
	Clients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "ws_clients",
		Help:      "Connected dashboard websocket clients.",
	})

	// Broadcasts counts events fanned out to clients.
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broadcasts_total",
		Help:      "Events broadcast to dashboard clients, by event name.",
	}, []string{"event"})

	// SlowClientDrops counts messages dropped because a client's buffer was full.
	SlowClientDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_dropped_messages_total",
		Help:      "Messages dropped for clients whose send buffer was full.",
	})
)
