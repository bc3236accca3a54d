package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "support_bot_turn_duration_seconds",
			Help:    "Chat turn processing duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"response_type"},
	)

	ResponsesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_responses_total",
			Help: "Total chat responses by type",
		},
		[]string{"response_type"},
	)

	MatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_match_total",
			Help: "Knowledge base match attempts by winning source",
		},
		[]string{"source"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "support_bot_confidence_score",
			Help:    "Match confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	EscalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_escalations_total",
			Help: "Escalations by outcome",
		},
		[]string{"outcome"},
	)

	EmbeddingRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_embedding_requests_total",
			Help: "Embedding provider requests",
		},
		[]string{"model", "status"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	AuditDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "support_bot_audit_dropped_total",
			Help: "Audit records dropped because the writer queue was full or the write failed",
		},
		[]string{"record"},
	)

	EntriesIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "support_bot_entries_indexed_total",
			Help: "Knowledge entries embedded and indexed",
		},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(TurnDuration)
		prometheus.MustRegister(ResponsesTotal)
		prometheus.MustRegister(MatchTotal)
		prometheus.MustRegister(ConfidenceScore)
		prometheus.MustRegister(EscalationsTotal)
		prometheus.MustRegister(EmbeddingRequests)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(AuditDropped)
		prometheus.MustRegister(EntriesIndexed)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
