package metrics

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatbot_query_duration_seconds",
			Help:    "Query processing duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"source"},
	)

	QueryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_query_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	MatchTier = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_match_tier_total",
			Help: "Queries by the matcher tier that produced results",
		},
		[]string{"tier"},
	)

	ConfidenceScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chatbot_confidence_score",
			Help:    "Response confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LowQualityAnswers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_low_quality_answers_total",
			Help: "Answers classified as low quality",
		},
		[]string{"reason"},
	)

	UnansweredRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_unanswered_recorded_total",
			Help: "Unanswered queries recorded",
		},
		[]string{"outcome"},
	)

	GeneratorFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_generator_failures_total",
			Help: "Answer generator calls that failed",
		},
	)

	SessionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chatbot_sessions_created_total",
			Help: "Visitor sessions created",
		},
	)

	LeadsUpserted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_leads_upserted_total",
			Help: "Lead upserts by outcome",
		},
		[]string{"outcome"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	BestEffortFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatbot_best_effort_failures_total",
			Help: "Side writes that failed without failing the request",
		},
		[]string{"operation"},
	)
)

var registerOnce sync.Once

func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(QueryTotal)
		prometheus.MustRegister(MatchTier)
		prometheus.MustRegister(ConfidenceScore)
		prometheus.MustRegister(LowQualityAnswers)
		prometheus.MustRegister(UnansweredRecorded)
		prometheus.MustRegister(GeneratorFailures)
		prometheus.MustRegister(SessionsCreated)
		prometheus.MustRegister(LeadsUpserted)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(CacheMisses)
		prometheus.MustRegister(BestEffortFailures)
	})
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
