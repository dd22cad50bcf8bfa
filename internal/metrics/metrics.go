package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream fetches (indexer HTTP, postgres, JSON-RPC)
	FetchRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "fetch",
		Name:      "requests_total",
		Help:      "Total upstream fetches by source, record kind and outcome",
	}, []string{"source", "kind", "status"})

	FetchLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grants",
		Subsystem: "fetch",
		Name:      "duration_seconds",
		Help:      "Upstream fetch duration",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"source", "kind"})

	FetchRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "fetch",
		Name:      "retries_total",
		Help:      "Total retried upstream fetch attempts",
	}, []string{"source", "kind"})

	RateLimitWaits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "fetch",
		Name:      "rate_limit_waits_total",
		Help:      "Total times an upstream call waited for the rate limiter",
	}, []string{"source"})

	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "grants",
		Subsystem: "fetch",
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state per source (0 closed, 1 open, 2 half-open)",
	}, []string{"source"})

	// Pipeline
	PipelineRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "pipeline",
		Name:      "runs_total",
		Help:      "Total pipeline runs by program and outcome",
	}, []string{"program", "status"})

	PipelineDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "grants",
		Subsystem: "pipeline",
		Name:      "duration_seconds",
		Help:      "Pipeline stage duration",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"program", "stage"})

	PipelineDonations = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "grants",
		Subsystem: "pipeline",
		Name:      "donations",
		Help:      "Donations in the latest report per program",
	}, []string{"program"})

	DataQualityIssues = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "pipeline",
		Name:      "data_quality_issues_total",
		Help:      "Total data quality issues by program and issue",
	}, []string{"program", "issue"})

	// Report cache
	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total report cache hits",
	}, []string{"backend"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total report cache misses",
	}, []string{"backend"})

	CacheErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "cache",
		Name:      "errors_total",
		Help:      "Total report cache errors",
	}, []string{"backend", "op"})

	// Database pool
	DBPoolOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "grants",
		Subsystem: "postgres",
		Name:      "db_pool_open",
		Help:      "Current number of open PostgreSQL connections in the pool",
	})

	DBPoolInUse = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "grants",
		Subsystem: "postgres",
		Name:      "db_pool_in_use",
		Help:      "Current number of in-use PostgreSQL connections in the pool",
	})

	DBPoolIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "grants",
		Subsystem: "postgres",
		Name:      "db_pool_idle",
		Help:      "Current number of idle PostgreSQL connections in the pool",
	})

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "api",
		Name:      "requests_total",
		Help:      "Total API requests by route and status code",
	}, []string{"route", "code"})

	APIRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "api",
		Name:      "rate_limited_total",
		Help:      "Total API requests rejected by the per-IP limiter",
	})

	// Exports
	ExportObjectsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "export",
		Name:      "objects_written_total",
		Help:      "Total objects written to the export bucket",
	}, []string{"program"})

	// Alerts
	AlertsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "alert",
		Name:      "sent_total",
		Help:      "Total alerts sent by channel and type",
	}, []string{"channel", "type"})

	AlertsCooldownSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "grants",
		Subsystem: "alert",
		Name:      "cooldown_skipped_total",
		Help:      "Total alerts suppressed by cooldown",
	}, []string{"channel", "type"})
)
