package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_panel_http_requests_total",
			Help: "Total number of HTTP requests served by the panel",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ohdear_panel_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Remote API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_api_requests_total",
			Help: "Total number of calls made to the Oh Dear API",
		},
		[]string{"endpoint", "outcome"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ohdear_api_request_duration_seconds",
			Help:    "Oh Dear API call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"endpoint"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ohdear_api_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	// Settings metrics
	SettingsValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_settings_validations_total",
			Help: "Settings field validations by outcome",
		},
		[]string{"field", "outcome"},
	)

	// Navigation metrics
	NavigationBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_navigation_builds_total",
			Help: "Navigation builds by resulting shape",
		},
		[]string{"result"},
	)

	BadgeFetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_badge_fetch_failures_total",
			Help: "Badge count lookups that failed and fell back to zero",
		},
		[]string{"kind"},
	)

	// Health check metrics
	HealthCheckResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_health_check_results_total",
			Help: "Application health check results by check and status",
		},
		[]string{"check", "status"},
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_events_published_total",
			Help: "Total number of plugin events published",
		},
		[]string{"event_type"},
	)

	// Cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ohdear_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)
)
