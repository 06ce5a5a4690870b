// Package metrics exposes Prometheus instrumentation for the HTTP surface,
// the tiered cache and the shortening pipeline.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shortlink_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlink_http_active_requests",
			Help: "Current number of in-flight HTTP requests",
		},
	)

	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the per-client rate limiter",
		},
	)

	// Cache. tier is "local" or "shared".
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_hits_total",
			Help: "Total number of alias cache hits",
		},
		[]string{"tier"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_misses_total",
			Help: "Total number of alias cache misses",
		},
		[]string{"tier"},
	)

	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_cache_errors_total",
			Help: "Total number of shared cache failures treated as misses",
		},
		[]string{"operation"},
	)

	CacheBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "shortlink_cache_breaker_state",
			Help: "Shared cache circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)

	// Shortening
	URLsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_urls_created_total",
			Help: "Total number of short URLs created",
		},
		[]string{"alias_type"}, // "generated", "custom"
	)

	AliasCollisions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_alias_collisions_total",
			Help: "Total number of generated aliases that were already taken",
		},
	)

	Redirects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_redirects_total",
			Help: "Total number of alias resolutions",
		},
		[]string{"result"}, // "found", "not_found", "error"
	)

	ClickFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "shortlink_click_failures_total",
			Help: "Total number of click increments that failed after a redirect",
		},
	)

	QuotaRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shortlink_quota_rejections_total",
			Help: "Total number of creations rejected by the monthly tier limit",
		},
		[]string{"tier"},
	)
)

// RecordHTTPRequest records one finished HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight HTTP requests.
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}

func RecordCacheLookup(tier string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(tier).Inc()
		return
	}
	CacheMisses.WithLabelValues(tier).Inc()
}

func RecordURLCreated(custom bool) {
	if custom {
		URLsCreated.WithLabelValues("custom").Inc()
		return
	}
	URLsCreated.WithLabelValues("generated").Inc()
}

func RecordRedirect(result string) {
	Redirects.WithLabelValues(result).Inc()
}
