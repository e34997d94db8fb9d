// Package metrics exposes Prometheus collectors for the harvester.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchesTotal               *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	requestsTotal              *prometheus.CounterVec
	recordsTotal               *prometheus.CounterVec
	profilesTotal              *prometheus.CounterVec
	parseWarningsTotal         *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	artifactsTotal             prometheus.Counter
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcrawl_fetches_total",
				Help: "Total number of network fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcrawl_fetch_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parlcrawl_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
			},
			[]string{"site"},
		)

		requestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcrawl_requests_total",
				Help: "Total number of scheduled requests, labeled by document type and final state.",
			},
			[]string{"doc_type", "state"},
		)

		recordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcrawl_records_total",
				Help: "Total number of extracted records, labeled by kind.",
			},
			[]string{"kind"},
		)

		profilesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcrawl_profiles_total",
				Help: "Profile gate decisions, labeled by source (fetched, store, duplicate).",
			},
			[]string{"source"},
		)

		parseWarningsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parlcrawl_parse_warnings_total",
				Help: "Total number of recoverable parse warnings, labeled by document type.",
			},
			[]string{"doc_type"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "parlcrawl_active_workers",
				Help: "Number of workers currently processing a request.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "parlcrawl_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		artifactsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "parlcrawl_artifacts_total",
				Help: "Total number of output artifacts written.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one network fetch.
func ObserveFetch(rawURL, outcome string, bytesFetched int, duration time.Duration) {
	if fetchesTotal == nil {
		return
	}
	site := SanitizeSite(rawURL)
	fetchesTotal.WithLabelValues(site, outcome).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
}

// ObserveRequest records the final state of a scheduled request.
func ObserveRequest(docType, state string) {
	if requestsTotal == nil {
		return
	}
	requestsTotal.WithLabelValues(docType, state).Inc()
}

// ObserveRecords adds n records of the given kind.
func ObserveRecords(kind string, n int) {
	if recordsTotal == nil || n <= 0 {
		return
	}
	recordsTotal.WithLabelValues(kind).Add(float64(n))
}

// ObserveProfile records a profile gate decision.
func ObserveProfile(source string) {
	if profilesTotal == nil {
		return
	}
	profilesTotal.WithLabelValues(source).Inc()
}

// ObserveParseWarnings adds n warnings for the document type.
func ObserveParseWarnings(docType string, n int) {
	if parseWarningsTotal == nil || n <= 0 {
		return
	}
	parseWarningsTotal.WithLabelValues(docType).Add(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	if rateLimitDelaysSeconds == nil {
		return
	}
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveArtifact counts a written artifact.
func ObserveArtifact() {
	if artifactsTotal != nil {
		artifactsTotal.Inc()
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	if httpRequestsTotal == nil {
		return
	}
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
