// Package metrics exposes Prometheus instrumentation for the ingestion
// pipeline.
package metrics

import (
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	initOnce sync.Once

	itemsTotal         *prometheus.CounterVec
	fetchAttemptsTotal *prometheus.CounterVec
	bytesFetchedTotal  *prometheus.CounterVec
	candidatesTotal    *prometheus.CounterVec
	activeWorkers      prometheus.Gauge
	stageDuration      *prometheus.HistogramVec
	rateLimitDelay     *prometheus.HistogramVec
)

// Init registers all collectors on the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imageingest",
			Name:      "items_total",
			Help:      "Catalog items processed, by outcome.",
		}, []string{"outcome"})

		fetchAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imageingest",
			Name:      "fetch_attempts_total",
			Help:      "Candidate download attempts, by result.",
		}, []string{"result"})

		bytesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imageingest",
			Name:      "bytes_fetched_total",
			Help:      "Raw bytes downloaded, by source site.",
		}, []string{"site"})

		candidatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imageingest",
			Name:      "candidates_total",
			Help:      "Search candidates seen, by ranking disposition.",
		}, []string{"disposition"})

		activeWorkers = promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "imageingest",
			Name:      "active_workers",
			Help:      "Workers currently processing an item.",
		})

		stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imageingest",
			Name:      "stage_duration_seconds",
			Help:      "Per-item time spent in each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"stage"})

		rateLimitDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imageingest",
			Name:      "rate_limit_delay_seconds",
			Help:      "Time spent waiting on per-domain rate limits.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"domain"})
	})
}

// Handler returns the scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveItem records a finished item with its outcome label.
func ObserveItem(outcome string) {
	if itemsTotal != nil {
		itemsTotal.WithLabelValues(outcome).Inc()
	}
}

// ObserveFetchAttempt records one download attempt result.
func ObserveFetchAttempt(result string) {
	if fetchAttemptsTotal != nil {
		fetchAttemptsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveBytesFetched accumulates downloaded bytes against a site label.
func ObserveBytesFetched(site string, n int) {
	if bytesFetchedTotal != nil && n > 0 {
		bytesFetchedTotal.WithLabelValues(SanitizeSite(site)).Add(float64(n))
	}
}

// ObserveCandidates records how many candidates landed in a disposition.
func ObserveCandidates(disposition string, n int) {
	if candidatesTotal != nil && n > 0 {
		candidatesTotal.WithLabelValues(disposition).Add(float64(n))
	}
}

// WorkerStarted and WorkerFinished bracket a worker's busy window.
func WorkerStarted() {
	if activeWorkers != nil {
		activeWorkers.Inc()
	}
}

func WorkerFinished() {
	if activeWorkers != nil {
		activeWorkers.Dec()
	}
}

// ObserveStage records how long one pipeline stage took for one item.
func ObserveStage(stage string, d time.Duration) {
	if stageDuration != nil {
		stageDuration.WithLabelValues(stage).Observe(d.Seconds())
	}
}

// ObserveRateLimitDelay records time spent blocked on a domain limiter.
func ObserveRateLimitDelay(domain string, d time.Duration) {
	if rateLimitDelay != nil && d > 0 {
		rateLimitDelay.WithLabelValues(SanitizeSite(domain)).Observe(d.Seconds())
	}
}

var siteLabelChars = regexp.MustCompile(`[^a-z0-9.-]+`)

// SanitizeSite bounds label cardinality: hosts are lowercased and stripped
// to a safe character set, and anything empty collapses to "unknown".
func SanitizeSite(site string) string {
	cleaned := siteLabelChars.ReplaceAllString(strings.ToLower(site), "")
	if cleaned == "" {
		return "unknown"
	}
	return cleaned
}
