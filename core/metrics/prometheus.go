package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "catalog_sync"

var (
	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probes_total",
			Help:      "Item probes by outcome.",
		},
		[]string{"outcome"},
	)
	probeRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "probe_retries_total",
			Help:      "Lookup attempts that failed transiently and were retried.",
		},
	)
	rateLimitWait = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ratelimit_wait_seconds",
			Help:      "Time spent queued in the rate limiter before admission.",
			Buckets:   []float64{0, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)
	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merges_total",
			Help:      "Catalog merges by result.",
		},
		[]string{"result"},
	)
	mergeDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "merge_duration_seconds",
			Help:      "Duration of catalog merges.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_items_total",
			Help:      "Refreshed catalog entries by action.",
		},
		[]string{"action"},
	)
	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Engine operations by kind and status.",
		},
		[]string{"kind", "status"},
	)
	catalogRecords = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_records",
			Help:      "Number of records in the current catalog.",
		},
	)
	catalogCursor = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_cursor",
			Help:      "Highest catalogued identifier.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		probesTotal,
		probeRetriesTotal,
		rateLimitWait,
		mergesTotal,
		mergeDuration,
		refreshTotal,
		runsTotal,
		catalogRecords,
		catalogCursor,
	)
}

// RecordProbe counts one classified probe.
func RecordProbe(outcome string) {
	probesTotal.WithLabelValues(outcome).Inc()
}

// RecordRetry counts one retried lookup attempt.
func RecordRetry() {
	probeRetriesTotal.Inc()
}

// ObserveRateLimitWait records how long an operation waited for admission.
func ObserveRateLimitWait(d time.Duration) {
	rateLimitWait.Observe(d.Seconds())
}

// RecordMerge records one merge attempt.
func RecordMerge(err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mergesTotal.WithLabelValues(result).Inc()
	mergeDuration.Observe(duration.Seconds())
}

// RecordRefresh counts one refreshed entry. action is "updated" or "removed".
func RecordRefresh(action string) {
	refreshTotal.WithLabelValues(action).Inc()
}

// RecordRun counts one finished engine operation.
func RecordRun(kind string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	runsTotal.WithLabelValues(kind, status).Inc()
}

// SetCatalog publishes the size and cursor of the current catalog.
func SetCatalog(records int, cursor int64) {
	catalogRecords.Set(float64(records))
	catalogCursor.Set(float64(cursor))
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
