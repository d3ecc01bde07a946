package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	runsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocksync",
			Name:      "reconcile_runs_total",
			Help:      "Reconciliation runs by site and status.",
		},
		[]string{"site", "status"},
	)

	itemsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocksync",
			Name:      "reconcile_items_total",
			Help:      "Per-item reconciliation outcomes by site.",
		},
		[]string{"site", "outcome"},
	)

	tasksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocksync",
			Name:      "tasks_total",
			Help:      "Drained queue tasks by kind and terminal status.",
		},
		[]string{"kind", "status"},
	)

	windowSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "stocksync",
			Name:      "concurrency_window",
			Help:      "Adaptive concurrency window size after the last run.",
		},
		[]string{"site"},
	)

	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "stocksync",
			Name:      "reconcile_run_duration_seconds",
			Help:      "Wall-clock duration of reconciliation runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
		[]string{"site"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "stocksync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(runsTotal, itemsTotal, tasksTotal, windowSize, runDuration, httpRequests)
	})
}

// ObserveRun records one run outcome with its item counters.
func ObserveRun(site, status string, synced, failed, skipped int) {
	runsTotal.WithLabelValues(site, status).Inc()
	itemsTotal.WithLabelValues(site, "synced").Add(float64(synced))
	itemsTotal.WithLabelValues(site, "failed").Add(float64(failed))
	itemsTotal.WithLabelValues(site, "skipped").Add(float64(skipped))
}

// ObserveRunDuration records the wall-clock duration of one run.
func ObserveRunDuration(site string, seconds float64) {
	runDuration.WithLabelValues(site).Observe(seconds)
}

// ObserveTask records one drained task reaching a terminal status.
func ObserveTask(kind, status string) {
	tasksTotal.WithLabelValues(kind, status).Inc()
}

// SetWindow records the adaptive window size after a run.
func SetWindow(site string, window int) {
	windowSize.WithLabelValues(site).Set(float64(window))
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}
