// Package metrics defines Prometheus metrics for discount-notifier.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dn"

// HTTP metrics.
var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "path", "status"})

	HealthzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "healthz_up",
		Help:      "1 if the last /healthz probe succeeded.",
	})

	ReadyzUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "readyz_up",
		Help:      "1 if the last /readyz probe succeeded.",
	})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of API requests currently being served.",
	})

	HTTPPanicsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_panics_total",
		Help:      "Total number of handler panics recovered by the API server.",
	})
)

// Run metrics.
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Total number of orchestrator runs by result.",
	}, []string{"result"})

	RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of orchestrator runs in seconds.",
		Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1200},
	})
)

// Collector metrics.
var (
	CollectorRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "collector_runs_total",
		Help:      "Total collector invocations by retailer and status.",
	}, []string{"retailer", "status"})

	CollectorDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "collector_duration_seconds",
		Help:      "Duration of collector invocations in seconds.",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
	}, []string{"retailer"})

	EscalationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escalations_total",
		Help:      "Escalation decisions by retailer and outcome.",
	}, []string{"retailer", "outcome"})

	BrowserSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "browser_sessions_active",
		Help:      "Number of automated browser sessions currently open.",
	})

	DirectFetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "direct_fetches_total",
		Help:      "Direct transport fetches by transport and HTTP status class.",
	}, []string{"transport", "status"})
)

// Product metrics.
var (
	ProductsScrapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_scraped_total",
		Help:      "Total products returned by collectors.",
	})

	ProductsInvalidTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_invalid_total",
		Help:      "Total products rejected by price validation.",
	})

	ProductsQualifyingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_qualifying_total",
		Help:      "Total products meeting the discount threshold.",
	})

	ProductsDuplicateTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "products_duplicate_total",
		Help:      "Total qualifying products suppressed by the de-dup ledger.",
	})
)

// Notification metrics.
var (
	NotificationAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_attempts_total",
		Help:      "Notification delivery attempts by destination.",
	}, []string{"destination"})

	NotificationFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Deliveries that exhausted their retries, by destination.",
	}, []string{"destination"})

	NotificationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "notification_duration_seconds",
		Help:      "Duration of single webhook calls in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	NotifiedProductsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notified_products_total",
		Help:      "Total products included in at least one delivered notification.",
	})
)
