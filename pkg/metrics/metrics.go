package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Scheduler tick duration (seconds)
	ReminderTickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reminder_tick_duration_seconds",
			Help:    "Duration of one reminder scheduler tick in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"status"}, // status: success, failed
	)

	ReminderTickFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_tick_failures_total",
			Help: "Total number of failed reminder ticks by error type",
		},
		[]string{"error_type"},
	)

	RemindersMaterialized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminders_materialized_total",
			Help: "Total number of reminders created by the materializer",
		},
		[]string{"days_before"},
	)

	RemindersDispatched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reminders_dispatched_total",
			Help: "Total number of reminders marked dispatched",
		},
	)

	ReminderNotifyFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_notify_failures_total",
			Help: "Total number of failed notify attempts by error type",
		},
		[]string{"error_type"},
	)

	// HTTP request duration (seconds)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_query_total",
			Help: "Total number of queries slower than the configured threshold",
		},
		[]string{"statement"},
	)

	SlowQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "db_slow_query_duration_seconds",
			Help:    "Duration of slow queries in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 100ms to ~12s
		},
	)
)

// RecordTick observes one scheduler tick.
func RecordTick(duration time.Duration, failed bool) {
	status := "success"
	if failed {
		status = "failed"
	}
	ReminderTickDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func IncrementTickFailure(errorType string) {
	ReminderTickFailures.WithLabelValues(errorType).Inc()
}

func AddMaterialized(daysBefore int, n int) {
	if n <= 0 {
		return
	}
	RemindersMaterialized.WithLabelValues(strconv.Itoa(daysBefore)).Add(float64(n))
}

func IncrementDispatched() {
	RemindersDispatched.Inc()
}

func IncrementNotifyFailure(errorType string) {
	ReminderNotifyFailures.WithLabelValues(errorType).Inc()
}

// RecordHTTPRequestDuration records one HTTP request.
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementSlowQuery records a query that exceeded the slow threshold.
func IncrementSlowQuery(statement string, duration time.Duration) {
	SlowQueryCount.WithLabelValues(statementLabel(statement)).Inc()
	SlowQueryDuration.Observe(duration.Seconds())
}
