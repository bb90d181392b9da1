package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	RouteLive    = "live"
	RouteOffline = "offline"
)

var (
	// 1ms to 30s
	durationBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

	// NotificationsRouted counts Notify calls by the route they took.
	NotificationsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_notifications_routed_total",
			Help: "Total number of notifications dispatched, by route (live or offline).",
		},
		[]string{"route"},
	)

	// ChannelSendFailures counts isolated per-channel send failures.
	ChannelSendFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_notifier_channel_send_failures_total",
			Help: "Total number of failed sends to a single live channel.",
		},
	)

	OfflineSaveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_notifier_offline_save_failures_total",
			Help: "Total number of notifications that could not be appended to the offline store.",
		},
	)

	OfflineDrained = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_notifier_offline_drained_total",
			Help: "Total number of offline notifications drained to reconnecting users.",
		},
	)

	OfflineLogsSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reservation_notifier_offline_logs_swept_total",
			Help: "Total number of per-user offline logs deleted by the retention sweeper.",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reservation_notifier_active_sessions",
			Help: "Number of client sessions currently logged in.",
		},
	)

	// DispatchDuration measures Notify latency, by route.
	DispatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_notifier_dispatch_duration_seconds",
			Help:    "Histogram of notification dispatch duration in seconds, by route.",
			Buckets: durationBuckets,
		},
		[]string{"route"},
	)

	// MessagesReceived counts decisions decoded from the broker, by notification kind.
	MessagesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_messages_received_total",
			Help: "Total number of reservation decisions received and decoded from the broker, by kind.",
		},
		[]string{"kind"},
	)

	MessagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_messages_processed_total",
			Help: "Total number of reservation decisions dispatched and acknowledged, by kind.",
		},
		[]string{"kind"},
	)

	// MessagesFailed counts decisions that failed on their first attempt.
	MessagesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_messages_failed_total",
			Help: "Total number of reservation decisions that failed processing on the initial attempt, by kind.",
		},
		[]string{"kind"},
	)

	MessagesRetried = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_messages_retried_total",
			Help: "Total number of reservation decisions sent for retry, by kind.",
		},
		[]string{"kind"},
	)

	MessagesDLQ = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_messages_dlq_total",
			Help: "Total number of reservation decisions moved to the Dead Letter Queue, by kind.",
		},
		[]string{"kind"},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_notifier_message_processing_duration_seconds",
			Help:    "Histogram of reservation decision processing duration in seconds, by kind and success status.",
			Buckets: durationBuckets,
		},
		[]string{"kind", "success"},
	)

	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_notifier_http_requests_total",
			Help: "Total number of HTTP requests processed, labeled by endpoint and status code.",
		},
		[]string{"endpoint", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reservation_notifier_http_request_duration_seconds",
			Help:    "Histogram of latencies for HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
)

// MetricsHandler returns the HTTP handler for the Prometheus metrics endpoint.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// ObserveDuration records one broker message processing attempt.
func ObserveDuration(kind string, success bool, start time.Time) {
	successStr := "false"
	if success {
		successStr = "true"
	}
	ProcessingDuration.WithLabelValues(kind, successStr).Observe(time.Since(start).Seconds())
}

// ObserveDispatch records one Notify call.
func ObserveDispatch(route string, start time.Time) {
	NotificationsRouted.WithLabelValues(route).Inc()
	DispatchDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
