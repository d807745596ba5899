package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	Namespace = "forum_notifier"

	NotifySubsystem = "notify"
	DigestSubsystem = "digest"
)

// Общие метрики сервиса.
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)
)

// Метрики немедленных уведомлений.
var (
	ForumEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: NotifySubsystem,
			Name:      "forum_events_total",
			Help:      "Total number of forum events processed",
		},
		[]string{"object_type", "status"},
	)

	EmailDispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: NotifySubsystem,
			Name:      "email_dispatches_total",
			Help:      "Total number of immediate email dispatches",
		},
		[]string{"status"},
	)

	SubscriberLookupDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: NotifySubsystem,
			Name:      "subscriber_lookup_duration_seconds",
			Help:      "Thread subscriber lookup duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"status"},
	)
)

// Метрики дайджестов.
var (
	DigestItemsAccumulated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DigestSubsystem,
			Name:      "items_accumulated_total",
			Help:      "Total number of items appended to pending digests",
		},
		[]string{"digest_type"},
	)

	DigestsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DigestSubsystem,
			Name:      "digests_sent_total",
			Help:      "Total number of digests flushed",
		},
		[]string{"cadence", "status"},
	)

	DatabaseQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: DigestSubsystem,
			Name:      "database_queries_total",
			Help:      "Total number of database queries",
		},
		[]string{"operation", "status"},
	)

	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: DigestSubsystem,
			Name:      "database_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

func RecordHTTPRequest(service, method, endpoint string, statusCode int, duration time.Duration) {
	status := "success"
	if statusCode >= 400 {
		status = "error"
	}

	HTTPRequestsTotal.WithLabelValues(service, method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(service, method, endpoint).Observe(duration.Seconds())
}

func RecordForumEvent(objectType, status string) {
	ForumEventsTotal.WithLabelValues(objectType, status).Inc()
}

func RecordEmailDispatch(status string) {
	EmailDispatchesTotal.WithLabelValues(status).Inc()
}

func RecordSubscriberLookup(status string, duration time.Duration) {
	SubscriberLookupDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func RecordDigestItem(digestType string) {
	DigestItemsAccumulated.WithLabelValues(digestType).Inc()
}

func RecordDigestSent(cadence, status string) {
	DigestsSentTotal.WithLabelValues(cadence, status).Inc()
}

func RecordDatabaseQuery(operation, status string, duration time.Duration) {
	DatabaseQueriesTotal.WithLabelValues(operation, status).Inc()
	DatabaseQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
