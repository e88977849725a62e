package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_queries_total",
			Help: "Total number of catalog queries handled by the gateway",
		},
		[]string{"endpoint", "status"},
	)

	QueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_query_duration_seconds",
			Help:    "Duration of catalog query execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gateway_http_requests_total",
			Help: "HTTP requests by route pattern and status code",
		},
		[]string{"method", "route", "code"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gateway_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	WorkspaceLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_lookup_total",
			Help: "Workspace lookups by outcome (found, not_found, failed)",
		},
		[]string{"result"},
	)

	WorkspaceCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workspace_lookup_cache_total",
			Help: "Workspace lookup cache hits and misses",
		},
		[]string{"result"},
	)

	NotificationDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_decisions_total",
			Help: "Notification policy decisions",
		},
		[]string{"decision"},
	)

	NotificationDispatch = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_dispatch_total",
			Help: "Notification dispatch attempts by outcome",
		},
		[]string{"status"},
	)

	NotificationQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_queue_dropped_total",
			Help: "Pipeline jobs dropped because the queue was full or closed",
		},
	)

	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_queue_depth",
			Help: "Pipeline jobs waiting in the queue",
		},
	)
)
