package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "biopass",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	CheckIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biopass",
		Name:      "checkins_total",
		Help:      "Check-in attempts by outcome (recorded, already_recorded, unknown, error)",
	}, []string{"outcome"})

	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biopass",
		Name:      "registrations_total",
		Help:      "Registration attempts by result (created, duplicate, invalid, error)",
	}, []string{"result"})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biopass",
		Name:      "notifications_total",
		Help:      "Notifications by kind and dispatch result (sent, failed, dropped)",
	}, []string{"kind", "result"})

	NotifyQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "biopass",
		Name:      "notify_queue_depth",
		Help:      "Notifications waiting for a dispatch worker",
	})

	StoreUp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "biopass",
		Name:      "store_up",
		Help:      "1 if the last store probe succeeded, 0 otherwise",
	})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "biopass",
		Name:      "ws_connections",
		Help:      "Number of active live-feed WebSocket connections",
	})
)
