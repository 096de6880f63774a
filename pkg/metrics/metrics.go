package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure|unverified).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonder_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// BookingRequests counts schedule request creations by outcome (created|conflict|error).
	BookingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonder_booking_requests_total",
			Help: "Total number of schedule request create attempts",
		},
		[]string{"outcome"},
	)

	// ChatMessages counts persisted chat messages by sender role.
	ChatMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonder_chat_messages_total",
			Help: "Total number of chat messages persisted",
		},
		[]string{"sender_role"},
	)

	// LiveConnections tracks currently registered WebSocket connections.
	LiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sonder_live_connections",
			Help: "Number of registered live connections",
		},
	)

	// LiveDeliveries counts push attempts through the connection registry (delivered|offline|dropped).
	LiveDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sonder_live_deliveries_total",
			Help: "Total number of live event delivery attempts",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sonder_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
