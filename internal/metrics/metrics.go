// Relaychat - Real-time Chat Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relaychat

// Package metrics exposes Prometheus instrumentation for the gateway,
// session registry, local dispatcher and broadcast relay.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Gateway
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of open WebSocket connections",
		},
	)

	WSHandshakeRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_handshake_rejections_total",
			Help: "Connections rejected before reaching OPEN",
		},
		[]string{"reason"}, // "invalid_credentials", "auth_timeout", "upgrade_failed", "connect_rejected"
	)

	WSFramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_frames_received_total",
			Help: "Client frames received by command",
		},
		[]string{"command"},
	)

	WSFrameErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_frame_errors_total",
			Help: "ERROR frames sent to clients",
		},
		[]string{"error_type"},
	)

	WSSlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_slow_consumer_disconnects_total",
			Help: "Connections closed because their send buffer was full",
		},
	)

	// Session registry
	SessionsOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_identities_online",
			Help: "Identities with at least one open connection on this process",
		},
	)

	// Local dispatcher
	DispatchDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_dispatch_deliveries_total",
			Help: "MESSAGE frames enqueued to local subscribers",
		},
	)

	DispatchTopics = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_dispatch_topics",
			Help: "Topics with at least one local subscriber",
		},
	)

	// Broadcast relay
	RelayPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Messages published to the relay bus",
		},
		[]string{"channel"},
	)

	RelayFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_local_fallback_total",
			Help: "Publishes delivered locally because the bus was unavailable",
		},
		[]string{"channel"},
	)

	RelayReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Messages received from the relay bus",
		},
		[]string{"channel"},
	)

	RelayMalformed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_malformed_total",
			Help: "Relay payloads dropped because they could not be decoded or routed",
		},
		[]string{"channel"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Persistence collaborator
	MessagesStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_stored_total",
			Help: "Chat messages handed to the message store",
		},
		[]string{"result"}, // "success", "error"
	)

	// HTTP API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "HTTP API requests currently being served",
		},
	)
)

// RecordHandshakeRejected counts a connection that never reached OPEN.
func RecordHandshakeRejected(reason string) {
	WSHandshakeRejections.WithLabelValues(reason).Inc()
}

// RecordFrameReceived counts an inbound client frame.
func RecordFrameReceived(command string) {
	WSFramesReceived.WithLabelValues(command).Inc()
}

// RecordFrameError counts an ERROR frame sent back to a client.
func RecordFrameError(errorType string) {
	WSFrameErrors.WithLabelValues(errorType).Inc()
}

// RecordRelayPublish counts a successful bus publish.
func RecordRelayPublish(channel string) {
	RelayPublished.WithLabelValues(channel).Inc()
}

// RecordRelayFallback counts a publish that degraded to local delivery.
func RecordRelayFallback(channel string) {
	RelayFallbacks.WithLabelValues(channel).Inc()
}

// RecordRelayReceived counts a payload read from the bus.
func RecordRelayReceived(channel string) {
	RelayReceived.WithLabelValues(channel).Inc()
}

// RecordRelayMalformed counts a payload dropped by the relay subscriber.
func RecordRelayMalformed(channel string) {
	RelayMalformed.WithLabelValues(channel).Inc()
}

// RecordMessageStored counts a persistence attempt.
func RecordMessageStored(err error) {
	if err != nil {
		MessagesStored.WithLabelValues("error").Inc()
		return
	}
	MessagesStored.WithLabelValues("success").Inc()
}

// RecordCircuitBreakerTransition records a breaker moving between states.
// States use gobreaker's numbering: 0 closed, 1 half-open, 2 open.
func RecordCircuitBreakerTransition(name, from, to string, state int) {
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordAPIRequest records one completed HTTP request. endpoint should be
// the route pattern, not the raw path, to keep label cardinality bounded.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
		return
	}
	APIActiveRequests.Dec()
}
