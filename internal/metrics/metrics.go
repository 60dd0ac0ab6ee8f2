package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	HandshakeAccepted       = "accepted"
	HandshakeMissingToken   = "missing_token"
	HandshakeInvalidToken   = "invalid_token"
	OutcomeDelivered        = "delivered"
	OutcomeRecipientOffline = "recipient_offline"
	OutcomeMalformed        = "malformed"
	OutcomeUnknownKind      = "unknown_kind"
	OutcomeRateLimited      = "rate_limited"
	OutcomeFailed           = "failed"
)

var (
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connections",
			Help: "Number of connections currently registered",
		},
	)

	Handshakes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_handshakes_total",
			Help: "Connection handshakes by result",
		},
		[]string{"result"},
	)

	Events = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Inbound envelopes by kind and routing outcome",
		},
		[]string{"kind", "outcome"},
	)

	Evictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_evictions_total",
			Help: "Connections evicted after missing heartbeat probes",
		},
	)

	Disconnects = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_disconnects_total",
			Help: "Deregistered connections by close reason",
		},
		[]string{"reason"},
	)

	DroppedSends = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_dropped_sends_total",
			Help: "Envelopes dropped because a connection's send queue was full",
		},
	)
)
