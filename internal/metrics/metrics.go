// Package metrics holds the Prometheus collectors exposed on GET /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "gatepass"

var (
	// Transitions counts registration status changes by action and result (ok, invalid, unauthorized, error).
	Transitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "registration_transitions_total",
		Help:      "Registration transitions by action and result.",
	}, []string{"action", "result"})

	// Scans counts QR scans by verdict (valid, already_checked_in, not_found).
	Scans = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "checkin_scans_total",
		Help:      "QR code scans by verdict.",
	}, []string{"verdict"})

	// FanOutRecipients counts unique recipients targeted by fan-out.
	FanOutRecipients = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_recipients_total",
		Help:      "Unique recipients targeted by notification fan-out.",
	})

	// ChunkDeliveries counts per-chunk channel outcomes (channel: inbox, realtime, push; status: sent, failed).
	ChunkDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "fanout_chunk_deliveries_total",
		Help:      "Per-chunk delivery outcomes by channel and status.",
	}, []string{"channel", "status"})

	// PushLatency observes push gateway call duration.
	PushLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "push_gateway_seconds",
		Help:      "Push gateway request latency.",
		Buckets:   prometheus.DefBuckets,
	})

	// HealedRegistrations counts guest registrations claimed by accounts.
	HealedRegistrations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "healed_registrations_total",
		Help:      "Guest registrations reassigned to an account on login or signup.",
	})
)
