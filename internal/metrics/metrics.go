// Package metrics exposes Prometheus collectors for the token ledger and
// the Stripe webhook path. Registered on the default registry; the router
// serves them at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokensConsumed counts successful token consumptions by usage kind.
	TokensConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrychef_tokens_consumed_total",
		Help: "Number of tokens consumed by successful paid operations.",
	}, []string{"usage_kind"})

	// ConsumeRejected counts consume attempts rejected for insufficient balance.
	ConsumeRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrychef_consume_insufficient_total",
		Help: "Number of consume attempts rejected for insufficient balance.",
	}, []string{"usage_kind"})

	// CreditsGranted counts tokens granted via top-ups and signup grants.
	CreditsGranted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrychef_credits_granted_total",
		Help: "Number of tokens granted, by source.",
	}, []string{"source"})

	// WebhookEvents counts Stripe webhook events by type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pantrychef_stripe_webhook_events_total",
		Help: "Stripe webhook events received, by event type and processing status.",
	}, []string{"event_type", "status"})
)
