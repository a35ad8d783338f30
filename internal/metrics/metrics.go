// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors; one instance is shared across components.
type Metrics struct {
	WebhookEvents     *prometheus.CounterVec
	Transitions       *prometheus.CounterVec
	Dispatches        *prometheus.CounterVec
	SendFailures      *prometheus.CounterVec
	TransitionSeconds prometheus.Histogram
}

// New registers collectors on the given registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banquea_webhook_events_total",
			Help: "Inbound webhook events by outcome.",
		}, []string{"outcome"}), // handled|duplicate|ignored|error
		Transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banquea_transitions_total",
			Help: "Conversation transitions by resulting state.",
		}, []string{"state"}),
		Dispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banquea_scheduled_dispatches_total",
			Help: "Scheduler question dispatches by outcome.",
		}, []string{"outcome"}), // sent|send_failed|claim_lost|error
		SendFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "banquea_send_failures_total",
			Help: "Outbound send failures by retryability.",
		}, []string{"retryable"}),
		TransitionSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "banquea_transition_duration_seconds",
			Help:    "Wall time of one inbound transition including sends.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}
