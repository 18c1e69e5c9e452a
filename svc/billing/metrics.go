package billing

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the billing counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	webhookEvents   *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec
	planChanges     *prometheus.CounterVec
	limitChecks     *prometheus.CounterVec
}

// NewMetrics registers the billing metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		webhookEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "webhook_events_total",
			Help:      "Webhook events by processor type and dispatch outcome.",
		}, []string{"type", "outcome"}),
		webhookDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "billing",
			Name:      "webhook_dispatch_duration_seconds",
			Help:      "Time spent dispatching a verified webhook event.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		planChanges: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "plan_changes_total",
			Help:      "Plan change requests by direction and result.",
		}, []string{"direction", "result"}),
		limitChecks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "billing",
			Name:      "limit_checks_total",
			Help:      "Resource limit checks by resource and decision.",
		}, []string{"resource", "allowed"}),
	}
}

func (m *Metrics) webhookDispatched(eventType string, outcome Outcome, took time.Duration) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(eventType, outcome.String()).Inc()
	m.webhookDuration.WithLabelValues(eventType).Observe(took.Seconds())
}

func (m *Metrics) planChanged(direction Direction, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.planChanges.WithLabelValues(string(direction), result).Inc()
}

func (m *Metrics) limitChecked(resource Resource, allowed bool) {
	if m == nil {
		return
	}
	m.limitChecks.WithLabelValues(string(resource), strconv.FormatBool(allowed)).Inc()
}
