package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for audit delivery. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Queued    prometheus.Counter
	Dropped   prometheus.Counter
	Delivered prometheus.Counter
	Failed    prometheus.Counter
}

// NewMetrics registers audit metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Queued: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_audit_events_queued_total",
			Help: "Total number of audit events accepted into the buffer",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_audit_events_dropped_total",
			Help: "Total number of audit events dropped because the buffer was full",
		}),
		Delivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_audit_events_delivered_total",
			Help: "Total number of audit events written to the sink",
		}),
		Failed: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_audit_events_failed_total",
			Help: "Total number of audit events the sink rejected",
		}),
	}
}

func (m *Metrics) incQueued() {
	if m != nil {
		m.Queued.Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) incDelivered() {
	if m != nil {
		m.Delivered.Inc()
	}
}

func (m *Metrics) incFailed() {
	if m != nil {
		m.Failed.Inc()
	}
}
