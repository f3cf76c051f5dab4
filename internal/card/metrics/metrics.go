package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for card operations. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	CardsCreated      prometheus.Counter
	CardsUpdated      prometheus.Counter
	CardsDeleted      prometheus.Counter
	AspectAdjustments *prometheus.CounterVec
	IdentityResaved   prometheus.Counter
	SearchLatency     prometheus.Histogram
	SearchMatches     prometheus.Histogram
}

// New registers card metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		CardsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_cards_created_total",
			Help: "Total number of cards created",
		}),
		CardsUpdated: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_cards_updated_total",
			Help: "Total number of card updates persisted",
		}),
		CardsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_cards_deleted_total",
			Help: "Total number of cards deleted",
		}),
		AspectAdjustments: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cardforge_aspect_adjustments_total",
			Help: "Aspect increments and decrements by outcome",
		}, []string{"direction", "applied"}),
		IdentityResaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_identity_resaved_total",
			Help: "Total number of cards whose identity mask changed during a resave",
		}),
		SearchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardforge_search_duration_seconds",
			Help:    "Latency of card searches including the count query",
			Buckets: prometheus.DefBuckets,
		}),
		SearchMatches: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardforge_search_matches",
			Help:    "Total matches per search",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
}

func (m *Metrics) IncCreated() {
	if m != nil {
		m.CardsCreated.Inc()
	}
}

func (m *Metrics) IncUpdated() {
	if m != nil {
		m.CardsUpdated.Inc()
	}
}

func (m *Metrics) IncDeleted() {
	if m != nil {
		m.CardsDeleted.Inc()
	}
}

func (m *Metrics) IncResaved() {
	if m != nil {
		m.IdentityResaved.Inc()
	}
}

// ObserveAdjustment records one increment or decrement attempt.
func (m *Metrics) ObserveAdjustment(direction string, applied bool) {
	if m != nil {
		m.AspectAdjustments.WithLabelValues(direction, strconv.FormatBool(applied)).Inc()
	}
}

// ObserveSearch records the latency since start and the match count.
func (m *Metrics) ObserveSearch(start time.Time, total int) {
	if m != nil {
		m.SearchLatency.Observe(time.Since(start).Seconds())
		m.SearchMatches.Observe(float64(total))
	}
}
