package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the account and HTTP metrics shared across the server.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	UsersCreated     prometheus.Counter
	LoginsSucceeded  prometheus.Counter
	LoginsFailed     prometheus.Counter
	SessionsRevoked  prometheus.Counter
	RateLimited      *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
}

// New creates and registers the metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_users_created_total",
			Help: "Total number of user accounts registered",
		}),
		LoginsSucceeded: f.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_logins_succeeded_total",
			Help: "Total number of successful logins",
		}),
		LoginsFailed: f.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_logins_failed_total",
			Help: "Total number of rejected login attempts",
		}),
		SessionsRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "cardforge_sessions_revoked_total",
			Help: "Total number of sessions ended by logout",
		}),
		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cardforge_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"scope"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cardforge_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cardforge_http_requests_in_flight",
			Help: "HTTP requests currently being served",
		}),
	}
}

func (m *Metrics) IncrementUsersCreated() {
	if m == nil {
		return
	}
	m.UsersCreated.Inc()
}

func (m *Metrics) IncrementLogins(succeeded bool) {
	if m == nil {
		return
	}
	if succeeded {
		m.LoginsSucceeded.Inc()
		return
	}
	m.LoginsFailed.Inc()
}

func (m *Metrics) IncrementSessionsRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.SessionsRevoked.Add(float64(n))
}

func (m *Metrics) IncrementRateLimited(scope string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(scope).Inc()
}

// Middleware records latency per chi route pattern, so path parameters do
// not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.RequestsInFlight.Inc()
		defer m.RequestsInFlight.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

// Handler exposes the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
