package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/api/cards/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, path := range []string{"/api/cards/a", "/api/cards/b"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(m.RequestDuration))
	expected := `
# HELP cardforge_http_requests_in_flight HTTP requests currently being served
# TYPE cardforge_http_requests_in_flight gauge
cardforge_http_requests_in_flight 0
`
	require.NoError(t, testutil.CollectAndCompare(m.RequestsInFlight, strings.NewReader(expected)))
}

func TestCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncrementUsersCreated()
	m.IncrementLogins(true)
	m.IncrementLogins(false)
	m.IncrementLogins(false)
	m.IncrementSessionsRevoked(3)
	m.IncrementSessionsRevoked(0)
	m.IncrementRateLimited("auth")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.UsersCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginsSucceeded))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.LoginsFailed))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SessionsRevoked))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("auth")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementUsersCreated()
		m.IncrementLogins(true)
		m.IncrementSessionsRevoked(1)
		m.IncrementRateLimited("auth")
	})

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	rec := httptest.NewRecorder()
	m.Middleware(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
