package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetsTimeouts(t *testing.T) {
	srv := New(":0", http.NotFoundHandler())
	assert.Equal(t, ":0", srv.Addr)
	assert.Positive(t, srv.ReadHeaderTimeout)
	assert.Positive(t, srv.WriteTimeout)
}

func TestHealth(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: refused") }

	t.Run("all healthy", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Health(map[string]Check{"postgres": ok, "redis": ok})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok","checks":{"postgres":"ok","redis":"ok"}}`, rec.Body.String())
	})

	t.Run("one dependency down", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Health(map[string]Check{"postgres": ok, "redis": down})(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.JSONEq(t, `{"status":"degraded","checks":{"postgres":"ok","redis":"unavailable"}}`, rec.Body.String())
	})

	t.Run("no dependencies", func(t *testing.T) {
		rec := httptest.NewRecorder()
		Health(nil)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})
}
