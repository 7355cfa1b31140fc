package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, s *Server, path string) (int, string) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	body, err := io.ReadAll(rec.Result().Body)
	require.NoError(t, err)
	return rec.Code, string(body)
}

func TestHealthzOK(t *testing.T) {
	s := NewServer(zerolog.Nop(), prometheus.NewRegistry(), map[string]Check{
		"postgres": func(context.Context) error { return nil },
	})
	code, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)
}

func TestHealthzFailingCheck(t *testing.T) {
	s := NewServer(zerolog.Nop(), prometheus.NewRegistry(), map[string]Check{
		"redis": func(context.Context) error { return errors.New("connection refused") },
	})
	code, body := get(t, s, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "redis: connection refused")
}

func TestMetricsExposesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	s := NewServer(zerolog.Nop(), reg, nil)
	code, body := get(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, strings.Contains(body, "test_total 1"), body)
}
