package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	err error
}

func (f *fakeChecker) CheckHealth(context.Context) error { return f.err }

func get(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestLiveness(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil, nil, nil)
	rec, body := get(t, s.Handler(), "/health/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alive", body["status"])
}

func TestReadiness(t *testing.T) {
	t.Run("healthy backend", func(t *testing.T) {
		s := NewServer(DefaultServerConfig(), &fakeChecker{}, nil, nil)
		rec, body := get(t, s.Handler(), "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ready", body["status"])
	})

	t.Run("failing backend returns 503", func(t *testing.T) {
		s := NewServer(DefaultServerConfig(), &fakeChecker{err: fmt.Errorf("endpoint unreachable")}, nil, nil)
		rec, body := get(t, s.Handler(), "/health/ready")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "unavailable", body["status"])
		assert.Contains(t, body["error"], "unreachable")
	})

	t.Run("no checker configured", func(t *testing.T) {
		s := NewServer(DefaultServerConfig(), nil, nil, nil)
		rec, _ := get(t, s.Handler(), "/health/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestMetricsRoute(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "# metrics")
	})
	s := NewServer(DefaultServerConfig(), nil, metrics, nil)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# metrics")
}

func TestInfo(t *testing.T) {
	s := NewServer(DefaultServerConfig(), nil, nil, nil)
	rec, body := get(t, s.Handler(), "/info")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "swiftfs", body["service"])
}
