package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthyChecker(name string) HealthChecker {
	return CheckerFunc{CheckerName: name, Fn: func(context.Context) error { return nil }}
}

func failingChecker(name string, err error) HealthChecker {
	return CheckerFunc{CheckerName: name, Fn: func(context.Context) error { return err }}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler("1.2.3", nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Liveness(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body livenessBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", string(body.Status))
	assert.Equal(t, "1.2.3", body.Version)
	assert.GreaterOrEqual(t, body.UptimeSeconds, int64(0))
}

func TestHealthHandler_Readiness_AllHealthy(t *testing.T) {
	h := NewHealthHandler("1.2.3", []HealthChecker{
		healthyChecker("postgres"),
		healthyChecker("redis"),
	}, nil, nil)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body readinessBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", string(body.Status))
	assert.Len(t, body.Components, 2)
	assert.Equal(t, "healthy", string(body.Components["postgres"].Status))
}

func TestHealthHandler_Readiness_OneDown(t *testing.T) {
	var reported []string
	report := func(component string, healthy bool) {
		if !healthy {
			reported = append(reported, component)
		}
	}

	h := NewHealthHandler("1.2.3", []HealthChecker{
		healthyChecker("postgres"),
		failingChecker("redis", assert.AnError),
	}, report, nil)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body readinessBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "unhealthy", string(body.Status))
	assert.Equal(t, "unhealthy", string(body.Components["redis"].Status))
	assert.NotEmpty(t, body.Components["redis"].Error)
	assert.Equal(t, "healthy", string(body.Components["postgres"].Status))
	assert.Equal(t, []string{"redis"}, reported)
}

func TestHealthHandler_Readiness_NoCheckers(t *testing.T) {
	h := NewHealthHandler("dev", nil, nil, nil)

	rec := httptest.NewRecorder()
	h.Readiness(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
}
