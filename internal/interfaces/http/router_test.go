package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	"github.com/propsage/compval/internal/interfaces/http/handlers"
	"github.com/propsage/compval/internal/testutil"
)

func testRouter(t *testing.T) http.Handler {
	t.Helper()

	saleDate := time.Now().AddDate(0, -2, 0)
	corpus := &testutil.MockCorpus{Sales: []property.Comparable{
		{ID: "c1", Address: "10 Oak St", Neighborhood: "Downtown", LivingArea: 1800, Bedrooms: 3, Bathrooms: 2, YearBuilt: 2005, PropertyType: property.TypeSingleFamily, SalePrice: 500000, SaleDate: saleDate},
		{ID: "c2", Address: "14 Oak St", Neighborhood: "Downtown", LivingArea: 1900, Bedrooms: 3, Bathrooms: 2.5, YearBuilt: 2008, PropertyType: property.TypeSingleFamily, SalePrice: 525000, SaleDate: saleDate},
	}}
	stats := &testutil.MockStatsProvider{Stats: map[string]*market.NeighborhoodStats{
		"Downtown": {Neighborhood: "Downtown", MedianSalePrice: 500000, SampleSize: 25},
	}}

	svc, err := appvaluation.NewService(appvaluation.Dependencies{Corpus: corpus, Stats: stats})
	require.NoError(t, err)

	health := handlers.NewHealthHandler("test", []handlers.HealthChecker{
		handlers.CheckerFunc{CheckerName: "corpus", Fn: func(context.Context) error { return nil }},
	}, nil, nil)

	return NewRouter(RouterConfig{
		ValuationHandler:  handlers.NewValuationHandler(svc, nil, nil),
		ComparableHandler: handlers.NewComparableHandler(corpus, stats, nil, nil, nil),
		HealthHandler:     health,
	})
}

func TestRouter_Healthz(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ValuationRoute(t *testing.T) {
	router := testRouter(t)

	body, err := json.Marshal(handlers.ValuationRequest{
		Subject: property.Subject{Address: "12 Birch Ln", Neighborhood: "Downtown", LivingArea: 1850},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/valuations", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool `json:"success"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
}

func TestRouter_ComparableRoutes(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/comparables?neighborhood=Downtown", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/neighborhoods/Downtown/stats", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	router := testRouter(t)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_AsyncDisabledWithoutQueue(t *testing.T) {
	router := testRouter(t)

	body := []byte(`{"subject":{"address":"12 Birch Ln","living_area":1850}}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/valuations/async", bytes.NewReader(body)))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouter_PanicRecovery(t *testing.T) {
	// Recoverer is installed before any handler; a panic inside a route
	// must surface as a 500, not a crash. The metrics handler slot is an
	// easy place to mount a panicking handler.
	router := NewRouter(RouterConfig{
		MetricsHandler: http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}),
	})

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
