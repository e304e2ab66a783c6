package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(t *testing.T, w http.ResponseWriter, status int, data interface{}) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC(),
	}))
}

func writeEnvelopeError(t *testing.T, w http.ResponseWriter, status int, code, message string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	}))
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New("")
	require.Error(t, err)
}

func TestValueDecodesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/valuations", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req ValuationRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "12 Birch Ln", req.Subject.Address)

		writeEnvelope(t, w, http.StatusOK, ValuationResult{
			SubjectAddress:  req.Subject.Address,
			EstimatedValue:  512000,
			ConfidenceScore: 84,
			ConfidenceLevel: "HIGH",
			ComparableCount: 6,
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	result, err := c.Value(context.Background(), ValuationRequest{
		Subject: Subject{Address: "12 Birch Ln", Neighborhood: "Downtown", LivingArea: 1800},
	})
	require.NoError(t, err)
	assert.Equal(t, 512000.0, result.EstimatedValue)
	assert.Equal(t, "HIGH", result.ConfidenceLevel)
	assert.Equal(t, 6, result.ComparableCount)
}

func TestValueAsync(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/valuations/async", r.URL.Path)
		writeEnvelope(t, w, http.StatusAccepted, AsyncAccepted{RequestID: "req-9", Status: "queued"})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	accepted, err := c.ValueAsync(context.Background(), ValuationRequest{
		Subject: Subject{Address: "9 Oak St", LivingArea: 1200},
	})
	require.NoError(t, err)
	assert.Equal(t, "req-9", accepted.RequestID)
	assert.Equal(t, "queued", accepted.Status)
}

func TestAPIErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(t, w, http.StatusUnprocessableEntity, "VAL_002", "record lacks usable features")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.Value(context.Background(), ValuationRequest{})
	require.Error(t, err)

	apiErr, ok := err.(*APIError)
	require.True(t, ok, "expected *APIError, got %T", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "VAL_002", apiErr.Code)
	assert.Contains(t, apiErr.Message, "usable features")
	assert.False(t, IsNotFound(err))
}

func TestIsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelopeError(t, w, http.StatusNotFound, "COMMON_004", "no sales for neighborhood")
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.GetNeighborhoodStats(context.Background(), "Nowhere")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestSearchComparablesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "Downtown", q.Get("neighborhood"))
		assert.Equal(t, "single_family", q.Get("property_type"))
		assert.Equal(t, "2", q.Get("min_bedrooms"))
		assert.Equal(t, "350000", q.Get("min_price"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Equal(t, "25", q.Get("page_size"))

		writeEnvelope(t, w, http.StatusOK, []Comparable{
			{ID: "s-1", Address: "4 Elm St", SalePrice: 410000},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	sales, err := c.SearchComparables(context.Background(), ComparableFilter{
		Neighborhood: "Downtown",
		PropertyType: "single_family",
		MinBedrooms:  2,
		MinPrice:     350000,
		Page:         2,
		PageSize:     25,
	})
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, "s-1", sales[0].ID)
}

func TestRecordSale(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var sale Comparable
		require.NoError(t, json.NewDecoder(r.Body).Decode(&sale))
		sale.ID = "generated-1"
		writeEnvelope(t, w, http.StatusCreated, sale)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	stored, err := c.RecordSale(context.Background(), Comparable{
		Address:   "8 Pine Rd",
		SalePrice: 395000,
	})
	require.NoError(t, err)
	assert.Equal(t, "generated-1", stored.ID)
	assert.Equal(t, 395000.0, stored.SalePrice)
}

func TestConfidenceLevels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/valuations/confidence-levels", r.URL.Path)
		writeEnvelope(t, w, http.StatusOK, []ConfidenceBand{
			{Level: "VERY_HIGH", MinScore: 90, Margin: 0.03},
			{Level: "HIGH", MinScore: 80, Margin: 0.05},
		})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	bands, err := c.ConfidenceLevels(context.Background())
	require.NoError(t, err)
	require.Len(t, bands, 2)
	assert.Equal(t, "VERY_HIGH", bands[0].Level)
	assert.Equal(t, 90, bands[0].MinScore)
}

func TestRetryOnServerErrorForGET(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			writeEnvelopeError(t, w, http.StatusInternalServerError, "COMMON_001", "transient")
			return
		}
		writeEnvelope(t, w, http.StatusOK, []ConfidenceBand{{Level: "LOW", MinScore: 60, Margin: 0.12}})
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetries(2))
	require.NoError(t, err)
	c.retryWaitMin = time.Millisecond
	c.retryWaitMax = 2 * time.Millisecond

	bands, err := c.ConfidenceLevels(context.Background())
	require.NoError(t, err)
	require.Len(t, bands, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNoRetryForPOST(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeEnvelopeError(t, w, http.StatusInternalServerError, "COMMON_001", "boom")
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetries(3))
	require.NoError(t, err)
	c.retryWaitMin = time.Millisecond
	c.retryWaitMax = 2 * time.Millisecond

	_, err = c.Value(context.Background(), ValuationRequest{})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestOptions(t *testing.T) {
	hc := &http.Client{Timeout: 3 * time.Second}
	c, err := New("http://localhost:1", WithHTTPClient(hc), WithUserAgent("custom/1.0"), WithRetries(0))
	require.NoError(t, err)
	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, "custom/1.0", c.userAgent)
	assert.Equal(t, 0, c.retryMax)

	c2, err := New("http://localhost:1", WithTimeout(7*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 7*time.Second, c2.httpClient.Timeout)
}
