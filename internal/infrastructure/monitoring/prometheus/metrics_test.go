package prometheus

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
)

func newTestAppMetrics(t *testing.T) (*AppMetrics, MetricsCollector) {
	t.Helper()
	c, err := NewMetricsCollector(CollectorConfig{Namespace: "compval"}, logging.NewNopLogger())
	require.NoError(t, err)
	return NewAppMetrics(c), c
}

func TestNewAppMetrics_AllRegistered(t *testing.T) {
	m, _ := newTestAppMetrics(t)

	assert.NotNil(t, m.HTTPRequestsTotal)
	assert.NotNil(t, m.ValuationsTotal)
	assert.NotNil(t, m.ValuationConfidence)
	assert.NotNil(t, m.FallbacksTotal)
	assert.NotNil(t, m.ResultCacheHitsTotal)
	assert.NotNil(t, m.CorpusSearchDuration)
	assert.NotNil(t, m.ErrorsTotal)
}

func TestRecordHTTPRequest(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHTTPRequest(m, "POST", "/api/v1/valuations", 200, 42*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `compval_http_requests_total{method="POST",path="/api/v1/valuations",status_code="200"} 1`)
}

func TestRecordDBQuery_ErrorCountsOnce(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordDBQuery(m, "postgres", "search", 5*time.Millisecond, nil)
	RecordDBQuery(m, "postgres", "search", 5*time.Millisecond, errors.New("timeout"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `compval_errors_total{component="postgres",error_type="query_error"} 1`)
	assert.Contains(t, output, `compval_db_query_duration_seconds_count{db="postgres",operation="search"} 2`)
}

func TestRecordSaleIngested(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordSaleIngested(m, nil)
	RecordSaleIngested(m, errors.New("bad price"))

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `compval_corpus_sales_ingested_total{status="ok"} 1`)
	assert.Contains(t, output, `compval_corpus_sales_ingested_total{status="error"} 1`)
}

func TestRecordHealthCheck(t *testing.T) {
	m, c := newTestAppMetrics(t)

	RecordHealthCheck(m, "postgres", true)
	RecordHealthCheck(m, "redis", false)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `compval_health_check_status{component="postgres"} 1`)
	assert.Contains(t, output, `compval_health_check_status{component="redis"} 0`)
}

func TestValuationRecorder_ObserveValuation(t *testing.T) {
	m, c := newTestAppMetrics(t)
	r := NewValuationRecorder(m)

	r.ObserveValuation(domainvaluation.ConfidenceHigh, 85, 7, 30*time.Millisecond)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `compval_valuations_total{confidence_level="HIGH"} 1`)
	assert.Contains(t, output, "compval_valuation_confidence_score_count 1")
	assert.Contains(t, output, "compval_valuation_comparables_used_count 1")
}

func TestValuationRecorder_Fallbacks(t *testing.T) {
	m, c := newTestAppMetrics(t)
	r := NewValuationRecorder(m)

	r.IncFallback(domainvaluation.FallbackSizeHeuristic)
	r.IncFallback(domainvaluation.FallbackNone)

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, `compval_valuation_fallbacks_total{source="size_heuristic"} 1`)
	assert.Contains(t, output, `compval_valuation_fallbacks_total{source="none"} 1`)
}

func TestValuationRecorder_CacheAndPanics(t *testing.T) {
	m, c := newTestAppMetrics(t)
	r := NewValuationRecorder(m)

	r.IncCacheHit(true)
	r.IncCacheHit(false)
	r.IncCacheHit(false)
	r.IncPanicRecovered()

	output := scrapeMetrics(t, c)
	assert.Contains(t, output, "compval_valuation_cache_hits_total 1")
	assert.Contains(t, output, "compval_valuation_cache_misses_total 2")
	assert.Contains(t, output, "compval_valuation_panics_recovered_total 1")
}
