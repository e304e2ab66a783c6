package prometheus

import (
	"fmt"
	"time"
)

// AppMetrics holds all application metrics.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// Valuation engine
	ValuationsTotal        CounterVec
	ValuationDuration      HistogramVec
	ValuationConfidence    HistogramVec
	ComparablesUsed        HistogramVec
	FallbacksTotal         CounterVec
	PanicsRecoveredTotal   CounterVec
	ResultCacheHitsTotal   CounterVec
	ResultCacheMissesTotal CounterVec

	// Comparable corpus
	CorpusSearchDuration HistogramVec
	CorpusSalesIngested  CounterVec

	// Infrastructure
	DBPoolSize             GaugeVec
	DBPoolActive           GaugeVec
	DBQueryDuration        HistogramVec
	MessageProcessDuration HistogramVec

	// System health
	ServiceUptime     GaugeVec
	HealthCheckStatus GaugeVec
	ErrorsTotal       CounterVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultDBDurationBuckets   = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5}
	ConfidenceScoreBuckets     = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	ComparableCountBuckets     = []float64{0, 1, 2, 3, 5, 10, 15, 25, 50}
)

// NewAppMetrics registers all metrics and returns the populated struct.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	// HTTP
	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests", "method", "path")

	// Valuation
	m.ValuationsTotal = collector.RegisterCounter("valuations_total", "Valuations produced", "confidence_level")
	m.ValuationDuration = collector.RegisterHistogram("valuation_duration_seconds", "Valuation latency", DefaultHTTPDurationBuckets, "confidence_level")
	m.ValuationConfidence = collector.RegisterHistogram("valuation_confidence_score", "Confidence score distribution", ConfidenceScoreBuckets)
	m.ComparablesUsed = collector.RegisterHistogram("valuation_comparables_used", "Usable comparables per valuation", ComparableCountBuckets)
	m.FallbacksTotal = collector.RegisterCounter("valuation_fallbacks_total", "Fallback estimates by source", "source")
	m.PanicsRecoveredTotal = collector.RegisterCounter("valuation_panics_recovered_total", "Valuations recovered from panic")
	m.ResultCacheHitsTotal = collector.RegisterCounter("valuation_cache_hits_total", "Valuation result cache hits")
	m.ResultCacheMissesTotal = collector.RegisterCounter("valuation_cache_misses_total", "Valuation result cache misses")

	// Corpus
	m.CorpusSearchDuration = collector.RegisterHistogram("corpus_search_duration_seconds", "Comparable search duration", DefaultDBDurationBuckets, "source")
	m.CorpusSalesIngested = collector.RegisterCounter("corpus_sales_ingested_total", "Closed sales ingested", "status")

	// Infrastructure
	m.DBPoolSize = collector.RegisterGauge("db_pool_size", "Database connection pool size", "db")
	m.DBPoolActive = collector.RegisterGauge("db_pool_active", "Database active connections", "db")
	m.DBQueryDuration = collector.RegisterHistogram("db_query_duration_seconds", "Database query duration", DefaultDBDurationBuckets, "db", "operation")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	// System health
	m.ServiceUptime = collector.RegisterGauge("service_uptime_seconds", "Service uptime", "service")
	m.HealthCheckStatus = collector.RegisterGauge("health_check_status", "Health check status (1=up, 0=down)", "component")
	m.ErrorsTotal = collector.RegisterCounter("errors_total", "Total errors", "component", "error_type")

	return m
}

// Helpers

func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	status := fmt.Sprintf("%d", statusCode)
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

func RecordDBQuery(metrics *AppMetrics, db, operation string, duration time.Duration, err error) {
	metrics.DBQueryDuration.WithLabelValues(db, operation).Observe(duration.Seconds())
	if err != nil {
		metrics.ErrorsTotal.WithLabelValues(db, "query_error").Inc()
	}
}

func RecordSaleIngested(metrics *AppMetrics, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.CorpusSalesIngested.WithLabelValues(status).Inc()
}

func RecordHealthCheck(metrics *AppMetrics, component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	metrics.HealthCheckStatus.WithLabelValues(component).Set(v)
}
