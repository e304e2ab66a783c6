package prometheus

import (
	"time"

	appvaluation "github.com/propsage/compval/internal/application/valuation"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/internal/infrastructure/database/redis"
)

var (
	_ appvaluation.Metrics = (*ValuationRecorder)(nil)
	_ redis.HitRecorder    = (*ValuationRecorder)(nil)
)

// ValuationRecorder feeds engine observations into AppMetrics. It satisfies
// the valuation service's Metrics interface and the result cache's
// HitRecorder.
type ValuationRecorder struct {
	metrics *AppMetrics
}

func NewValuationRecorder(metrics *AppMetrics) *ValuationRecorder {
	return &ValuationRecorder{metrics: metrics}
}

func (r *ValuationRecorder) ObserveValuation(level domainvaluation.ConfidenceLevel, score int, comparables int, elapsed time.Duration) {
	lvl := string(level)
	r.metrics.ValuationsTotal.WithLabelValues(lvl).Inc()
	r.metrics.ValuationDuration.WithLabelValues(lvl).Observe(elapsed.Seconds())
	r.metrics.ValuationConfidence.WithLabelValues().Observe(float64(score))
	r.metrics.ComparablesUsed.WithLabelValues().Observe(float64(comparables))
}

func (r *ValuationRecorder) IncFallback(source domainvaluation.FallbackSource) {
	s := string(source)
	if s == "" {
		s = "none"
	}
	r.metrics.FallbacksTotal.WithLabelValues(s).Inc()
}

func (r *ValuationRecorder) IncCacheHit(hit bool) {
	if hit {
		r.metrics.ResultCacheHitsTotal.WithLabelValues().Inc()
	} else {
		r.metrics.ResultCacheMissesTotal.WithLabelValues().Inc()
	}
}

func (r *ValuationRecorder) IncPanicRecovered() {
	r.metrics.PanicsRecoveredTotal.WithLabelValues().Inc()
}
