// Package valuation provides the application-level valuation service: it
// orchestrates feature extraction, comparable retrieval, scoring,
// aggregation, market adjustment, and confidence derivation into one
// cacheable operation.
package valuation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domainvaluation "github.com/propsage/compval/internal/domain/valuation"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	"github.com/propsage/compval/internal/infrastructure/monitoring/logging"
	"github.com/propsage/compval/pkg/errors"
)

// DefaultComparableLimit caps how many corpus candidates one valuation
// pulls.
const DefaultComparableLimit = 25

// Options controls per-request behavior.
type Options struct {
	// IncludeComparables attaches the scored comparable evidence to the
	// result. Off by default: the evidence list dominates payload size.
	IncludeComparables bool `json:"include_comparables"`

	// ApplyMarketAdjustments enables the multiplicative market, season,
	// condition, and type factors plus amenity bumps. When false the raw
	// aggregate is returned with a neutral breakdown.
	ApplyMarketAdjustments bool `json:"apply_market_adjustments"`

	// ComparableLimit overrides DefaultComparableLimit when positive.
	ComparableLimit int `json:"comparable_limit,omitempty"`
}

// DefaultOptions enables market adjustments and omits per-comparable
// evidence.
func DefaultOptions() Options {
	return Options{ApplyMarketAdjustments: true}
}

// ResultCache is the read-through cache the service stores results in.
// The redis adapter satisfies it; a nil cache disables caching.
type ResultCache interface {
	GetOrSet(ctx context.Context, key string, dest interface{}, fetch func(ctx context.Context) (interface{}, error)) error
}

// Service is the valuation application API.
type Service interface {
	// Value produces a complete valuation for the subject. It returns an
	// error only for unusable input (ErrCodeIncompleteRecord); every other
	// failure, a broken corpus included, degrades the result instead of
	// failing it.
	Value(ctx context.Context, subject property.Subject, opts Options) (*domainvaluation.Result, error)
}

// Dependencies wires the service's collaborator ports.
type Dependencies struct {
	Corpus       market.CorpusProvider
	Stats        market.NeighborhoodStatsProvider
	Market       market.ContextProvider
	Intelligence market.IntelligenceProvider
	Cache        ResultCache
	Metrics      Metrics
	Logger       logging.Logger
	Tunables     domainvaluation.Tunables

	// Now overrides the valuation clock, for tests. Defaults to time.Now.
	Now func() time.Time
}

// Metrics is the service's observation port, satisfied by the prometheus
// collector. A nil Metrics is a no-op.
type Metrics interface {
	ObserveValuation(level domainvaluation.ConfidenceLevel, score int, comparables int, elapsed time.Duration)
	IncFallback(source domainvaluation.FallbackSource)
	IncCacheHit(hit bool)
	IncPanicRecovered()
}

type serviceImpl struct {
	deps Dependencies
}

// NewService builds the valuation service. Corpus is the only mandatory
// dependency; every other collaborator has a safe default.
func NewService(deps Dependencies) (Service, error) {
	if deps.Corpus == nil {
		return nil, errors.InvalidParam("corpus provider is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Market == nil {
		deps.Market = market.StaticContextProvider{}
	}
	if deps.Intelligence == nil {
		deps.Intelligence = market.UnimplementedIntelligence{}
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Tunables == (domainvaluation.Tunables{}) {
		deps.Tunables = domainvaluation.DefaultTunables()
	}
	if err := deps.Tunables.Validate(); err != nil {
		return nil, err
	}
	return &serviceImpl{deps: deps}, nil
}

func (s *serviceImpl) Value(ctx context.Context, subject property.Subject, opts Options) (*domainvaluation.Result, error) {
	features, err := property.ExtractFeatures(subject)
	if err != nil {
		return nil, err
	}

	corpusVersion := s.corpusVersion(ctx)
	fingerprint := Fingerprint(subject, opts, corpusVersion)

	if s.deps.Cache == nil || fingerprint == "" {
		return s.value(ctx, subject, features, opts, fingerprint, corpusVersion)
	}

	var cached domainvaluation.Result
	err = s.deps.Cache.GetOrSet(ctx, fingerprint, &cached, func(ctx context.Context) (interface{}, error) {
		return s.value(ctx, subject, features, opts, fingerprint, corpusVersion)
	})
	if err != nil {
		// A cache transport failure must not sink the valuation.
		if errors.IsCode(err, errors.ErrCodeCacheError) {
			s.deps.Logger.Warn("result cache unavailable, valuing directly", logging.Err(err))
			return s.value(ctx, subject, features, opts, fingerprint, corpusVersion)
		}
		return nil, err
	}
	return &cached, nil
}

// value is the uncached valuation pipeline. It never returns an error for
// evidence gaps and it never panics outward: a scoring panic degrades to an
// unreliable zero-confidence result so one poisoned record cannot take the
// endpoint down.
func (s *serviceImpl) value(ctx context.Context, subject property.Subject, features property.FeatureSet, opts Options, fingerprint, corpusVersion string) (result *domainvaluation.Result, err error) {
	started := time.Now()
	now := s.deps.Now()

	defer func() {
		if r := recover(); r != nil {
			s.deps.Logger.Error("valuation pipeline panicked",
				logging.String("address", subject.Address), logging.Any("panic", r))
			if s.deps.Metrics != nil {
				s.deps.Metrics.IncPanicRecovered()
			}
			result = s.unreliableResult(subject, fingerprint, now, started,
				fmt.Sprintf("internal failure: %v", r))
			err = nil
		}
	}()

	mkt, mktErr := s.deps.Market.CurrentContext(ctx)
	if mktErr != nil {
		s.deps.Logger.Warn("market context unavailable, assuming balanced", logging.Err(mktErr))
		mkt = market.Context{Condition: market.ConditionBalanced}
	}

	limit := opts.ComparableLimit
	if limit <= 0 {
		limit = DefaultComparableLimit
	}
	// A broken corpus is treated exactly like an empty one: the fallback
	// cascade produces the estimate and the gap is recorded as a risk
	// factor, never as a caller-visible error.
	candidates, searchErr := s.deps.Corpus.Search(ctx, market.CriteriaForSubject(subject), limit)
	if searchErr != nil {
		s.deps.Logger.Warn("comparable search failed, valuing on fallback evidence",
			logging.String("address", subject.Address), logging.Err(searchErr))
		candidates = nil
	}

	scored := domainvaluation.ScoreComparables(features, candidates, now, s.deps.Tunables)

	stats, hasStats := s.neighborhoodStats(ctx, features.Neighborhood)

	base, haveEvidence := domainvaluation.AggregateEstimate(scored)
	fallback := domainvaluation.FallbackNone
	if !haveEvidence {
		base, fallback = s.fallback(features, stats)
		if s.deps.Metrics != nil {
			s.deps.Metrics.IncFallback(fallback)
		}
	}

	breakdown := neutralBreakdown(now)
	if opts.ApplyMarketAdjustments {
		breakdown = domainvaluation.ApplyAdjustments(features, mkt, now)
	}
	components := domainvaluation.Components{
		BaseEstimate: base,
		Multiplier:   breakdown.Multiplier(),
		AmenityBonus: breakdown.AmenityBonus,
	}
	estimate := components.Finalize()
	components.Decompose(s.deps.Tunables.LandShare, s.locationPremium(features, stats))

	confIn := domainvaluation.ConfidenceInputs{
		HasSize:        features.KnownSize,
		HasYearBuilt:   features.KnownYear,
		HasBedBath:     features.KnownBedBath,
		HasComparables: haveEvidence,
		HasMarketStats: hasStats,
		PropertyAge:    subject.Age(now),
	}
	score := domainvaluation.ScoreConfidence(confIn)
	level := domainvaluation.LevelForScore(score)
	low, high := level.RangeFor(estimate)

	risks := domainvaluation.DeriveRiskFactors(confIn, scored, s.deps.Tunables)
	if searchErr != nil {
		risks = append(risks, "comparable search unavailable, estimate uses fallback evidence")
	}

	result = &domainvaluation.Result{
		SubjectAddress:  subject.Address,
		EstimatedValue:  estimate,
		ValueRangeLow:   low,
		ValueRangeHigh:  high,
		ConfidenceScore: score,
		ConfidenceLevel: level,
		Margin:          level.Margin(),
		Components:      components,
		Adjustments:     breakdown,
		ComparableCount: len(scored),
		FallbackSource:  fallback,
		RiskFactors:     risks,
		MarketCondition: mkt.Condition,
		CorpusVersion:   corpusVersion,
		Fingerprint:     fingerprint,
		GeneratedAt:     now,
		ElapsedMS:       time.Since(started).Milliseconds(),
	}
	if features.KnownSize && estimate > 0 {
		result.PricePerSqFt = estimate / features.LivingArea
	}
	if opts.IncludeComparables {
		result.Comparables = scored
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ObserveValuation(level, score, len(scored), time.Since(started))
	}
	s.deps.Logger.Info("valuation completed",
		logging.String("address", subject.Address),
		logging.Float64("estimate", estimate),
		logging.Int("confidence", score),
		logging.String("level", string(level)),
		logging.Int("comparables", len(scored)))

	return result, nil
}

// fallback walks the no-comparables cascade, reporting which rung fired.
func (s *serviceImpl) fallback(features property.FeatureSet, stats *market.NeighborhoodStats) (float64, domainvaluation.FallbackSource) {
	median := 0.0
	if stats != nil {
		median = stats.MedianSalePrice
	}
	base := domainvaluation.FallbackEstimate(features, median, s.deps.Tunables)
	switch {
	case median > 0:
		return base, domainvaluation.FallbackMedian
	case features.LivingArea > 0:
		return base, domainvaluation.FallbackSizeHeuristic
	default:
		return base, domainvaluation.FallbackDeclaredPrice
	}
}

func (s *serviceImpl) neighborhoodStats(ctx context.Context, neighborhood string) (*market.NeighborhoodStats, bool) {
	if s.deps.Stats == nil || neighborhood == "" {
		return nil, false
	}
	stats, err := s.deps.Stats.GetStats(ctx, neighborhood)
	if err != nil {
		if !errors.IsNotFound(err) {
			s.deps.Logger.Warn("neighborhood stats lookup failed",
				logging.String("neighborhood", neighborhood), logging.Err(err))
		}
		return nil, false
	}
	return stats, true
}

func (s *serviceImpl) corpusVersion(ctx context.Context) string {
	version, err := s.deps.Corpus.Version(ctx)
	if err != nil {
		s.deps.Logger.Warn("corpus version unavailable", logging.Err(err))
		return ""
	}
	return version
}

// unreliableResult is the panic-containment answer: zero estimate, zero
// confidence, widest margin, with the failure cause preserved in Notes.
func (s *serviceImpl) unreliableResult(subject property.Subject, fingerprint string, now, started time.Time, cause string) *domainvaluation.Result {
	level := domainvaluation.ConfidenceUnreliable
	return &domainvaluation.Result{
		SubjectAddress:  subject.Address,
		ConfidenceScore: 0,
		ConfidenceLevel: level,
		Margin:          level.Margin(),
		RiskFactors:     []string{"internal scoring failure; result is a placeholder"},
		Notes:           cause,
		Fingerprint:     fingerprint,
		GeneratedAt:     now,
		ElapsedMS:       time.Since(started).Milliseconds(),
	}
}

// locationPremium prices the neighborhood's per-sqft position against the
// engine's baseline rate.  Without stats or a known size it is zero.
func (s *serviceImpl) locationPremium(features property.FeatureSet, stats *market.NeighborhoodStats) float64 {
	if stats == nil || !features.KnownSize || stats.AveragePerSqFt <= 0 {
		return 0
	}
	return (stats.AveragePerSqFt - s.deps.Tunables.DefaultPricePerSqFt) * features.LivingArea
}

func neutralBreakdown(now time.Time) domainvaluation.AdjustmentBreakdown {
	return domainvaluation.AdjustmentBreakdown{
		ConditionFactor:    1,
		MarketFactor:       1,
		SeasonFactor:       1,
		Season:             domainvaluation.SeasonOfMonth(now.Month()),
		PropertyTypeFactor: 1,
	}
}

// decodeCached rehydrates a cached result payload. Exposed for the cache
// adapter's round-trip tests.
func decodeCached(raw []byte) (*domainvaluation.Result, error) {
	var r domainvaluation.Result
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode cached valuation")
	}
	return &r, nil
}
