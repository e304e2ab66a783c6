package valuation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
	domainvaluation "github.com/propsage/compval/internal/domain/valuation"
	"github.com/propsage/compval/internal/testutil"
	"github.com/propsage/compval/pkg/errors"
)

var fixedNow = time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC)

func fullSubject() property.Subject {
	return property.Subject{
		Address:      "12 Oak Ln",
		Neighborhood: "downtown",
		LivingArea:   2000,
		Bedrooms:     3,
		Bathrooms:    2,
		YearBuilt:    2012,
		Condition:    property.ConditionGood,
		PropertyType: property.TypeSingleFamily,
		Amenities:    []property.Amenity{property.AmenityGarage},
	}
}

func closeSales() []property.Comparable {
	mk := func(id string, price float64, daysAgo int) property.Comparable {
		return property.Comparable{
			ID:           id,
			Neighborhood: "downtown",
			LivingArea:   2000,
			Bedrooms:     3,
			Bathrooms:    2,
			YearBuilt:    2012,
			PropertyType: property.TypeSingleFamily,
			SalePrice:    price,
			SaleDate:     fixedNow.AddDate(0, 0, -daysAgo),
			DistanceMiles: 0.5,
		}
	}
	return []property.Comparable{
		mk("s1", 395000, 30),
		mk("s2", 405000, 45),
		mk("s3", 400000, 60),
	}
}

func newTestService(t *testing.T, deps Dependencies) Service {
	t.Helper()
	if deps.Logger == nil {
		deps.Logger = testutil.NewMockLogger()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return fixedNow }
	}
	svc, err := NewService(deps)
	require.NoError(t, err)
	return svc
}

func TestNewService_RequiresCorpus(t *testing.T) {
	_, err := NewService(Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeBadRequest))
}

func TestNewService_RejectsBadTunables(t *testing.T) {
	tun := domainvaluation.DefaultTunables()
	tun.DefaultPricePerSqFt = -1
	_, err := NewService(Dependencies{Corpus: &testutil.MockCorpus{}, Tunables: tun})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeTunablesInvalid))
}

func TestValue_WellDocumentedSubjectWithCloseSales(t *testing.T) {
	metrics := testutil.NewMockMetrics()
	svc := newTestService(t, Dependencies{
		Corpus:  &testutil.MockCorpus{Sales: closeSales()},
		Stats:   &testutil.MockStatsProvider{Stats: map[string]*market.NeighborhoodStats{"downtown": {MedianSalePrice: 398000}}},
		Metrics: metrics,
	})

	result, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)

	// Base is the weighted mean of three near-identical sales, then good
	// condition (1.05), balanced market, summer season (1.02), and the
	// garage bump.
	assert.InDelta(t, 400000, result.Components.BaseEstimate, 2500)
	wantEstimate := result.Components.BaseEstimate*1.05*1.02 + 8000
	assert.InDelta(t, wantEstimate, result.EstimatedValue, 1e-6)

	assert.Equal(t, 100, result.ConfidenceScore)
	assert.Equal(t, domainvaluation.ConfidenceVeryHigh, result.ConfidenceLevel)
	assert.Equal(t, 0.03, result.Margin)
	assert.InDelta(t, result.EstimatedValue*0.97, result.ValueRangeLow, 1e-6)
	assert.InDelta(t, result.EstimatedValue*1.03, result.ValueRangeHigh, 1e-6)

	assert.Equal(t, 3, result.ComparableCount)
	assert.Empty(t, result.Comparables, "evidence omitted unless requested")
	assert.Equal(t, domainvaluation.FallbackNone, result.FallbackSource)
	assert.Empty(t, result.RiskFactors)
	assert.InDelta(t, result.EstimatedValue/2000, result.PricePerSqFt, 1e-9)
	assert.Equal(t, 1, metrics.Valuations)
}

func TestValue_ComponentsReconcile(t *testing.T) {
	svc := newTestService(t, Dependencies{
		Corpus: &testutil.MockCorpus{Sales: closeSales()},
		Stats: &testutil.MockStatsProvider{Stats: map[string]*market.NeighborhoodStats{
			"downtown": {MedianSalePrice: 398000, AveragePerSqFt: 210},
		}},
	})

	result, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)

	c := result.Components
	assert.InDelta(t, c.BaseEstimate*c.Multiplier+c.AmenityBonus, c.FinalEstimate, 1e-9)
	assert.Equal(t, c.FinalEstimate, result.EstimatedValue)

	// Decomposition: land at the configured share, location premium at the
	// neighborhood's per-sqft position over the $200 baseline, structure
	// taking the remainder, net adjustment closing against the base.
	assert.InDelta(t, 0.25*c.FinalEstimate, c.LandValue, 1e-9)
	assert.InDelta(t, (210.0-200.0)*2000, c.LocationPremium, 1e-9)
	assert.InDelta(t, c.FinalEstimate, c.LandValue+c.StructureValue+c.LocationPremium, 1e-9)
	assert.InDelta(t, c.FinalEstimate-c.BaseEstimate, c.NetAdjustment, 1e-9)
	assert.GreaterOrEqual(t, c.StructureValue, 0.0)
}

func TestValue_MinimalSubjectIsLowConfidence(t *testing.T) {
	svc := newTestService(t, Dependencies{
		Corpus: &testutil.MockCorpus{},
		Stats: &testutil.MockStatsProvider{Stats: map[string]*market.NeighborhoodStats{
			"downtown": {MedianSalePrice: 380000},
		}},
	})

	subject := property.Subject{
		Address:       "unknown parcel",
		Neighborhood:  "downtown",
		DeclaredPrice: 350000,
	}
	result, err := svc.Value(context.Background(), subject, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 65, result.ConfidenceScore)
	assert.Equal(t, domainvaluation.ConfidenceLow, result.ConfidenceLevel)
	assert.Equal(t, domainvaluation.FallbackMedian, result.FallbackSource)
	assert.InDelta(t, 380000*result.Components.Multiplier, result.EstimatedValue, 1e-6)
	assert.NotEmpty(t, result.RiskFactors)
}

func TestValue_FallbackCascade(t *testing.T) {
	t.Run("size heuristic without stats", func(t *testing.T) {
		metrics := testutil.NewMockMetrics()
		svc := newTestService(t, Dependencies{Corpus: &testutil.MockCorpus{}, Metrics: metrics})

		subject := fullSubject()
		result, err := svc.Value(context.Background(), subject, Options{})
		require.NoError(t, err)

		assert.Equal(t, domainvaluation.FallbackSizeHeuristic, result.FallbackSource)
		assert.InDelta(t, 2000*200, result.Components.BaseEstimate, 1e-6)
		assert.Equal(t, 1, metrics.Fallbacks[domainvaluation.FallbackSizeHeuristic])
	})

	t.Run("declared price as last resort", func(t *testing.T) {
		svc := newTestService(t, Dependencies{Corpus: &testutil.MockCorpus{}})

		subject := property.Subject{Address: "x", DeclaredPrice: 275000}
		result, err := svc.Value(context.Background(), subject, Options{})
		require.NoError(t, err)

		assert.Equal(t, domainvaluation.FallbackDeclaredPrice, result.FallbackSource)
		assert.InDelta(t, 275000, result.EstimatedValue, 1e-6)
	})
}

func TestValue_IncompleteRecordFails(t *testing.T) {
	svc := newTestService(t, Dependencies{Corpus: &testutil.MockCorpus{}})

	_, err := svc.Value(context.Background(), property.Subject{Address: "void"}, Options{})
	require.Error(t, err)
	assert.True(t, errors.IsIncompleteRecord(err))
}

func TestValue_SearchFailureDegradesToFallback(t *testing.T) {
	logger := testutil.NewMockLogger()
	svc := newTestService(t, Dependencies{
		Corpus: &testutil.MockCorpus{SearchErr: errors.Internal("corpus down")},
		Stats: &testutil.MockStatsProvider{Stats: map[string]*market.NeighborhoodStats{
			"downtown": {MedianSalePrice: 825000},
		}},
		Logger: logger,
	})

	result, err := svc.Value(context.Background(), fullSubject(), Options{})
	require.NoError(t, err, "a broken corpus degrades, it never errors")

	assert.Equal(t, domainvaluation.FallbackMedian, result.FallbackSource)
	assert.InDelta(t, 825000, result.EstimatedValue, 1e-6)
	assert.Zero(t, result.ComparableCount)
	assert.Contains(t, result.RiskFactors, "comparable search unavailable, estimate uses fallback evidence")
	assert.True(t, logger.HasMessageContaining("warn", "comparable search failed"))
}

func TestValue_Deterministic(t *testing.T) {
	svc := newTestService(t, Dependencies{
		Corpus: &testutil.MockCorpus{Sales: closeSales()},
		Stats: &testutil.MockStatsProvider{Stats: map[string]*market.NeighborhoodStats{
			"downtown": {MedianSalePrice: 398000},
		}},
	})

	opts := DefaultOptions()
	opts.IncludeComparables = true

	first, err := svc.Value(context.Background(), fullSubject(), opts)
	require.NoError(t, err)
	second, err := svc.Value(context.Background(), fullSubject(), opts)
	require.NoError(t, err)

	// Timestamps and elapsed time are provenance, not output.
	first.ElapsedMS, second.ElapsedMS = 0, 0
	assert.Equal(t, first, second)
}

func TestValue_OptionsControlOutput(t *testing.T) {
	svc := newTestService(t, Dependencies{Corpus: &testutil.MockCorpus{Sales: closeSales()}})

	withEvidence, err := svc.Value(context.Background(), fullSubject(), Options{IncludeComparables: true})
	require.NoError(t, err)
	assert.Len(t, withEvidence.Comparables, 3)

	raw, err := svc.Value(context.Background(), fullSubject(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 1.0, raw.Components.Multiplier, "adjustments disabled leaves the aggregate untouched")
	assert.Zero(t, raw.Components.AmenityBonus)
}

func TestValue_CachedResultIsReused(t *testing.T) {
	cache := testutil.NewMockResultCache()
	corpus := &testutil.MockCorpus{Sales: closeSales()}
	svc := newTestService(t, Dependencies{Corpus: corpus, Cache: cache})

	first, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)
	second, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, cache.Misses)
	assert.Equal(t, 1, cache.Hits)
	assert.Equal(t, 1, corpus.SearchCalls, "second request must be served from cache")
	assert.Equal(t, first.EstimatedValue, second.EstimatedValue)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestValue_CacheFailureDegradesToDirect(t *testing.T) {
	cache := testutil.NewMockResultCache()
	cache.Err = errors.New(errors.ErrCodeCacheError, "redis unreachable")
	logger := testutil.NewMockLogger()
	svc := newTestService(t, Dependencies{
		Corpus: &testutil.MockCorpus{Sales: closeSales()},
		Cache:  cache,
		Logger: logger,
	})

	result, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)
	assert.Positive(t, result.EstimatedValue)
	assert.True(t, logger.HasMessageContaining("warn", "cache unavailable"))
}

type panicCorpus struct{}

func (panicCorpus) Search(context.Context, market.SearchCriteria, int) ([]property.Comparable, error) {
	panic("poisoned corpus row")
}

func (panicCorpus) Version(context.Context) (string, error) { return "v1", nil }

func TestValue_PanicContainment(t *testing.T) {
	metrics := testutil.NewMockMetrics()
	svc := newTestService(t, Dependencies{Corpus: panicCorpus{}, Metrics: metrics})

	result, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)

	assert.Zero(t, result.EstimatedValue)
	assert.Zero(t, result.ConfidenceScore)
	assert.Equal(t, domainvaluation.ConfidenceUnreliable, result.ConfidenceLevel)
	assert.Equal(t, 0.20, result.Margin)
	assert.NotEmpty(t, result.RiskFactors)
	assert.Contains(t, result.Notes, "poisoned corpus row", "the failure cause is preserved")
	assert.Equal(t, 1, metrics.PanicsRecovered)
}

func TestFingerprint(t *testing.T) {
	subject := fullSubject()
	opts := DefaultOptions()

	a := Fingerprint(subject, opts, "v1")
	b := Fingerprint(subject, opts, "v1")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	assert.NotEqual(t, a, Fingerprint(subject, opts, "v2"), "corpus version is part of the key")
	assert.NotEqual(t, a, Fingerprint(subject, Options{}, "v1"), "options are part of the key")

	moved := subject
	moved.Address = "13 Oak Ln"
	assert.NotEqual(t, a, Fingerprint(moved, opts, "v1"))
}

func TestFingerprint_AmenityOrderIrrelevant(t *testing.T) {
	s1 := fullSubject()
	s1.Amenities = []property.Amenity{property.AmenityPool, property.AmenityGarage}
	s2 := fullSubject()
	s2.Amenities = []property.Amenity{property.AmenityGarage, property.AmenityPool}

	assert.Equal(t, Fingerprint(s1, Options{}, "v1"), Fingerprint(s2, Options{}, "v1"))
	assert.Equal(t, []property.Amenity{property.AmenityPool, property.AmenityGarage}, s1.Amenities,
		"canonicalisation must not mutate the caller's subject")
}

func TestDecodeCached_RoundTrip(t *testing.T) {
	svc := newTestService(t, Dependencies{Corpus: &testutil.MockCorpus{Sales: closeSales()}})
	result, err := svc.Value(context.Background(), fullSubject(), DefaultOptions())
	require.NoError(t, err)

	cache := testutil.NewMockResultCache()
	var rehydrated domainvaluation.Result
	err = cache.GetOrSet(context.Background(), "k", &rehydrated, func(context.Context) (interface{}, error) {
		return result, nil
	})
	require.NoError(t, err)

	raw := cache.Entries["k"]
	decoded, err := decodeCached(raw)
	require.NoError(t, err)
	assert.Equal(t, result.EstimatedValue, decoded.EstimatedValue)
	assert.Equal(t, result.ConfidenceLevel, decoded.ConfidenceLevel)
}
