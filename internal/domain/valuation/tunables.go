// Package valuation implements the comparable-based valuation engine:
// similarity scoring, composite weighting, per-comparable price adjustment,
// aggregation with fallbacks, market adjustments, and confidence-bounded
// range derivation.
package valuation

import (
	"fmt"
	"math"
	"time"

	"github.com/propsage/compval/internal/domain/property"
	"github.com/propsage/compval/pkg/errors"
)

// Tunables carries every business-tunable heuristic constant used by the
// engine.  None of these values is derived from data; they are operator
// inputs whose calibration source is undocumented, which is why they live in
// configuration rather than as literals in the scoring path.
type Tunables struct {
	// SizeSimilarityWeight is the share of the similarity score attributed to
	// living-area agreement.  With weight w, a candidate of identical size
	// contributes factor 1.0 and a vanishingly small one contributes 1-w.
	SizeSimilarityWeight float64 `mapstructure:"size_similarity_weight"`

	// BedroomMismatchFactor is applied when bedroom counts differ by more
	// than one.
	BedroomMismatchFactor float64 `mapstructure:"bedroom_mismatch_factor"`

	// AgeFactorMid / AgeFactorFar are applied for construction-year gaps of
	// more than 10 and more than 20 years respectively.
	AgeFactorMid float64 `mapstructure:"age_factor_mid"`
	AgeFactorFar float64 `mapstructure:"age_factor_far"`

	// NeighborhoodMismatchFactor is applied when the candidate sits in a
	// different neighborhood from the subject.
	NeighborhoodMismatchFactor float64 `mapstructure:"neighborhood_mismatch_factor"`

	// Recency weights by sale age.
	RecencyWeight90  float64 `mapstructure:"recency_weight_90"`
	RecencyWeight180 float64 `mapstructure:"recency_weight_180"`
	RecencyWeight365 float64 `mapstructure:"recency_weight_365"`
	RecencyWeightOld float64 `mapstructure:"recency_weight_old"`

	// DistanceDecayMiles is the distance at which a comparable's distance
	// weight would reach zero before flooring; MinDistanceWeight is the floor.
	DistanceDecayMiles float64 `mapstructure:"distance_decay_miles"`
	MinDistanceWeight  float64 `mapstructure:"min_distance_weight"`

	// AgeAdjustmentPerYear is the signed currency adjustment applied per year
	// of construction-date difference between a comparable and the subject.
	AgeAdjustmentPerYear float64 `mapstructure:"age_adjustment_per_year"`

	// MonthlyAppreciationRate compounds a comparable's sale price forward to
	// the valuation date; applied only when the sale is older than
	// TimeAdjustmentMinMonths.
	MonthlyAppreciationRate float64 `mapstructure:"monthly_appreciation_rate"`
	TimeAdjustmentMinMonths int     `mapstructure:"time_adjustment_min_months"`

	// DefaultPricePerSqFt anchors the last-resort estimate when neither
	// comparables nor neighborhood statistics are available.
	DefaultPricePerSqFt float64 `mapstructure:"default_price_per_sqft"`

	// LandShare is the fraction of the final estimate attributed to land in
	// the component breakdown.
	LandShare float64 `mapstructure:"land_share"`

	// StaleDOMThreshold marks a comparable's days-on-market as abnormal,
	// contributing a risk factor to the result.
	StaleDOMThreshold int `mapstructure:"stale_dom_threshold"`
}

// DefaultTunables returns the engine defaults.  These mirror the heuristics
// of the original pricing model and should be treated as uncalibrated
// business inputs, not ground truth.
func DefaultTunables() Tunables {
	return Tunables{
		SizeSimilarityWeight:       0.30,
		BedroomMismatchFactor:      0.80,
		AgeFactorMid:               0.90,
		AgeFactorFar:               0.80,
		NeighborhoodMismatchFactor: 0.70,
		RecencyWeight90:            1.0,
		RecencyWeight180:           0.9,
		RecencyWeight365:           0.8,
		RecencyWeightOld:           0.6,
		DistanceDecayMiles:         5.0,
		MinDistanceWeight:          0.1,
		AgeAdjustmentPerYear:       1000,
		MonthlyAppreciationRate:    0.004,
		TimeAdjustmentMinMonths:    3,
		DefaultPricePerSqFt:        200,
		LandShare:                  0.25,
		StaleDOMThreshold:          180,
	}
}

// Validate rejects tunables that would break the engine's invariants
// (similarity bounds, non-negative weights, meaningful decay distances).
func (t Tunables) Validate() error {
	checks := []struct {
		ok   bool
		what string
	}{
		{t.SizeSimilarityWeight > 0 && t.SizeSimilarityWeight <= 1, "size_similarity_weight must be in (0,1]"},
		{inUnit(t.BedroomMismatchFactor), "bedroom_mismatch_factor must be in (0,1]"},
		{inUnit(t.AgeFactorMid), "age_factor_mid must be in (0,1]"},
		{inUnit(t.AgeFactorFar), "age_factor_far must be in (0,1]"},
		{inUnit(t.NeighborhoodMismatchFactor), "neighborhood_mismatch_factor must be in (0,1]"},
		{inUnit(t.RecencyWeight90) && inUnit(t.RecencyWeight180) && inUnit(t.RecencyWeight365) && inUnit(t.RecencyWeightOld), "recency weights must be in (0,1]"},
		{t.DistanceDecayMiles > 0, "distance_decay_miles must be positive"},
		{t.MinDistanceWeight > 0 && t.MinDistanceWeight <= 1, "min_distance_weight must be in (0,1]"},
		{t.MonthlyAppreciationRate >= 0, "monthly_appreciation_rate must be non-negative"},
		{t.TimeAdjustmentMinMonths >= 0, "time_adjustment_min_months must be non-negative"},
		{t.DefaultPricePerSqFt > 0, "default_price_per_sqft must be positive"},
		{t.LandShare >= 0 && t.LandShare < 1, "land_share must be in [0,1)"},
	}
	for _, c := range checks {
		if !c.ok {
			return errors.New(errors.ErrCodeTunablesInvalid, c.what)
		}
	}
	return nil
}

func inUnit(v float64) bool { return v > 0 && v <= 1 }

// ─────────────────────────────────────────────────────────────────────────────
// Static adjustment tables
// ─────────────────────────────────────────────────────────────────────────────

// conditionFactor maps declared condition to a multiplicative estimate
// adjustment.
func conditionFactor(c property.Condition) float64 {
	switch c {
	case property.ConditionExcellent:
		return 1.10
	case property.ConditionGood:
		return 1.05
	case property.ConditionFair:
		return 0.92
	case property.ConditionPoor:
		return 0.85
	default:
		return 1.00
	}
}

// propertyTypeFactor maps property type to a multiplicative estimate
// adjustment relative to single-family baseline.
func propertyTypeFactor(t property.Type) float64 {
	switch t {
	case property.TypeCondo:
		return 0.92
	case property.TypeTownhouse:
		return 0.95
	case property.TypeMultiFamily:
		return 1.15
	case property.TypeLand:
		return 0.85
	default:
		return 1.00
	}
}

// Season is a quarter of the sales calendar.
type Season string

const (
	SeasonSpring Season = "spring"
	SeasonSummer Season = "summer"
	SeasonFall   Season = "fall"
	SeasonWinter Season = "winter"
)

// SeasonOfMonth maps a calendar month to its sales season.
func SeasonOfMonth(month time.Month) Season {
	switch month {
	case 3, 4, 5:
		return SeasonSpring
	case 6, 7, 8:
		return SeasonSummer
	case 9, 10, 11:
		return SeasonFall
	default:
		return SeasonWinter
	}
}

// seasonFactor maps the sales season to a multiplicative estimate adjustment.
func seasonFactor(s Season) float64 {
	switch s {
	case SeasonSpring:
		return 1.05
	case SeasonSummer:
		return 1.02
	case SeasonFall:
		return 0.98
	case SeasonWinter:
		return 0.95
	default:
		return 1.00
	}
}

// amenityBonus returns the additive currency bump for a single amenity.
// Unknown amenities contribute nothing.
func amenityBonus(a property.Amenity) float64 {
	switch a {
	case property.AmenityPool:
		return 15000
	case property.AmenityGarage:
		return 8000
	case property.AmenityUpdatedKitchen:
		return 12000
	case property.AmenityFireplace:
		return 3000
	case property.AmenitySolar:
		return 6000
	default:
		return 0
	}
}

// clamp01 bounds v to [0,1].
func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// String renders the tunables for diagnostic logging.
func (t Tunables) String() string {
	return fmt.Sprintf("Tunables{sizeW=%.2f ageAdj=%.0f/yr apprec=%.3f/mo defPPSF=%.0f}",
		t.SizeSimilarityWeight, t.AgeAdjustmentPerYear, t.MonthlyAppreciationRate, t.DefaultPricePerSqFt)
}
