package valuation

import (
	"math"
	"time"

	"github.com/propsage/compval/internal/domain/property"
)

// ScoredComparable augments a corpus candidate with the engine's derived
// evidence values.  AdjustedPrice is positive whenever the underlying sale
// price is positive.
type ScoredComparable struct {
	property.Comparable

	// Similarity is the bounded [0,1] feature similarity to the subject.
	Similarity float64 `json:"similarity"`

	// Weight is the composite evidence weight: recency × similarity ×
	// distance.  It is never negative and deliberately unnormalised;
	// normalisation happens during aggregation.
	Weight float64 `json:"weight"`

	// AdjustedPrice is the sale price normalised to "as-if sold today,
	// as-if same size and age as the subject".
	AdjustedPrice float64 `json:"adjusted_price"`
}

// RecencyWeight discounts a sale by its age at the valuation date.
func RecencyWeight(saleDate, now time.Time, t Tunables) float64 {
	age := now.Sub(saleDate)
	switch {
	case age <= 90*24*time.Hour:
		return t.RecencyWeight90
	case age <= 180*24*time.Hour:
		return t.RecencyWeight180
	case age <= 365*24*time.Hour:
		return t.RecencyWeight365
	default:
		return t.RecencyWeightOld
	}
}

// DistanceWeight discounts a comparable by its distance from the subject,
// decaying linearly to a floor of MinDistanceWeight.
func DistanceWeight(miles float64, t Tunables) float64 {
	if miles < 0 {
		miles = 0
	}
	return math.Max(t.MinDistanceWeight, 1.0-miles/t.DistanceDecayMiles)
}

// CompositeWeight combines the three evidence weights for one comparable.
func CompositeWeight(similarity, recency, distance float64) float64 {
	w := similarity * recency * distance
	if w < 0 {
		return 0
	}
	return w
}

// AdjustPrice normalises a comparable's historical sale price to the
// subject's size, age, and the valuation date.  Three sequential adjustments:
//
//  1. Size normalisation — when the sizes differ and both are known, the
//     price is re-derived as price-per-sqft × subject size.
//  2. Age adjustment — signed AgeAdjustmentPerYear per year of
//     construction-date difference; a newer comparable raises the reference
//     price.
//  3. Time-value adjustment — the price is compounded forward at
//     MonthlyAppreciationRate when the sale is older than
//     TimeAdjustmentMinMonths.
//
// The result is floored at zero; for any positive sale price it remains
// positive under valid tunables, since each step either rescales by a
// positive factor or shifts by a bounded amount against a floor.
func AdjustPrice(candidate property.Comparable, subject property.FeatureSet, now time.Time, t Tunables) float64 {
	price := candidate.SalePrice

	// 1. Size normalisation.
	if subject.LivingArea > 0 && candidate.LivingArea > 0 && subject.LivingArea != candidate.LivingArea {
		if ppsf := candidate.EffectivePricePerSqFt(); ppsf > 0 {
			price = ppsf * subject.LivingArea
		}
	}

	// 2. Age adjustment.
	if subject.YearBuilt > 0 && candidate.YearBuilt > 0 {
		price += float64(candidate.YearBuilt-subject.YearBuilt) * t.AgeAdjustmentPerYear
	}

	// 3. Time-value adjustment.
	if months := monthsBetween(candidate.SaleDate, now); months > t.TimeAdjustmentMinMonths {
		price *= math.Pow(1+t.MonthlyAppreciationRate, float64(months))
	}

	if price < 0 {
		return 0
	}
	return price
}

// monthsBetween returns the number of whole 30-day months from a to b,
// clamped at zero for future dates.
func monthsBetween(a, b time.Time) int {
	if !b.After(a) {
		return 0
	}
	return int(b.Sub(a).Hours() / (24 * 30))
}

// ScoreComparables runs similarity, weighting, and price adjustment over a
// candidate list, preserving input order so repeated calls over a frozen
// list are bit-identical.  Candidates that fail validation are dropped, not
// propagated as errors: a single bad corpus row must not sink a valuation.
func ScoreComparables(subject property.FeatureSet, candidates []property.Comparable, now time.Time, t Tunables) []ScoredComparable {
	scored := make([]ScoredComparable, 0, len(candidates))
	for _, c := range candidates {
		if err := c.Validate(); err != nil {
			continue
		}
		sim := Similarity(subject, c, t)
		scored = append(scored, ScoredComparable{
			Comparable:    c,
			Similarity:    sim,
			Weight:        CompositeWeight(sim, RecencyWeight(c.SaleDate, now, t), DistanceWeight(c.DistanceMiles, t)),
			AdjustedPrice: AdjustPrice(c, subject, now, t),
		})
	}
	return scored
}
