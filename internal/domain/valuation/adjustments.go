package valuation

import (
	"time"

	"github.com/propsage/compval/internal/domain/market"
	"github.com/propsage/compval/internal/domain/property"
)

// AdjustmentBreakdown records every factor applied on top of the base
// estimate so a caller can reconstruct the final figure exactly:
//
//	final = base × Condition × Market × Season × PropertyType + AmenityBonus
type AdjustmentBreakdown struct {
	ConditionFactor    float64            `json:"condition_factor"`
	MarketFactor       float64            `json:"market_factor"`
	SeasonFactor       float64            `json:"season_factor"`
	Season             Season             `json:"season"`
	PropertyTypeFactor float64            `json:"property_type_factor"`
	AmenityBonuses     map[string]float64 `json:"amenity_bonuses,omitempty"`
	AmenityBonus       float64            `json:"amenity_bonus"`
}

// Multiplier is the product of all multiplicative factors.
func (b AdjustmentBreakdown) Multiplier() float64 {
	return b.ConditionFactor * b.MarketFactor * b.SeasonFactor * b.PropertyTypeFactor
}

// Apply returns the adjusted estimate for a base value, floored at zero.
func (b AdjustmentBreakdown) Apply(base float64) float64 {
	v := base*b.Multiplier() + b.AmenityBonus
	if v < 0 {
		return 0
	}
	return v
}

// ApplyAdjustments derives the full adjustment breakdown for a subject at
// a valuation date.  Multiplicative factors cover physical condition, the
// prevailing market, the season of the valuation date, and the property
// class; recognised amenities contribute fixed additive bumps on top.
// Unknown amenities contribute nothing and duplicate amenity entries count
// once.
func ApplyAdjustments(subject property.FeatureSet, mkt market.Context, now time.Time) AdjustmentBreakdown {
	b := AdjustmentBreakdown{
		ConditionFactor:    conditionFactor(subject.Condition),
		MarketFactor:       mkt.Condition.Factor(),
		Season:             SeasonOfMonth(now.Month()),
		PropertyTypeFactor: propertyTypeFactor(subject.PropertyType),
	}
	b.SeasonFactor = seasonFactor(b.Season)

	seen := make(map[property.Amenity]bool, len(subject.Amenities))
	for _, a := range subject.Amenities {
		if seen[a] {
			continue
		}
		seen[a] = true
		if bonus := amenityBonus(a); bonus > 0 {
			if b.AmenityBonuses == nil {
				b.AmenityBonuses = make(map[string]float64)
			}
			b.AmenityBonuses[string(a)] = bonus
			b.AmenityBonus += bonus
		}
	}
	return b
}
