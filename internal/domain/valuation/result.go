package valuation

import (
	"fmt"
	"time"

	"github.com/propsage/compval/internal/domain/market"
)

// FallbackSource names which rung of the no-comparables cascade produced
// the base estimate.
type FallbackSource string

const (
	FallbackNone          FallbackSource = ""
	FallbackMedian        FallbackSource = "neighborhood_median"
	FallbackSizeHeuristic FallbackSource = "size_heuristic"
	FallbackDeclaredPrice FallbackSource = "declared_price"
)

// Components is the arithmetic decomposition of the final estimate.  Two
// invariants hold by construction: FinalEstimate == BaseEstimate ×
// Multiplier + AmenityBonus (Finalize), and LandValue + StructureValue +
// LocationPremium == FinalEstimate (Decompose).
type Components struct {
	BaseEstimate  float64 `json:"base_estimate"`
	Multiplier    float64 `json:"multiplier"`
	AmenityBonus  float64 `json:"amenity_bonus"`
	FinalEstimate float64 `json:"final_estimate"`

	LandValue       float64 `json:"land_value"`
	StructureValue  float64 `json:"structure_value"`
	LocationPremium float64 `json:"location_premium"`
	NetAdjustment   float64 `json:"net_adjustment"`
}

// Finalize computes and stores the final estimate from the recorded parts,
// flooring at zero.
func (c *Components) Finalize() float64 {
	v := c.BaseEstimate*c.Multiplier + c.AmenityBonus
	if v < 0 {
		v = 0
	}
	c.FinalEstimate = v
	return v
}

// Decompose splits the final estimate into land, structure, and location
// premium, and records the net adjustment against the base.  Land is the
// configured share of the final figure; the premium is capped so the
// structure value never goes negative; structure takes the remainder.
// Call after Finalize.
func (c *Components) Decompose(landShare, locationPremium float64) {
	c.NetAdjustment = c.FinalEstimate - c.BaseEstimate
	c.LandValue = c.FinalEstimate * landShare
	rest := c.FinalEstimate - c.LandValue
	if locationPremium > rest {
		locationPremium = rest
	}
	c.LocationPremium = locationPremium
	c.StructureValue = rest - locationPremium
}

// Result is the complete output of one valuation run.
type Result struct {
	SubjectAddress  string              `json:"subject_address"`
	EstimatedValue  float64             `json:"estimated_value"`
	ValueRangeLow   float64             `json:"value_range_low"`
	ValueRangeHigh  float64             `json:"value_range_high"`
	PricePerSqFt    float64             `json:"price_per_sqft,omitempty"`
	ConfidenceScore int                 `json:"confidence_score"`
	ConfidenceLevel ConfidenceLevel     `json:"confidence_level"`
	Margin          float64             `json:"margin"`
	Components      Components          `json:"components"`
	Adjustments     AdjustmentBreakdown `json:"adjustments"`
	ComparableCount int                 `json:"comparable_count"`
	Comparables     []ScoredComparable  `json:"comparables,omitempty"`
	FallbackSource  FallbackSource      `json:"fallback_source,omitempty"`
	RiskFactors     []string            `json:"risk_factors,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	MarketCondition market.Condition    `json:"market_condition"`
	CorpusVersion   string              `json:"corpus_version,omitempty"`
	Fingerprint     string              `json:"fingerprint,omitempty"`
	GeneratedAt     time.Time           `json:"generated_at"`
	ElapsedMS       int64               `json:"elapsed_ms"`
}

// ToMap flattens the result into primitive key/value pairs for event
// payloads and log context.  Nested evidence (comparables, risk factors)
// is summarised, not expanded.
func (r Result) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"subject_address":   r.SubjectAddress,
		"estimated_value":   r.EstimatedValue,
		"value_range_low":   r.ValueRangeLow,
		"value_range_high":  r.ValueRangeHigh,
		"confidence_score":  r.ConfidenceScore,
		"confidence_level":  string(r.ConfidenceLevel),
		"margin":            r.Margin,
		"base_estimate":     r.Components.BaseEstimate,
		"multiplier":        r.Components.Multiplier,
		"amenity_bonus":     r.Components.AmenityBonus,
		"land_value":        r.Components.LandValue,
		"structure_value":   r.Components.StructureValue,
		"location_premium":  r.Components.LocationPremium,
		"net_adjustment":    r.Components.NetAdjustment,
		"comparable_count":  r.ComparableCount,
		"market_condition":  string(r.MarketCondition),
		"risk_factor_count": len(r.RiskFactors),
		"elapsed_ms":        r.ElapsedMS,
	}
	if r.PricePerSqFt > 0 {
		m["price_per_sqft"] = r.PricePerSqFt
	}
	if r.FallbackSource != FallbackNone {
		m["fallback_source"] = string(r.FallbackSource)
	}
	if r.Fingerprint != "" {
		m["fingerprint"] = r.Fingerprint
	}
	if r.Notes != "" {
		m["notes"] = r.Notes
	}
	return m
}

// Summary is a one-line human rendering for CLI output and logs.
func (r Result) Summary() string {
	return fmt.Sprintf("%s: $%.0f (%s, %d/100, range $%.0f-$%.0f, %d comps)",
		r.SubjectAddress, r.EstimatedValue, r.ConfidenceLevel, r.ConfidenceScore,
		r.ValueRangeLow, r.ValueRangeHigh, r.ComparableCount)
}
