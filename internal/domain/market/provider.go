// Package market defines the provider ports the valuation engine draws
// external evidence through: the closed-sale corpus, neighborhood
// statistics, and broader market context.  Implementations live under
// internal/infrastructure; the engine itself only sees these interfaces.
package market

import (
	"context"
	"time"

	"github.com/propsage/compval/internal/domain/property"
	"github.com/propsage/compval/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Market condition
// ─────────────────────────────────────────────────────────────────────────────

// Condition classifies the prevailing balance of supply and demand.
type Condition string

const (
	ConditionStrongSellers Condition = "strong_sellers"
	ConditionBalanced      Condition = "balanced"
	ConditionStrongBuyers  Condition = "strong_buyers"
	ConditionTransitioning Condition = "transitioning"
)

// IsValid reports whether c is one of the known conditions.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionStrongSellers, ConditionBalanced, ConditionStrongBuyers, ConditionTransitioning:
		return true
	}
	return false
}

// ParseCondition maps free-form input to a Condition, defaulting to
// balanced for anything unrecognised.
func ParseCondition(s string) Condition {
	c := Condition(s)
	if c.IsValid() {
		return c
	}
	return ConditionBalanced
}

// Factor is the multiplicative price adjustment for the condition.
func (c Condition) Factor() float64 {
	switch c {
	case ConditionStrongSellers:
		return 1.08
	case ConditionStrongBuyers:
		return 0.93
	case ConditionTransitioning:
		return 0.96
	default:
		return 1.00
	}
}

// Context is the market snapshot a valuation runs against.  The zero value
// means "balanced market, valued now".
type Context struct {
	Condition   Condition `json:"condition"`
	AsOf        time.Time `json:"as_of"`
	Description string    `json:"description,omitempty"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Neighborhood statistics
// ─────────────────────────────────────────────────────────────────────────────

// NeighborhoodStats carries aggregate pricing for one neighborhood key.
type NeighborhoodStats struct {
	Neighborhood    string    `json:"neighborhood"`
	MedianSalePrice float64   `json:"median_sale_price"`
	AveragePerSqFt  float64   `json:"average_per_sqft"`
	SampleSize      int       `json:"sample_size"`
	MedianDaysOnMkt int       `json:"median_days_on_market"`
	ComputedAt      time.Time `json:"computed_at"`
	YoYAppreciation float64   `json:"yoy_appreciation"`
	InventoryMonths float64   `json:"inventory_months"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Provider ports
// ─────────────────────────────────────────────────────────────────────────────

// SearchCriteria narrows a corpus lookup.  Zero-valued fields are ignored
// by providers.
type SearchCriteria struct {
	Neighborhood string
	PropertyType property.Type
	MinBedrooms  int
	MaxBedrooms  int
	MinPrice     float64
	MaxPrice     float64
	SoldAfter    time.Time
}

// CorpusProvider exposes the closed-sale corpus the engine draws
// comparables from.
type CorpusProvider interface {
	// Search returns up to limit closed sales matching the criteria, in a
	// stable order.  An empty result is not an error.
	Search(ctx context.Context, criteria SearchCriteria, limit int) ([]property.Comparable, error)

	// Version identifies the corpus snapshot, for cache fingerprinting.
	Version(ctx context.Context) (string, error)
}

// NeighborhoodStatsProvider resolves aggregate neighborhood pricing.
// Absence of data is signalled with a not-found error, never a zero-valued
// struct, so callers cannot mistake "unknown" for "free".
type NeighborhoodStatsProvider interface {
	GetStats(ctx context.Context, neighborhood string) (*NeighborhoodStats, error)
}

// ContextProvider reports the market context a valuation should run
// against.
type ContextProvider interface {
	CurrentContext(ctx context.Context) (Context, error)
}

// StaticContextProvider is a ContextProvider pinned to one snapshot,
// suitable for configuration-driven deployments and tests.
type StaticContextProvider struct {
	Ctx Context
}

func (p StaticContextProvider) CurrentContext(context.Context) (Context, error) {
	c := p.Ctx
	if !c.Condition.IsValid() {
		c.Condition = ConditionBalanced
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Market intelligence
// ─────────────────────────────────────────────────────────────────────────────

// IntelligenceProvider is the forward-looking analytics port: rental and
// return estimates layered on top of a valuation.  The engine treats it as
// optional capability.
type IntelligenceProvider interface {
	// EstimateRentalIncome projects monthly rental income for the subject.
	EstimateRentalIncome(ctx context.Context, subject property.Subject, estimatedValue float64) (float64, error)

	// EstimateROI projects an annualised return on investment percentage.
	EstimateROI(ctx context.Context, subject property.Subject, estimatedValue float64) (float64, error)
}

// UnimplementedIntelligence is the default IntelligenceProvider: every
// method reports the capability as not implemented.
type UnimplementedIntelligence struct{}

func (UnimplementedIntelligence) EstimateRentalIncome(context.Context, property.Subject, float64) (float64, error) {
	return 0, errors.NotImplemented("rental income estimation")
}

func (UnimplementedIntelligence) EstimateROI(context.Context, property.Subject, float64) (float64, error) {
	return 0, errors.NotImplemented("ROI estimation")
}
