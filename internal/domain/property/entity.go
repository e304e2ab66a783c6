// Package property defines the subject and comparable record types that feed
// the valuation engine, together with the normalised feature set extracted
// from a raw subject record.
package property

import (
	"time"

	"github.com/propsage/compval/pkg/errors"
)

// ─────────────────────────────────────────────────────────────────────────────
// Enumerations
// ─────────────────────────────────────────────────────────────────────────────

// Condition is the declared physical condition of a property.
type Condition string

const (
	ConditionExcellent Condition = "excellent"
	ConditionGood      Condition = "good"
	ConditionAverage   Condition = "average"
	ConditionFair      Condition = "fair"
	ConditionPoor      Condition = "poor"
)

// IsValid reports whether the condition is one of the known values.
func (c Condition) IsValid() bool {
	switch c {
	case ConditionExcellent, ConditionGood, ConditionAverage, ConditionFair, ConditionPoor:
		return true
	default:
		return false
	}
}

// ParseCondition normalises a free-text condition string.  Unknown or empty
// values degrade to ConditionAverage so a sloppy upstream record never blocks
// a valuation.
func ParseCondition(s string) Condition {
	c := Condition(s)
	if c.IsValid() {
		return c
	}
	return ConditionAverage
}

// Type tags the broad property category.
type Type string

const (
	TypeSingleFamily Type = "single_family"
	TypeCondo        Type = "condo"
	TypeTownhouse    Type = "townhouse"
	TypeMultiFamily  Type = "multi_family"
	TypeLand         Type = "land"
)

// IsValid reports whether the property type is one of the known values.
func (t Type) IsValid() bool {
	switch t {
	case TypeSingleFamily, TypeCondo, TypeTownhouse, TypeMultiFamily, TypeLand:
		return true
	default:
		return false
	}
}

// ParseType normalises a free-text property-type string, defaulting to
// TypeSingleFamily.
func ParseType(s string) Type {
	t := Type(s)
	if t.IsValid() {
		return t
	}
	return TypeSingleFamily
}

// Amenity is a value-adding feature of a property.
type Amenity string

const (
	AmenityPool           Amenity = "pool"
	AmenityGarage         Amenity = "garage"
	AmenityUpdatedKitchen Amenity = "updated_kitchen"
	AmenityFireplace      Amenity = "fireplace"
	AmenitySolar          Amenity = "solar"
)

// ─────────────────────────────────────────────────────────────────────────────
// Subject — the property being valued
// ─────────────────────────────────────────────────────────────────────────────

// Subject is the property record being valued.  It is created from caller
// input and treated as immutable for the duration of one valuation call.
// Zero numeric fields mean "unknown"; the feature extractor decides which
// absences are fatal and which degrade gracefully.
type Subject struct {
	Address      string    `json:"address"`
	Neighborhood string    `json:"neighborhood"`
	LivingArea   float64   `json:"living_area"` // square feet
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms"`
	YearBuilt    int       `json:"year_built"`
	Condition    Condition `json:"condition"`
	Amenities    []Amenity `json:"amenities,omitempty"`
	PropertyType Type      `json:"property_type"`

	// DeclaredPrice is an optional asking or owner-declared price.  It is
	// never used as the estimate itself, only to band comparable searches and
	// as the anchor of last resort when living area is unknown.
	DeclaredPrice float64 `json:"declared_price,omitempty"`
}

// Age returns the property age in whole years at the given reference time,
// or -1 when the construction year is unknown.
func (s Subject) Age(now time.Time) int {
	if s.YearBuilt <= 0 {
		return -1
	}
	age := now.Year() - s.YearBuilt
	if age < 0 {
		return 0
	}
	return age
}

// HasAmenity reports whether the subject declares the given amenity.
func (s Subject) HasAmenity(a Amenity) bool {
	for _, have := range s.Amenities {
		if have == a {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Comparable — a historical sale matched from the corpus
// ─────────────────────────────────────────────────────────────────────────────

// Comparable is a closed sale returned by the corpus provider.  It exists
// only within one valuation call.
type Comparable struct {
	ID           string    `json:"id"`
	Address      string    `json:"address"`
	Neighborhood string    `json:"neighborhood"`
	LivingArea   float64   `json:"living_area"`
	Bedrooms     int       `json:"bedrooms"`
	Bathrooms    float64   `json:"bathrooms"`
	YearBuilt    int       `json:"year_built"`
	PropertyType Type      `json:"property_type"`
	SalePrice    float64   `json:"sale_price"`
	SaleDate     time.Time `json:"sale_date"`
	DaysOnMarket int       `json:"days_on_market"`

	// PricePerSqFt is the recorded sale price per unit of living area.  When
	// zero it is derived from SalePrice and LivingArea on demand.
	PricePerSqFt float64 `json:"price_per_sqft"`

	// DistanceMiles is the geographic distance from the subject, as computed
	// by the corpus provider.
	DistanceMiles float64 `json:"distance_miles"`
}

// EffectivePricePerSqFt returns the recorded price per square foot, deriving
// it from the sale price when the corpus did not supply one.  Returns 0 when
// neither is derivable.
func (c Comparable) EffectivePricePerSqFt() float64 {
	if c.PricePerSqFt > 0 {
		return c.PricePerSqFt
	}
	if c.LivingArea > 0 && c.SalePrice > 0 {
		return c.SalePrice / c.LivingArea
	}
	return 0
}

// Validate rejects comparables that cannot contribute evidence: a sale with
// no positive price is useless regardless of its other attributes.
func (c Comparable) Validate() error {
	if c.SalePrice <= 0 {
		return errors.New(errors.ErrCodeComparableInvalid, "comparable has no positive sale price").
			WithDetail("id=" + c.ID)
	}
	return nil
}
