package property

import (
	"strings"

	"github.com/propsage/compval/pkg/errors"
)

// FeatureSet is the normalised view of a Subject used by every downstream
// valuation component.  All fields are fully resolved: unknown condition has
// already degraded to average, unknown property type to single-family, and
// the Known* flags record which inputs were actually present so the
// confidence scorer can distinguish real data from defaults.
type FeatureSet struct {
	Neighborhood  string
	LivingArea    float64
	Bedrooms      int
	Bathrooms     float64
	YearBuilt     int
	Condition     Condition
	Amenities     []Amenity
	PropertyType  Type
	DeclaredPrice float64

	KnownSize    bool
	KnownYear    bool
	KnownBedBath bool
}

// ExtractFeatures normalises a raw subject record into a FeatureSet.
//
// It fails only when the record carries neither a living area nor a declared
// price — with nothing to anchor on, no estimate is possible and the caller
// receives ErrCodeIncompleteRecord.  Every other missing field degrades
// gracefully: condition defaults to average, property type to single-family,
// and absent counts are recorded as unknown for the confidence scorer.
func ExtractFeatures(s Subject) (FeatureSet, error) {
	if s.LivingArea <= 0 && s.DeclaredPrice <= 0 {
		return FeatureSet{}, errors.IncompleteRecord(
			"subject has neither living area nor declared price").
			WithDetail("address=" + s.Address)
	}

	fs := FeatureSet{
		Neighborhood:  normalizeNeighborhood(s.Neighborhood),
		LivingArea:    s.LivingArea,
		Bedrooms:      s.Bedrooms,
		Bathrooms:     s.Bathrooms,
		YearBuilt:     s.YearBuilt,
		Condition:     s.Condition,
		Amenities:     s.Amenities,
		PropertyType:  s.PropertyType,
		DeclaredPrice: s.DeclaredPrice,

		KnownSize:    s.LivingArea > 0,
		KnownYear:    s.YearBuilt > 0,
		KnownBedBath: s.Bedrooms > 0 && s.Bathrooms > 0,
	}

	if !fs.Condition.IsValid() {
		fs.Condition = ConditionAverage
	}
	if !fs.PropertyType.IsValid() {
		fs.PropertyType = TypeSingleFamily
	}
	return fs, nil
}

// normalizeNeighborhood canonicalises a neighborhood key for exact matching:
// trimmed and lower-cased.  "Downtown" and " downtown " refer to the same
// market area.
func normalizeNeighborhood(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// SameNeighborhood reports whether two raw neighborhood keys refer to the
// same market area under canonical comparison.
func SameNeighborhood(a, b string) bool {
	na, nb := normalizeNeighborhood(a), normalizeNeighborhood(b)
	return na != "" && na == nb
}
