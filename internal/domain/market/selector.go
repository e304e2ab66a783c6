package market

import (
	"strings"

	"github.com/propsage/compval/internal/domain/property"
)

// CriteriaForSubject derives the corpus search criteria used to pull a
// comparable pool: same neighborhood or property type, bedroom count
// within one, and a ±20% band around the declared price when one exists.
func CriteriaForSubject(subject property.Subject) SearchCriteria {
	c := SearchCriteria{
		Neighborhood: strings.TrimSpace(subject.Neighborhood),
		PropertyType: subject.PropertyType,
	}
	if subject.Bedrooms > 0 {
		c.MinBedrooms = subject.Bedrooms - 1
		c.MaxBedrooms = subject.Bedrooms + 1
	}
	if subject.DeclaredPrice > 0 {
		c.MinPrice = subject.DeclaredPrice * 0.8
		c.MaxPrice = subject.DeclaredPrice * 1.2
	}
	return c
}

// FilterCandidates applies the comparable selection rules to an already
// fetched pool, for providers that cannot push criteria down to storage.
// A candidate qualifies when it matches the subject's neighborhood or
// property type, its bedroom count is within one of the subject's (when
// both are known), and its sale price sits inside the criteria price band
// (when one is set).  Input order is preserved.
func FilterCandidates(pool []property.Comparable, criteria SearchCriteria) []property.Comparable {
	out := make([]property.Comparable, 0, len(pool))
	for _, c := range pool {
		if !matchesLocale(c, criteria) {
			continue
		}
		if criteria.MinBedrooms > 0 && c.Bedrooms > 0 {
			if c.Bedrooms < criteria.MinBedrooms || c.Bedrooms > criteria.MaxBedrooms {
				continue
			}
		}
		if criteria.MinPrice > 0 && (c.SalePrice < criteria.MinPrice || c.SalePrice > criteria.MaxPrice) {
			continue
		}
		if !criteria.SoldAfter.IsZero() && c.SaleDate.Before(criteria.SoldAfter) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func matchesLocale(c property.Comparable, criteria SearchCriteria) bool {
	if criteria.Neighborhood != "" && strings.EqualFold(strings.TrimSpace(c.Neighborhood), criteria.Neighborhood) {
		return true
	}
	if criteria.PropertyType != "" && c.PropertyType == criteria.PropertyType {
		return true
	}
	return criteria.Neighborhood == "" && criteria.PropertyType == ""
}
