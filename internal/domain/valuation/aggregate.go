package valuation

import (
	"sort"

	"github.com/propsage/compval/internal/domain/property"
)

// AggregateEstimate produces the weighted-average base estimate
// Σ(wᵢ·pᵢ)/Σwᵢ over the scored comparables.  When every weight collapses
// to zero the estimate degrades to the plain mean of adjusted prices.  The
// second return reports whether any comparable evidence was usable at all;
// callers fall back to FallbackEstimate when it is false.
func AggregateEstimate(scored []ScoredComparable) (float64, bool) {
	if len(scored) == 0 {
		return 0, false
	}

	var weighted, totalWeight, sum float64
	for _, s := range scored {
		weighted += s.Weight * s.AdjustedPrice
		totalWeight += s.Weight
		sum += s.AdjustedPrice
	}
	if totalWeight > 0 {
		return weighted / totalWeight, true
	}
	return sum / float64(len(scored)), true
}

// FallbackEstimate is the no-comparables path.  It never fails: the
// cascade is neighborhood median, then size × default price-per-sqft, then
// the subject's declared price, then zero.  Land-class subjects take a
// reduced share of the per-sqft default since unimproved parcels do not
// carry structure value.
func FallbackEstimate(subject property.FeatureSet, neighborhoodMedian float64, t Tunables) float64 {
	if neighborhoodMedian > 0 {
		return neighborhoodMedian
	}
	if subject.LivingArea > 0 {
		est := subject.LivingArea * t.DefaultPricePerSqFt
		if subject.PropertyType == property.TypeLand {
			est *= t.LandShare
		}
		return est
	}
	if subject.DeclaredPrice > 0 {
		return subject.DeclaredPrice
	}
	return 0
}

// MedianSalePrice returns the median raw sale price of a candidate list,
// or zero when the list is empty.  Input order is not disturbed.
func MedianSalePrice(candidates []property.Comparable) float64 {
	if len(candidates) == 0 {
		return 0
	}
	prices := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c.SalePrice > 0 {
			prices = append(prices, c.SalePrice)
		}
	}
	if len(prices) == 0 {
		return 0
	}
	sort.Float64s(prices)
	mid := len(prices) / 2
	if len(prices)%2 == 0 {
		return (prices[mid-1] + prices[mid]) / 2
	}
	return prices[mid]
}
