package valuation

import (
	"github.com/propsage/compval/internal/domain/property"
)

// Similarity computes a bounded [0,1] similarity between the subject's
// feature set and one comparable candidate.
//
// The score starts at 1.0 and is attenuated by four independent factors:
//
//   - living-area agreement, weighted to contribute SizeSimilarityWeight of
//     the score: factor = (1-w) + w × min(a,b)/max(a,b)
//   - bedroom count: 1.0 when the counts differ by at most one, else
//     BedroomMismatchFactor
//   - construction-year gap: 1.0 for ≤10 years, AgeFactorMid for ≤20,
//     AgeFactorFar beyond
//   - neighborhood: 1.0 on exact (canonical) match, else
//     NeighborhoodMismatchFactor
//
// An identical subject and candidate yield exactly 1.0; every factor is 1.0
// when its compared fields agree, and unknown fields on both sides compare
// as agreeing so a sparse record is not penalised twice (the confidence
// scorer accounts for sparseness separately).
func Similarity(subject property.FeatureSet, candidate property.Comparable, t Tunables) float64 {
	score := 1.0

	score *= sizeFactor(subject.LivingArea, candidate.LivingArea, t.SizeSimilarityWeight)

	if subject.Bedrooms > 0 && candidate.Bedrooms > 0 {
		if diff := absInt(subject.Bedrooms - candidate.Bedrooms); diff > 1 {
			score *= t.BedroomMismatchFactor
		}
	}

	if subject.YearBuilt > 0 && candidate.YearBuilt > 0 {
		switch gap := absInt(subject.YearBuilt - candidate.YearBuilt); {
		case gap <= 10:
			// no attenuation
		case gap <= 20:
			score *= t.AgeFactorMid
		default:
			score *= t.AgeFactorFar
		}
	}

	if !property.SameNeighborhood(subject.Neighborhood, candidate.Neighborhood) {
		// A subject with no neighborhood key cannot match anything; treat it
		// the same as a mismatch unless the candidate also has none.
		if subject.Neighborhood != "" || candidate.Neighborhood != "" {
			score *= t.NeighborhoodMismatchFactor
		}
	}

	return clamp01(score)
}

// sizeFactor maps the ratio of two living areas into [1-w, 1].  When either
// size is unknown the factor is 1.0: absence of evidence neither helps nor
// hurts similarity.
func sizeFactor(a, b, w float64) float64 {
	if a <= 0 || b <= 0 {
		return 1.0
	}
	ratio := a / b
	if b < a {
		ratio = b / a
	}
	return (1 - w) + w*ratio
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
