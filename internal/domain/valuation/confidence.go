package valuation

import "fmt"

// ─────────────────────────────────────────────────────────────────────────────
// Confidence level
// ─────────────────────────────────────────────────────────────────────────────

// ConfidenceLevel buckets a 0-100 confidence score into a coarse grade a
// downstream consumer can branch on.
type ConfidenceLevel string

const (
	ConfidenceVeryHigh   ConfidenceLevel = "VERY_HIGH"
	ConfidenceHigh       ConfidenceLevel = "HIGH"
	ConfidenceMedium     ConfidenceLevel = "MEDIUM"
	ConfidenceLow        ConfidenceLevel = "LOW"
	ConfidenceUnreliable ConfidenceLevel = "UNRELIABLE"
)

// LevelForScore maps a clamped confidence score to its level.
func LevelForScore(score int) ConfidenceLevel {
	switch {
	case score >= 90:
		return ConfidenceVeryHigh
	case score >= 80:
		return ConfidenceHigh
	case score >= 70:
		return ConfidenceMedium
	case score >= 60:
		return ConfidenceLow
	default:
		return ConfidenceUnreliable
	}
}

// Margin is the symmetric uncertainty band, as a fraction of the estimate,
// that the level implies.
func (l ConfidenceLevel) Margin() float64 {
	switch l {
	case ConfidenceVeryHigh:
		return 0.03
	case ConfidenceHigh:
		return 0.05
	case ConfidenceMedium:
		return 0.08
	case ConfidenceLow:
		return 0.12
	default:
		return 0.20
	}
}

// MinScore is the lowest 0-100 score that still maps to this level.
func (l ConfidenceLevel) MinScore() int {
	switch l {
	case ConfidenceVeryHigh:
		return 90
	case ConfidenceHigh:
		return 80
	case ConfidenceMedium:
		return 70
	case ConfidenceLow:
		return 60
	default:
		return 0
	}
}

// ConfidenceLevels lists every level from strongest to weakest.
func ConfidenceLevels() []ConfidenceLevel {
	return []ConfidenceLevel{
		ConfidenceVeryHigh,
		ConfidenceHigh,
		ConfidenceMedium,
		ConfidenceLow,
		ConfidenceUnreliable,
	}
}

// RangeFor expands an estimate to the [low, high] band the level implies.
func (l ConfidenceLevel) RangeFor(estimate float64) (low, high float64) {
	m := l.Margin()
	return estimate * (1 - m), estimate * (1 + m)
}

// ─────────────────────────────────────────────────────────────────────────────
// Scoring
// ─────────────────────────────────────────────────────────────────────────────

// ConfidenceInputs captures the evidence availability signals the score is
// built from.
type ConfidenceInputs struct {
	HasSize        bool
	HasYearBuilt   bool
	HasBedBath     bool
	HasComparables bool
	HasMarketStats bool
	PropertyAge    int // -1 when unknown
}

// ScoreConfidence computes the additive confidence score: a base of 50
// credited for each evidence signal present, a small bump for young
// properties and a small penalty for old ones, clamped to [0, 100].
func ScoreConfidence(in ConfidenceInputs) int {
	score := 50
	if in.HasSize {
		score += 15
	}
	if in.HasYearBuilt {
		score += 10
	}
	if in.HasBedBath {
		score += 10
	}
	if in.HasComparables {
		score += 20
	}
	if in.HasMarketStats {
		score += 15
	}
	if in.PropertyAge >= 0 {
		switch {
		case in.PropertyAge < 10:
			score += 5
		case in.PropertyAge > 50:
			score -= 5
		}
	}
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// ─────────────────────────────────────────────────────────────────────────────
// Risk factors
// ─────────────────────────────────────────────────────────────────────────────

// DeriveRiskFactors lists human-readable caution notes for a completed
// valuation: thin or absent comparable evidence, stale listings among the
// comparables, aged construction, and missing core attributes.
func DeriveRiskFactors(in ConfidenceInputs, scored []ScoredComparable, t Tunables) []string {
	var risks []string
	if !in.HasComparables {
		risks = append(risks, "no comparable sales found; estimate relies on fallback pricing")
	} else if len(scored) < 3 {
		risks = append(risks, fmt.Sprintf("thin comparable evidence: only %d usable sale(s)", len(scored)))
	}
	stale := 0
	for _, s := range scored {
		if s.DaysOnMarket > t.StaleDOMThreshold {
			stale++
		}
	}
	if stale > 0 {
		risks = append(risks, fmt.Sprintf("%d comparable(s) sat on market longer than %d days", stale, t.StaleDOMThreshold))
	}
	if !in.HasSize {
		risks = append(risks, "living area unknown; size-based adjustments skipped")
	}
	if in.PropertyAge > 50 {
		risks = append(risks, fmt.Sprintf("property is %d years old; condition assessment carries extra weight", in.PropertyAge))
	}
	return risks
}
