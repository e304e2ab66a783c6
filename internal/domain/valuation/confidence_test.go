package valuation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreConfidence(t *testing.T) {
	tests := []struct {
		name string
		in   ConfidenceInputs
		want int
	}{
		{
			name: "nothing but a fatal-check pass",
			in:   ConfidenceInputs{PropertyAge: -1},
			want: 50,
		},
		{
			name: "full evidence clamps at 100",
			in: ConfidenceInputs{
				HasSize: true, HasYearBuilt: true, HasBedBath: true,
				HasComparables: true, HasMarketStats: true, PropertyAge: 5,
			},
			want: 100,
		},
		{
			name: "size and year only",
			in:   ConfidenceInputs{HasSize: true, HasYearBuilt: true, PropertyAge: 15},
			want: 75,
		},
		{
			name: "young property bonus",
			in:   ConfidenceInputs{HasSize: true, HasYearBuilt: true, PropertyAge: 3},
			want: 80,
		},
		{
			name: "old property penalty",
			in:   ConfidenceInputs{HasSize: true, HasYearBuilt: true, PropertyAge: 70},
			want: 70,
		},
		{
			name: "unknown age neither helps nor hurts",
			in:   ConfidenceInputs{HasSize: true, PropertyAge: -1},
			want: 65,
		},
		{
			name: "stats without comparables",
			in:   ConfidenceInputs{HasMarketStats: true, PropertyAge: -1},
			want: 65,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ScoreConfidence(tt.in))
		})
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score int
		want  ConfidenceLevel
	}{
		{100, ConfidenceVeryHigh},
		{90, ConfidenceVeryHigh},
		{89, ConfidenceHigh},
		{80, ConfidenceHigh},
		{79, ConfidenceMedium},
		{70, ConfidenceMedium},
		{69, ConfidenceLow},
		{60, ConfidenceLow},
		{59, ConfidenceUnreliable},
		{0, ConfidenceUnreliable},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelForScore(tt.score), "score %d", tt.score)
	}
}

func TestConfidenceLevel_Margin(t *testing.T) {
	assert.Equal(t, 0.03, ConfidenceVeryHigh.Margin())
	assert.Equal(t, 0.05, ConfidenceHigh.Margin())
	assert.Equal(t, 0.08, ConfidenceMedium.Margin())
	assert.Equal(t, 0.12, ConfidenceLow.Margin())
	assert.Equal(t, 0.20, ConfidenceUnreliable.Margin())
	assert.Equal(t, 0.20, ConfidenceLevel("bogus").Margin())
}

func TestRangeFor(t *testing.T) {
	low, high := ConfidenceHigh.RangeFor(400000)
	assert.InDelta(t, 380000, low, 1e-6)
	assert.InDelta(t, 420000, high, 1e-6)

	low, high = ConfidenceUnreliable.RangeFor(100000)
	assert.InDelta(t, 80000, low, 1e-6)
	assert.InDelta(t, 120000, high, 1e-6)
}

func TestDeriveRiskFactors(t *testing.T) {
	tun := DefaultTunables()

	t.Run("no comparables", func(t *testing.T) {
		risks := DeriveRiskFactors(ConfidenceInputs{PropertyAge: -1}, nil, tun)
		assert.Len(t, risks, 2)
		assert.Contains(t, risks[0], "no comparable sales")
		assert.Contains(t, risks[1], "living area unknown")
	})

	t.Run("thin evidence and stale listings", func(t *testing.T) {
		scored := []ScoredComparable{
			{Similarity: 1, Weight: 1, AdjustedPrice: 400000},
		}
		scored[0].DaysOnMarket = 200

		risks := DeriveRiskFactors(
			ConfidenceInputs{HasSize: true, HasComparables: true, PropertyAge: 20},
			scored, tun)
		assert.Len(t, risks, 2)
		assert.Contains(t, risks[0], "only 1 usable sale")
		assert.Contains(t, risks[1], "longer than 180 days")
	})

	t.Run("aged construction", func(t *testing.T) {
		risks := DeriveRiskFactors(
			ConfidenceInputs{HasSize: true, HasComparables: true, PropertyAge: 80},
			make([]ScoredComparable, 3), tun)
		assert.Len(t, risks, 1)
		assert.Contains(t, risks[0], "80 years old")
	})

	t.Run("clean valuation has none", func(t *testing.T) {
		risks := DeriveRiskFactors(
			ConfidenceInputs{HasSize: true, HasComparables: true, PropertyAge: 12},
			make([]ScoredComparable, 4), tun)
		assert.Empty(t, risks)
	})
}
