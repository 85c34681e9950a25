package scoring

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreEmissionsPhaseInZeroOneRange(t *testing.T) {
	m := Metrics{FinalNetEmissions: 10_000_000, TotalCost: Budget, AveragePublicOpinion: 0.5}
	s := Score(m, ModeDefault)
	require.GreaterOrEqual(t, s, 0.0)
	require.Less(t, s, 1.0)
}

func TestScoreNetZeroPhaseAboveOne(t *testing.T) {
	m := Metrics{FinalNetEmissions: 0, TotalCost: Budget, AveragePublicOpinion: 0.7}
	s := Score(m, ModeDefault)
	require.GreaterOrEqual(t, s, 1.0)
	require.LessOrEqual(t, s, 2.0)
}

func TestScoreMonotoneInEmissions(t *testing.T) {
	low := Metrics{FinalNetEmissions: 1_000_000, TotalCost: Budget, AveragePublicOpinion: 0.5}
	high := Metrics{FinalNetEmissions: 5_000_000, TotalCost: Budget, AveragePublicOpinion: 0.5}
	require.Greater(t, Score(low, ModeDefault), Score(high, ModeDefault))
}

func TestCostOnlyIgnoresEmissions(t *testing.T) {
	a := Metrics{FinalNetEmissions: 1, TotalCost: Budget * 2, AveragePublicOpinion: 0.2}
	b := Metrics{FinalNetEmissions: 9_999_999, TotalCost: Budget * 2, AveragePublicOpinion: 0.9}
	require.Equal(t, Score(a, ModeCostOnly), Score(b, ModeCostOnly))
}

func TestCostOnlyMonotoneDecreasingInCost(t *testing.T) {
	cheap := Metrics{TotalCost: Budget}
	expensive := Metrics{TotalCost: Budget * 50}
	require.Greater(t, Score(cheap, ModeCostOnly), Score(expensive, ModeCostOnly))
}

func TestEvaluateActionImpactSign(t *testing.T) {
	before := State{Emissions: 5_000_000, Cost: Budget}
	improved := State{Emissions: 4_000_000, Cost: Budget}
	worsened := State{Emissions: 6_000_000, Cost: Budget}

	require.Greater(t, EvaluateActionImpact(before, improved, ModeDefault), 0.0)
	require.Less(t, EvaluateActionImpact(before, worsened, ModeDefault), 0.0)
}

func TestBetter(t *testing.T) {
	good := Metrics{FinalNetEmissions: 0, TotalCost: Budget, AveragePublicOpinion: 0.9}
	bad := Metrics{FinalNetEmissions: 0, TotalCost: Budget, AveragePublicOpinion: 0.1}
	require.True(t, Better(good, bad, ModeDefault))
	require.False(t, Better(bad, good, ModeDefault))
}
