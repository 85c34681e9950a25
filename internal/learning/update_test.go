package learning

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/scoring"
)

func TestUpdateNormalWeightIncreasesOnPositiveImprovement(t *testing.T) {
	e := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	before := e.NormalWeights().Get(2025, a)

	e.UpdateNormalWeight(2025, a, 0.2, 1.5)

	require.Greater(t, e.NormalWeights().Get(2025, a), before)
}

func TestUpdateNormalWeightDecreasesOnNegativeImprovement(t *testing.T) {
	e := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	before := e.NormalWeights().Get(2025, a)

	e.UpdateNormalWeight(2025, a, -0.2, -0.5)

	require.Less(t, e.NormalWeights().Get(2025, a), before)
}

func TestUpdateDeficitWeightAmplifiesReward(t *testing.T) {
	a := action.NewAddGenerator(action.GenBatteryStorage, 100)

	normalEngine := New()
	normalEngine.UpdateNormalWeight(2025, a, 0.3, 0.3)
	normalDelta := normalEngine.NormalWeights().Get(2025, a) - 0.5

	deficitEngine := New()
	deficitEngine.UpdateDeficitWeight(2025, a, 0.3, 0.3)
	deficitDelta := deficitEngine.DeficitWeights().Get(2025, a) - 0.5

	require.Greater(t, deficitDelta, normalDelta)
}

func TestUpdateNormalWeightNegativeBoostsOtherGenerators(t *testing.T) {
	e := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	other := action.NewAddGenerator(action.GenOffshoreWind, 100)
	e.NormalWeights().Set(2025, a, 0.5)
	e.NormalWeights().Set(2025, other, 0.5)

	e.UpdateNormalWeight(2025, a, -0.3, -0.2)

	require.Greater(t, e.NormalWeights().Get(2025, other), 0.5)
}

func TestUpdateNormalWeightBoostsDoNothingWhenBestIsExpensiveNetZero(t *testing.T) {
	e := New()
	e.bestMetrics = &scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget * 9, AveragePublicOpinion: 0.5}
	e.NormalWeights().Set(2025, action.DoNothing(), 0.5)
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)

	e.UpdateNormalWeight(2025, a, -0.3, -0.2)

	require.Greater(t, e.NormalWeights().Get(2025, action.DoNothing()), 0.5)
}
