package learning

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/weights"
)

func TestUpdateBestStrategyRecordsFirstResult(t *testing.T) {
	e := New()
	e.RecordAction(2025, action.NewAddGenerator(action.GenOnshoreWind, 100))
	m := scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget, AveragePublicOpinion: 0.6}

	e.UpdateBestStrategy(m)

	require.Equal(t, 0, e.IterationsWithoutImprovement())
	got := e.BestMetrics()
	require.NotNil(t, got)
	require.Equal(t, m, *got)
	require.Len(t, e.BestActionsForYear(2025), 1)
}

func TestBestActionSequenceCombinesNormalAndDeficitActions(t *testing.T) {
	e := New()
	e.RecordAction(2025, action.NewAddGenerator(action.GenOnshoreWind, 100))
	e.RecordDeficitAction(2025, action.NewAddGenerator(action.GenBatteryStorage, 100))
	e.RecordAction(2026, action.NewAddCarbonOffset(action.OffsetForest, 100))
	e.UpdateBestStrategy(scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget, AveragePublicOpinion: 0.6})

	seq := e.BestActionSequence()

	require.Len(t, seq[2025], 2)
	require.Len(t, seq[2026], 1)
}

func TestUpdateBestStrategyIncrementsStagnationOnWorse(t *testing.T) {
	e := New()
	good := scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget, AveragePublicOpinion: 0.9}
	bad := scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget, AveragePublicOpinion: 0.1}

	e.UpdateBestStrategy(good)
	e.UpdateBestStrategy(bad)

	require.Equal(t, 1, e.IterationsWithoutImprovement())
	got := e.BestMetrics()
	require.Equal(t, good, *got)
}

func TestStartNewIterationResetsForceReplayUnlessGuaranteed(t *testing.T) {
	e := New()
	e.StartNewIteration(func() float64 { return 0.5 })
	require.False(t, e.ForceReplay())

	e.SetGuaranteedReplay(true)
	e.StartNewIteration(func() float64 { return 0.5 })
	require.True(t, e.ForceReplay())
}

func TestStagnationReplayThresholdScenario(t *testing.T) {
	e := New()
	e.iterationsWithoutImprovement = 1001
	e.StartNewIteration(func() float64 { return 0.05 })
	require.False(t, e.ForceReplay())

	e2 := New()
	e2.iterationsWithoutImprovement = 2000
	e2.StartNewIteration(func() float64 { return 0.0005 })
	require.True(t, e2.ForceReplay())
}

func TestCloneIsIndependentOfOriginal(t *testing.T) {
	e := New()
	e.NormalWeights().Set(2025, action.NewAddGenerator(action.GenOnshoreWind, 100), 0.6)

	clone := e.Clone()
	clone.NormalWeights().Set(2025, action.NewAddGenerator(action.GenOnshoreWind, 100), 0.1)

	require.Equal(t, 0.6, e.NormalWeights().Get(2025, action.NewAddGenerator(action.GenOnshoreWind, 100)))
	require.Equal(t, 0.1, clone.NormalWeights().Get(2025, action.NewAddGenerator(action.GenOnshoreWind, 100)))
}

func TestMergeWeightsFromIsEMA(t *testing.T) {
	e := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	e.NormalWeights().Set(2025, a, 0.5)

	other := New()
	other.NormalWeights().Set(2025, a, 0.2)

	e.MergeWeightsFrom(other)
	require.InDelta(t, 0.5*0.7+0.2*0.3, e.NormalWeights().Get(2025, a), 1e-9)
}

func TestJSONRoundTripPreservesScalarState(t *testing.T) {
	e := New()
	e.learningRate = 0.25
	e.explorationRate = 0.11
	e.iterationCount = 3
	e.SetOptimizationMode(scoring.ModeCostOnly)
	e.NormalWeights().Set(2030, action.NewAddGenerator(action.GenGasPeaker, 100), 0.6)

	data, err := e.MarshalJSON()
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, loaded.UnmarshalJSON(data))

	require.Equal(t, 0.25, loaded.LearningRate())
	require.Equal(t, 0.11, loaded.ExplorationRate())
	require.Equal(t, 3, loaded.IterationCount())
	require.Equal(t, scoring.ModeCostOnly, loaded.OptimizationMode())
	require.Equal(t, 0.6, loaded.NormalWeights().Get(2030, action.NewAddGenerator(action.GenGasPeaker, 100)))
}

func TestApplyContrastLearningBoostsBestAndPenalizesOffStrategy(t *testing.T) {
	e := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	b := action.NewAddGenerator(action.GenOffshoreWind, 100)
	c := action.NewAddGenerator(action.GenGasPeaker, 100)

	e.NormalWeights().Set(2030, a, 0.5)
	e.NormalWeights().Set(2030, b, 0.5)
	e.NormalWeights().Set(2030, c, 0.5)

	e.bestActions = map[int][]action.Action{2030: {a, b}}
	e.bestMetrics = &scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget, AveragePublicOpinion: 0.9}
	e.currentActions = map[int][]action.Action{2030: {c}}
	e.iterationsWithoutImprovement = 100

	bestScore := scoring.Score(*e.bestMetrics, scoring.ModeDefault)
	currentScore := bestScore * 0.5 // d = 0.5, matches scenario 4

	wBefore := e.NormalWeights().Get(2030, c)
	aBefore := e.NormalWeights().Get(2030, a)

	e.ApplyContrastLearning(currentScore)

	require.Greater(t, e.NormalWeights().Get(2030, a), aBefore)
	require.Greater(t, e.NormalWeights().Get(2030, b), 0.5)
	require.Less(t, e.NormalWeights().Get(2030, c), wBefore)
	require.GreaterOrEqual(t, e.NormalWeights().Get(2030, c), weights.MinWeight)
	require.LessOrEqual(t, e.NormalWeights().Get(2030, a), weights.MaxWeight)
}

func TestApplyContrastLearningNoOpBelowThreshold(t *testing.T) {
	e := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	e.NormalWeights().Set(2030, a, 0.5)
	e.bestActions = map[int][]action.Action{2030: {a}}
	e.bestMetrics = &scoring.Metrics{FinalNetEmissions: 0, TotalCost: scoring.Budget, AveragePublicOpinion: 0.9}

	bestScore := scoring.Score(*e.bestMetrics, scoring.ModeDefault)
	e.ApplyContrastLearning(bestScore * 0.99) // d well under 0.03

	require.Equal(t, 0.5, e.NormalWeights().Get(2030, a))
}
