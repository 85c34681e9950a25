package runner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/learning"
	"github.com/quietgrid/gridopt/internal/weights"
	"github.com/quietgrid/gridopt/internal/world"
)

func testWorld() world.World {
	return world.NewWithStaticData(world.StaticData{Settlements: []world.Settlement{
		{ID: "city-1", Population: 500_000, PerCapitaDemandKW: 1.0},
	}}, false)
}

func TestRunProducesOneYearlyMetricPerYear(t *testing.T) {
	w := testWorld()
	eng := learning.New()

	result := Run(w, eng, 42, 1)

	require.Len(t, result.YearlyMetrics, weights.EndYear-weights.StartYear+1)
	require.False(t, result.IsReplay)
}

func TestRunUpdatesBestStrategyOnNonReplayIteration(t *testing.T) {
	w := testWorld()
	eng := learning.New()

	result := Run(w, eng, 42, 1)

	require.NotNil(t, result.Engine.BestMetrics())
	require.Equal(t, 0, result.Engine.IterationsWithoutImprovement())
}

func TestRunIsDeterministicForFixedSeedAndIteration(t *testing.T) {
	eng1 := learning.New()
	eng2 := learning.New()

	r1 := Run(testWorld(), eng1, 7, 3)
	r2 := Run(testWorld(), eng2, 7, 3)

	require.Equal(t, r1.FinalMetrics, r2.FinalMetrics)
}

func TestRunActionLogOnlyContainsRecordedYears(t *testing.T) {
	w := testWorld()
	eng := learning.New()

	result := Run(w, eng, 11, 1)

	for year, actions := range result.ActionLog {
		require.NotEmpty(t, actions)
		require.GreaterOrEqual(t, year, weights.StartYear)
		require.LessOrEqual(t, year, weights.EndYear)
	}
}
