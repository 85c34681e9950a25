package world

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/action"
)

func testStaticData() StaticData {
	return StaticData{Settlements: []Settlement{
		{ID: "city-1", Population: 1_000_000, PerCapitaDemandKW: 1.2},
	}}
}

func TestAddGeneratorIncreasesGenerationAndCost(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	before := w.TotalCapitalCost(2025)

	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenOnshoreWind, 100), 2025))

	require.Greater(t, w.TotalGeneration(2025), 0.0)
	require.Greater(t, w.TotalCapitalCost(2025), before)
}

func TestCloseGeneratorRemovesItsGeneration(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false).(*simWorld)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenGasCombinedCycle, 100), 2025))
	id := w.generators[0].ID
	genBefore := w.TotalGeneration(2025)

	require.NoError(t, w.Apply(action.NewCloseGenerator(id), 2025))

	require.Less(t, w.TotalGeneration(2025), genBefore)
}

func TestCloseGeneratorFallsBackToTypeTagWhenIDMissing(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false).(*simWorld)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenGasPeaker, 100), 2025))

	require.NoError(t, w.Apply(action.NewCloseGenerator(string(action.GenGasPeaker)), 2025))

	require.False(t, w.generators[0].Active)
}

func TestApplyNeverErrorsOnInfeasibleTarget(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	require.NoError(t, w.Apply(action.NewCloseGenerator("does-not-exist"), 2025))
	require.NoError(t, w.Apply(action.NewUpgradeEfficiency("does-not-exist"), 2025))
}

func TestCarbonOffsetReducesNetEmissions(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenGasCombinedCycle, 100), 2025))
	before := w.NetEmissions(2025)

	require.NoError(t, w.Apply(action.NewAddCarbonOffset(action.OffsetForest, 100), 2025))

	require.Less(t, w.NetEmissions(2025), before)
}

func TestHandleStorageDispatchDrainsAvailableCapacity(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenBatteryStorage, 100), 2025))

	remaining := w.HandleStorageDispatch(10)
	require.Less(t, remaining, 10.0)
}

func TestCloneIsIndependent(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenOnshoreWind, 100), 2025))

	clone := w.Clone()
	require.NoError(t, clone.Apply(action.NewAddGenerator(action.GenOnshoreWind, 100), 2025))

	require.NotEqual(t, w.TotalCapitalCost(2025), clone.TotalCapitalCost(2025))
}

func TestHandleStorageDispatchCountsTowardGeneration(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenBatteryStorage, 100), 2025))
	before := w.TotalGeneration(2025)

	remaining := w.HandleStorageDispatch(10)

	require.Equal(t, 0.0, remaining)
	require.InDelta(t, before+10, w.TotalGeneration(2025), 1e-9)

	w.UpdateYearClock(2026)
	require.InDelta(t, before, w.TotalGeneration(2026), 1e-9)
}

func TestUpgradeAndClosureCostsLandInYearlyBuckets(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false).(*simWorld)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenGasCombinedCycle, 100), 2025))
	id := w.generators[0].ID

	w.UpdateYearClock(2026)
	require.NoError(t, w.Apply(action.NewUpgradeEfficiency(id), 2026))
	require.NoError(t, w.Apply(action.NewCloseGenerator(id), 2026))

	m := w.YearlyMetrics(2026)
	require.Greater(t, m.YearlyUpgradeCost, 0.0)
	require.Greater(t, m.YearlyClosureCost, 0.0)
	require.InDelta(t, m.YearlyCapex+m.YearlyUpgradeCost+m.YearlyClosureCost, m.YearlyTotal, 1e-9)
	require.Greater(t, m.AccumTotal, m.AccumCapex)
}

func TestHandleStorageDispatchNeverDoubleCountsHeadroom(t *testing.T) {
	w := NewWithStaticData(testStaticData(), false)
	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenBatteryStorage, 100), 2025))

	require.Equal(t, 0.0, w.HandleStorageDispatch(200))
	require.Equal(t, 50.0, w.HandleStorageDispatch(50)) // headroom exhausted

	require.NoError(t, w.Apply(action.NewAddGenerator(action.GenBatteryStorage, 100), 2025))
	require.Equal(t, 0.0, w.HandleStorageDispatch(50)) // new battery, fresh headroom
}
