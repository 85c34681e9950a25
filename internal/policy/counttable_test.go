package policy

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/rngx"
	"github.com/quietgrid/gridopt/internal/weights"
)

func TestCountTableRowsSumToOne(t *testing.T) {
	tbl := NewCountTable()
	for year := weights.StartYear; year <= weights.EndYear; year++ {
		require.InDelta(t, 1.0, tbl.RowSum(year), 1e-9, "year %d", year)
	}
}

func TestCountTableBiasesTowardFewerActions(t *testing.T) {
	tbl := NewCountTable()
	row := tbl.WeightsForYear(2030)
	require.NotNil(t, row)
	require.Greater(t, row[0], row[1])
	require.Greater(t, row[1], row[MaxActionCount])
}

func TestCountTableDrawStaysInRange(t *testing.T) {
	tbl := NewCountTable()
	rng := rngx.New(17, 0)
	for i := 0; i < 100; i++ {
		k, ok := tbl.Draw(2040, rng)
		require.True(t, ok)
		require.GreaterOrEqual(t, k, 0)
		require.LessOrEqual(t, k, MaxActionCount)
	}
}

func TestCountTableUnknownYearFallsThrough(t *testing.T) {
	tbl := NewCountTable()
	require.Nil(t, tbl.WeightsForYear(1999))
	_, ok := tbl.Draw(1999, rngx.New(1, 0))
	require.False(t, ok)
}

func TestSampleExtraActionCountDrawsFromTableWhenPresent(t *testing.T) {
	eng := newFakeEngine()
	rng := rngx.New(3, 0)

	got := SampleExtraActionCount(2030, 0.3, eng, NewCountTable(), rng)
	require.GreaterOrEqual(t, got, 0)
	require.LessOrEqual(t, got, MaxActionCount)
}

func TestSampleExtraActionCountReplayExcludesAlreadyReplayed(t *testing.T) {
	eng := newFakeEngine()
	eng.force = true
	eng.best[2030] = []action.Action{action.DoNothing(), action.DoNothing(), action.DoNothing()}
	eng.idx[2030] = 2 // two entries already consumed by the deficit loop

	got := SampleExtraActionCount(2030, 0.3, eng, NewCountTable(), rngx.New(1, 0))
	require.Equal(t, 1, got)
}
