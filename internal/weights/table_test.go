package weights

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/quietgrid/gridopt/internal/action"
)

func TestGetDefaultWeight(t *testing.T) {
	tbl := New()
	w := tbl.Get(2030, action.DoNothing())
	require.Equal(t, DefaultWeight, w)
}

func TestUpdateClamps(t *testing.T) {
	tbl := New()
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	tbl.Set(2025, a, DefaultWeight)

	for i := 0; i < 200; i++ {
		tbl.Update(2025, a, 10) // aggressively grow
	}
	require.LessOrEqual(t, tbl.Get(2025, a), MaxWeight)

	for i := 0; i < 200; i++ {
		tbl.Update(2025, a, 0.01) // aggressively shrink
	}
	require.GreaterOrEqual(t, tbl.Get(2025, a), MinWeight)
}

func TestMergeFromEMA(t *testing.T) {
	// shared at 0.5, thread writes 0.2 then 0.8, merged in that order
	// via the alpha=0.3 EMA against the shared table.
	a := action.NewAddGenerator(action.GenGasPeaker, 100)

	shared := New()
	shared.Set(2030, a, 0.5)

	thread1 := New()
	thread1.Set(2030, a, 0.2)
	shared.MergeFrom(thread1)
	require.InDelta(t, 0.5*0.7+0.2*0.3, shared.Get(2030, a), 1e-9)

	thread2 := New()
	thread2.Set(2030, a, 0.8)
	shared.MergeFrom(thread2)
	want := (0.5*0.7 + 0.2*0.3) * 0.7 + 0.8*0.3
	require.InDelta(t, want, shared.Get(2030, a), 1e-9)
}

func TestMergeFromCopiesMissingVerbatim(t *testing.T) {
	a := action.NewAddGenerator(action.GenUtilitySolar, 120)
	dst := New()
	src := New()
	src.Set(2040, a, 0.73)
	dst.MergeFrom(src)
	require.Equal(t, 0.73, dst.Get(2040, a))
}

func TestCloneIsIndependent(t *testing.T) {
	a := action.NewAddGenerator(action.GenOnshoreWind, 100)
	tbl := New()
	tbl.Set(2030, a, 0.6)
	clone := tbl.Clone()
	clone.Set(2030, a, 0.1)
	require.Equal(t, 0.6, tbl.Get(2030, a))
	require.Equal(t, 0.1, clone.Get(2030, a))
}

func TestNormalizeSumsToOne(t *testing.T) {
	tbl := New()
	a1 := action.NewAddGenerator(action.GenOnshoreWind, 100)
	a2 := action.NewAddGenerator(action.GenGasPeaker, 100)
	tbl.Set(2025, a1, 3)
	tbl.Set(2025, a2, 1)
	tbl.Normalize(2025)
	var total float64
	for _, w := range tbl.Weights(2025) {
		total += w
	}
	require.InDelta(t, 1.0, total, 1e-9)
}

func TestJSONRoundTrip(t *testing.T) {
	tbl := New()
	a1 := action.NewAddGenerator(action.GenOnshoreWind, 150)
	a2 := action.NewAdjustOperation("gen_12", 80)
	tbl.Set(2030, a1, 0.42)
	tbl.Set(2031, a2, 0.1)

	data, err := json.Marshal(tbl)
	require.NoError(t, err)

	loaded := New()
	require.NoError(t, json.Unmarshal(data, loaded))

	require.Equal(t, tbl.Get(2030, a1), loaded.Get(2030, a1))
	require.Equal(t, tbl.Get(2031, a2), loaded.Get(2031, a2))
}

func TestTopK(t *testing.T) {
	tbl := New()
	a1 := action.NewAddGenerator(action.GenOnshoreWind, 100)
	a2 := action.NewAddGenerator(action.GenGasPeaker, 100)
	a3 := action.NewAddGenerator(action.GenUtilitySolar, 100)
	tbl.Set(2025, a1, 0.9)
	tbl.Set(2025, a2, 0.1)
	tbl.Set(2025, a3, 0.5)

	top := tbl.TopK(2025, 2)
	require.Len(t, top, 2)
	require.Equal(t, a1, top[0])
	require.Equal(t, a3, top[1])
}
