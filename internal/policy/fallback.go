package policy

import (
	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/rngx"
)

// yearBand classifies a simulated year into one of the three fallback
// pool columns.
type yearBand int

const (
	bandEarly  yearBand = iota // < 2035
	bandMiddle                 // 2035-2044
	bandLate                   // >= 2045
)

func bandFor(year int) yearBand {
	switch {
	case year < 2035:
		return bandEarly
	case year <= 2044:
		return bandMiddle
	default:
		return bandLate
	}
}

type weightedAction struct {
	a action.Action
	w [3]float64 // indexed by yearBand
}

// normalFallbackPool is the smart-fallback table used when replay runs
// off the end of the recorded best actions. An exploitation draw with
// nothing usable returns SafeDefaultAction instead. Renewables and
// storage gain weight over the horizon; gas loses it.
var normalFallbackPool = []weightedAction{
	{a: action.NewAddGenerator(action.GenOnshoreWind, 100), w: [3]float64{15, 15, 15}},
	{a: action.NewAddGenerator(action.GenOffshoreWind, 100), w: [3]float64{10, 10, 10}},
	{a: action.NewAddGenerator(action.GenUtilitySolar, 100), w: [3]float64{15, 15, 15}},
	{a: action.NewAddGenerator(action.GenBatteryStorage, 100), w: [3]float64{10, 20, 20}},
	{a: action.NewAddCarbonOffset(action.OffsetForest, 100), w: [3]float64{5, 15, 25}},
	{a: action.NewAddCarbonOffset(action.OffsetActiveCapture, 100), w: [3]float64{5, 15, 25}},
	{a: action.NewAddGenerator(action.GenGasCombinedCycle, 100), w: [3]float64{15, 10, 5}},
}

// deficitFallbackPool favors fast-dispatchable capacity.
var deficitFallbackPool = []weightedAction{
	{a: action.NewAddGenerator(action.GenGasPeaker, 100), w: [3]float64{30, 30, 30}},
	{a: action.NewAddGenerator(action.GenBatteryStorage, 100), w: [3]float64{30, 30, 30}},
	{a: action.NewAddGenerator(action.GenGasCombinedCycle, 100), w: [3]float64{20, 20, 20}},
	{a: action.NewAddGenerator(action.GenOnshoreWind, 100), w: [3]float64{10, 10, 10}},
	{a: action.NewAddGenerator(action.GenOffshoreWind, 100), w: [3]float64{5, 5, 5}},
	{a: action.NewAddGenerator(action.GenUtilitySolar, 100), w: [3]float64{5, 5, 5}},
}

func drawFromPool(pool []weightedAction, year int, rng *rngx.Source) action.Action {
	band := bandFor(year)
	weights := make([]float64, len(pool))
	var total float64
	for i, wa := range pool {
		weights[i] = wa.w[band]
		total += weights[i]
	}
	if total <= 0 {
		return SafeDefaultAction()
	}
	idx := rng.WeightedIndex(weights)
	if idx < 0 || idx >= len(pool) {
		idx = 0
	}
	return pool[idx].a
}

// SmartFallbackNormal draws from the year-banded normal-action pool.
func SmartFallbackNormal(year int, rng *rngx.Source) action.Action {
	return drawFromPool(normalFallbackPool, year, rng)
}

// SmartFallbackDeficit draws from the year-banded deficit-action pool.
func SmartFallbackDeficit(year int, rng *rngx.Source) action.Action {
	return drawFromPool(deficitFallbackPool, year, rng)
}

// SafeDefaultAction is the global safety net when there is nothing
// sensible to draw from at all.
func SafeDefaultAction() action.Action {
	return action.NewAddGenerator(action.GenGasPeaker, 100)
}

// SafeDeficitDefaultAction is forced after MaxDeficitTries
// storage-unsuitable deficit picks.
func SafeDeficitDefaultAction() action.Action {
	return action.NewAddGenerator(action.GenBatteryStorage, 100)
}
