// Package driver runs a single simulated year: the aging step, storage
// dispatch, the deficit-resolution loop, the extra-action draw, and the
// yearly metrics snapshot.
package driver

import (
	"github.com/rs/zerolog/log"

	"github.com/quietgrid/gridopt/internal/learning"
	"github.com/quietgrid/gridopt/internal/policy"
	"github.com/quietgrid/gridopt/internal/rngx"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/world"
)

// MaxDeficitTries bounds how many sampled deficit actions a year tolerates
// before the driver forces a BatteryStorage addition regardless of what
// the sampler would otherwise draw.
const MaxDeficitTries = 5

// DeficitBonusFactor scales the year's overall success into the closing
// bonus each deficit action receives once the year ends balanced.
const DeficitBonusFactor = 0.1

// RunYear executes one simulated year against w and eng, returning the
// year's metrics snapshot. counts supplies the per-year extra-action
// distribution; nil falls back to the epsilon-scaled heuristic.
func RunYear(w world.World, eng *learning.Engine, counts *policy.CountTable, year int, rng *rngx.Source) world.YearlyMetrics {
	w.UpdateYearClock(year)
	w.UpdatePopulationAndDemand(year)

	mode := eng.OptimizationMode()
	before := captureState(w, year)

	runDeficitLoop(w, eng, year, mode, rng)

	k := policy.SampleExtraActionCount(year, eng.ExplorationRate(), eng, counts, rng)
	for i := 0; i < k; i++ {
		a := policy.Sample(year, eng.NormalWeights(), eng, eng, rng)
		pre := captureState(w, year)
		if err := w.Apply(a, year); err != nil {
			log.Warn().Err(err).Str("action", a.String()).Int("year", year).Msg("driver: action apply reported infeasibility")
		}
		eng.RecordAction(year, a)
		post := captureState(w, year)

		impact := scoring.EvaluateActionImpact(pre, post, mode)
		eng.UpdateNormalWeight(year, a, impact, scoring.StateScore(post, mode))
	}

	after := captureState(w, year)
	awardDeficitBonus(eng, year, mode, before, after)

	return w.YearlyMetrics(year)
}

func captureState(w world.World, year int) scoring.State {
	return scoring.State{
		Emissions: w.NetEmissions(year),
		Opinion:   w.AverageOpinion(year),
		Cost:      w.TotalCapitalCost(year),
	}
}

// maxDeficitStalls bounds how many consecutive zero-progress deficit
// iterations the loop tolerates. Against a well-formed World every
// iteration raises the balance — a forced BatteryStorage addition is
// dispatched immediately — so only a pathological World implementation
// ever trips this.
const maxDeficitStalls = 3

// runDeficitLoop resolves a generation shortfall. Storage dispatch runs
// once before any capacity is added; whatever it cannot absorb is closed
// by repeatedly sampling deficit actions until balance >= 0, forcing
// BatteryStorage after MaxDeficitTries unproductive tries. Capacity built
// mid-loop is dispatched as soon as it lands, so the forced storage
// additions contribute real coverage rather than idle nameplate.
func runDeficitLoop(w world.World, eng *learning.Engine, year int, mode scoring.Mode, rng *rngx.Source) {
	if deficit := -balance(w, year); deficit > 0 {
		w.HandleStorageDispatch(deficit)
	}

	tries := 0
	stalls := 0
	for {
		prev := balance(w, year)
		if prev >= 0 {
			return
		}

		a := policy.SampleDeficit(year, eng.DeficitWeights(), eng.Deficit(), eng, rng)
		if tries >= MaxDeficitTries {
			a = policy.SafeDeficitDefaultAction()
		}
		tries++

		before := captureState(w, year)
		if err := w.Apply(a, year); err != nil {
			log.Warn().Err(err).Str("action", a.String()).Int("year", year).Msg("driver: deficit action apply reported infeasibility")
		}
		eng.RecordDeficitAction(year, a)
		if remaining := -balance(w, year); remaining > 0 {
			w.HandleStorageDispatch(remaining)
		}
		after := captureState(w, year)

		overall := scoring.EvaluateActionImpact(before, after, mode)
		composite := 0.7*overall + 0.15*deltaRatio(before.Emissions, after.Emissions) +
			0.10*deltaRatio(before.Cost, after.Cost) + 0.05*deltaRatio(after.Opinion, before.Opinion)

		stateScore := scoring.StateScore(after, mode)
		eng.UpdateDeficitWeight(year, a, composite, stateScore)
		eng.UpdateNormalWeight(year, a, 0.5*overall, stateScore)

		if balance(w, year) <= prev {
			stalls++
			if stalls >= maxDeficitStalls {
				log.Error().Int("year", year).Float64("balance_MW", balance(w, year)).
					Msg("driver: deficit loop stalled, world refuses to add coverage")
				return
			}
		} else {
			stalls = 0
		}
	}
}

func balance(w world.World, year int) float64 {
	return w.TotalGeneration(year) - w.TotalDemand(year)
}

// deltaRatio returns the fractional improvement of moving from before to
// after where smaller is better (emissions, cost): positive means
// improvement. Callers wanting "bigger is better" (opinion) swap the
// argument order.
func deltaRatio(before, after float64) float64 {
	if before == 0 {
		if after == 0 {
			return 0
		}
		return -1
	}
	return (before - after) / before
}

// awardDeficitBonus closes out the year: if its net effect was a strict
// improvement and the deficit loop ran, every deficit action recorded this
// year gets a small multiplicative bonus.
func awardDeficitBonus(eng *learning.Engine, year int, mode scoring.Mode, before, after scoring.State) {
	deficitActions := eng.CurrentDeficitActionsForYear(year)
	if len(deficitActions) == 0 {
		return
	}
	overallSuccess := scoring.EvaluateActionImpact(before, after, mode)
	if overallSuccess <= 0 {
		return
	}
	bonus := DeficitBonusFactor * overallSuccess
	for _, a := range deficitActions {
		eng.UpdateDeficitWeight(year, a, bonus, bonus)
	}
}
