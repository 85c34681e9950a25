// Package policy implements the per-year action draw and the per-year
// "how many extra actions" draw: three sampling regimes (replay,
// exploration, exploitation), the count distribution, and the smart
// fallback pools.
package policy

import (
	"math"
	"sort"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/rngx"
	"github.com/quietgrid/gridopt/internal/weights"
)

// MaxDeficitTries bounds storage-unsuitable deficit picks; past it the
// caller (internal/driver) must force AddGenerator(BatteryStorage).
const MaxDeficitTries = 5

// ReplaySource is the slice of state PolicySampler needs from the
// LearningEngine to run the replay regime, without importing
// internal/learning (which itself depends on policy).
type ReplaySource interface {
	ForceReplay() bool
	BestActionsForYear(year int) []action.Action
	ReplayIndex(year int) int
	AdvanceReplayIndex(year int)
}

// StagnationSource is the subset of engine state the exploration and
// exploitation regimes read.
type StagnationSource interface {
	ExplorationRate() float64
	IterationsWithoutImprovement() int
}

// EffectiveEpsilon decays the exploration rate once stagnation exceeds
// 100 iterations without improvement.
func EffectiveEpsilon(s StagnationSource) float64 {
	eps := s.ExplorationRate()
	iwi := s.IterationsWithoutImprovement()
	if iwi > 100 {
		return eps / (1 + 0.01*float64(iwi))
	}
	return eps
}

// Sample draws the next normal action for year: replay, then
// exploration, then exploitation.
func Sample(year int, table *weights.Table, replay ReplaySource, stag StagnationSource, rng *rngx.Source) action.Action {
	if replay.ForceReplay() {
		if a, ok := nextReplayAction(year, replay); ok {
			return a
		}
		return SmartFallbackNormal(year, rng)
	}

	if rng.Float64() < EffectiveEpsilon(stag) {
		actions := sortedActions(table, year)
		if len(actions) == 0 {
			return SafeDefaultAction()
		}
		return actions[rng.Intn(len(actions))]
	}

	return exploit(year, table, stag, rng)
}

// SampleDeficit implements sample_deficit_action: identical sampling shape
// but over deficit_weights, restricted to AddGenerator candidates.
func SampleDeficit(year int, deficitTable *weights.Table, replay ReplaySource, stag StagnationSource, rng *rngx.Source) action.Action {
	if replay.ForceReplay() {
		// Deficit replay shares the year's replay cursor but reads the
		// recorded deficit sequence: internal/driver passes the engine's
		// deficit-scoped view (learning's DeficitView) as replay.
		if a, ok := nextReplayAction(year, replay); ok {
			return a
		}
		return SmartFallbackDeficit(year, rng)
	}

	if rng.Float64() < EffectiveEpsilon(stag) {
		actions := filterAddGenerator(sortedActions(deficitTable, year))
		if len(actions) == 0 {
			return SafeDeficitDefaultAction()
		}
		return actions[rng.Intn(len(actions))]
	}

	return exploitFiltered(year, deficitTable, stag, rng, filterAddGenerator)
}

func nextReplayAction(year int, replay ReplaySource) (action.Action, bool) {
	best := replay.BestActionsForYear(year)
	idx := replay.ReplayIndex(year)
	if idx < 0 || idx >= len(best) {
		return action.Action{}, false
	}
	replay.AdvanceReplayIndex(year)
	return best[idx], true
}

func exploit(year int, table *weights.Table, stag StagnationSource, rng *rngx.Source) action.Action {
	return exploitFiltered(year, table, stag, rng, nil)
}

func exploitFiltered(year int, table *weights.Table, stag StagnationSource, rng *rngx.Source, filter func([]action.Action) []action.Action) action.Action {
	actions := sortedActions(table, year)
	if filter != nil {
		actions = filter(actions)
	}
	if len(actions) == 0 {
		return SafeDefaultAction()
	}

	iwi := stag.IterationsWithoutImprovement()
	ws := make([]float64, len(actions))
	var positive bool
	for i, a := range actions {
		w := table.Get(year, a)
		if iwi > 500 {
			s := minFloat(float64(iwi)/1000, 3)
			p := 1 + 2*s
			w = powClamped(w, p)
		}
		if w > 0 {
			positive = true
		}
		ws[i] = w
	}
	if !positive {
		return SafeDefaultAction()
	}
	idx := rng.WeightedIndex(ws)
	if idx < 0 || idx >= len(actions) {
		idx = 0
	}
	return actions[idx]
}

func filterAddGenerator(actions []action.Action) []action.Action {
	out := make([]action.Action, 0, len(actions))
	for _, a := range actions {
		if a.IsAddGenerator() {
			out = append(out, a)
		}
	}
	return out
}

func sortedActions(table *weights.Table, year int) []action.Action {
	actions := table.Actions(year)
	sort.Slice(actions, func(i, j int) bool { return actions[i].String() < actions[j].String() })
	return actions
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// powClamped sharpens a weight toward the temperature exponent used once
// stagnation passes 500 iterations without improvement.
func powClamped(w, p float64) float64 {
	if w <= 0 {
		return 0
	}
	return math.Pow(w, p)
}
