package learning

import (
	"math"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/weights"
)

// DeficitRewardMultiplier amplifies reward magnitude on the deficit path
// relative to the normal path.
const DeficitRewardMultiplier = 1.5

// UpdateNormalWeight applies the normal-path reinforcement rule for
// action a taken in year, given the instantaneous improvement i and the
// current score finalScore the relative term is computed against.
func (e *Engine) UpdateNormalWeight(year int, a action.Action, i, finalScore float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateWeightLocked(e.normalWeights, year, a, i, finalScore, 1.0)
}

// UpdateDeficitWeight applies the deficit-path reinforcement rule: same
// shape as UpdateNormalWeight but with a 1.5x reward-magnitude multiplier.
func (e *Engine) UpdateDeficitWeight(year int, a action.Action, i, finalScore float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.updateWeightLocked(e.deficitWeights, year, a, i, finalScore, DeficitRewardMultiplier)
}

func (e *Engine) updateWeightLocked(table *weights.Table, year int, a action.Action, i, finalScore, rewardMul float64) {
	relative := finalScore
	if e.bestMetrics != nil {
		bestScore := scoring.Score(*e.bestMetrics, e.optimizationMode)
		if bestScore != 0 {
			relative = (finalScore - bestScore) / bestScore
		}
	}

	wImm := 0.3
	if relative > 0 {
		wImm = 0.7
	}
	combined := (wImm*i + (1-wImm)*relative) * rewardMul

	eta := e.learningRate
	cur := table.Get(year, a)
	var next float64
	if combined >= 0 {
		next = cur * (1 + eta*combined)
	} else {
		next = cur / (1 + eta*math.Abs(combined))
	}
	table.Set(year, a, next)

	if combined < 0 {
		e.boostOtherGeneratorsLocked(table, year, a, eta)
		if best := e.bestMetrics; best != nil && best.FinalNetEmissions <= 0 && best.TotalCost > scoring.Budget*8 {
			doNothing := action.DoNothing()
			w := table.Get(year, doNothing)
			table.Set(year, doNothing, w*(1+eta*0.2))
		}
	}
}

// boostOtherGeneratorsLocked gives every other AddGenerator action of
// the same year a 1+eta*0.1 multiplicative nudge when the triggering
// action's combined reward was negative.
func (e *Engine) boostOtherGeneratorsLocked(table *weights.Table, year int, taken action.Action, eta float64) {
	for _, other := range table.Actions(year) {
		if other == taken || !other.IsAddGenerator() {
			continue
		}
		w := table.Get(year, other)
		table.Set(year, other, w*(1+eta*0.1))
	}
}

// ContrastThreshold is the degradation fraction below which
// ApplyContrastLearning is a no-op.
const ContrastThreshold = 0.03

// ApplyContrastLearning runs when the current run scored significantly
// worse than the all-time best: every best-sequence action is boosted,
// every off-best action the current run took is penalized, and actions
// present in the best sequence but at the wrong index take a milder
// penalty. One algorithm, run twice — once against the normal table and
// action logs, once against the deficit ones.
func (e *Engine) ApplyContrastLearning(currentScore float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bestMetrics == nil {
		return
	}
	bestScore := scoring.Score(*e.bestMetrics, e.optimizationMode)
	if bestScore == 0 {
		return
	}
	d := (bestScore - currentScore) / bestScore
	if d <= ContrastThreshold {
		return
	}

	penaltyFactor, boostFactor := e.contrastFactorsLocked(d)
	e.contrastPassLocked(e.normalWeights, e.currentActions, e.bestActions, penaltyFactor, boostFactor)
	e.contrastPassLocked(e.deficitWeights, e.currentDeficitActions, e.bestDeficitActions, penaltyFactor, boostFactor)
}

// contrastFactorsLocked computes the penalty and boost factors from the
// degradation d and the current stagnation counter: a subpower of d
// amplifies small degradations, and deep stagnation amplifies both
// penalty and boost.
func (e *Engine) contrastFactorsLocked(d float64) (penaltyFactor, boostFactor float64) {
	iwi := float64(e.iterationsWithoutImprovement)
	dScaled := math.Pow(d, 0.3)
	stagnation := 1 + 0.2*math.Pow(iwi/10, 1.8)
	penaltyMul := dScaled * stagnation
	etaEff := e.learningRate * (1 + 0.05*iwi)
	penaltyFactor = 1 / (1 + etaEff*2*penaltyMul)
	boostFactor = 1 + etaEff*3*stagnation
	mildFactor := 1 / (1 + etaEff*penaltyMul*0.5)
	e.mildPenaltyFactor = mildFactor
	return penaltyFactor, boostFactor
}

func (e *Engine) contrastPassLocked(table *weights.Table, current, best map[int][]action.Action, penaltyFactor, boostFactor float64) {
	for year, bestSeq := range best {
		bestIndex := make(map[action.Action]int, len(bestSeq))
		for idx, a := range bestSeq {
			bestIndex[a] = idx
			w := table.Get(year, a)
			table.Set(year, a, w*boostFactor)
		}

		for idx, a := range current[year] {
			bestIdx, inBest := bestIndex[a]
			switch {
			case !inBest:
				w := table.Get(year, a)
				table.Set(year, a, w*penaltyFactor)
			case bestIdx != idx:
				w := table.Get(year, a)
				table.Set(year, a, w*e.mildPenaltyFactor)
			}
		}
	}
}
