// Package learning implements the reinforcement weight updates, contrast
// learning, and stagnation reactions that drive the optimizer's per-year
// action preferences toward a best-known strategy: a mutable, clampable
// weight system with an explicit snapshot of the best run observed so
// far.
package learning

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/weights"
)

// DefaultLearningRate is η, the engine's default learning rate.
const DefaultLearningRate = 0.2

// BaseExplorationRate feeds the exploration-decay formula.
const BaseExplorationRate = 0.2

// Engine is the LearningEngine. The zero value is not usable; construct
// with New.
type Engine struct {
	mu sync.RWMutex

	normalWeights   *weights.Table
	deficitWeights  *weights.Table

	bestMetrics          *scoring.Metrics
	bestWeights          *weights.Table
	bestActions          map[int][]action.Action
	bestDeficitActions   map[int][]action.Action

	currentActions        map[int][]action.Action
	currentDeficitActions map[int][]action.Action

	iterationCount             int
	iterationsWithoutImprovement int

	explorationRate float64
	learningRate    float64

	forceReplay     bool
	guaranteedReplay bool

	optimizationMode scoring.Mode

	replayIdx map[int]int

	// mildPenaltyFactor is scratch state set by contrastFactorsLocked and
	// read by contrastPassLocked within the same ApplyContrastLearning
	// call; it never escapes that call, so it needs no clone/merge
	// treatment.
	mildPenaltyFactor float64
}

// New constructs an empty Engine with default learning/exploration rates.
func New() *Engine {
	return &Engine{
		normalWeights:         weights.New(),
		deficitWeights:        weights.New(),
		bestActions:           make(map[int][]action.Action),
		bestDeficitActions:    make(map[int][]action.Action),
		currentActions:        make(map[int][]action.Action),
		currentDeficitActions: make(map[int][]action.Action),
		explorationRate:       BaseExplorationRate,
		learningRate:          DefaultLearningRate,
		replayIdx:             make(map[int]int),
	}
}

// NormalWeights exposes the normal WeightTable for direct sampler use.
func (e *Engine) NormalWeights() *weights.Table { return e.normalWeights }

// DeficitWeights exposes the deficit WeightTable for direct sampler use.
func (e *Engine) DeficitWeights() *weights.Table { return e.deficitWeights }

// OptimizationMode reports the scoring mode this engine was configured
// with.
func (e *Engine) OptimizationMode() scoring.Mode {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.optimizationMode
}

// SetOptimizationMode switches between default and cost-only scoring.
func (e *Engine) SetOptimizationMode(m scoring.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.optimizationMode = m
}

// --- policy.ReplaySource / policy.StagnationSource / policy.CountReplaySource ---
//
// Engine satisfies these interfaces directly so internal/policy never
// depends on internal/learning; internal/driver passes the engine (or a
// deficit-scoped view of it, see DeficitView) straight into the sampler
// calls.

// ForceReplay reports whether the current iteration is a forced replay.
func (e *Engine) ForceReplay() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.forceReplay
}

// GuaranteedReplay reports the unconditional-replay override flag.
func (e *Engine) GuaranteedReplay() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.guaranteedReplay
}

// SetGuaranteedReplay sets the unconditional-replay override.
func (e *Engine) SetGuaranteedReplay(v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.guaranteedReplay = v
}

// BestActionsForYear returns the recorded best-run action sequence for
// year, or nil.
func (e *Engine) BestActionsForYear(year int) []action.Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bestActions[year]
}

// BestDeficitActionsForYear returns the recorded best-run deficit action
// sequence for year, or nil.
func (e *Engine) BestDeficitActionsForYear(year int) []action.Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.bestDeficitActions[year]
}

// BestActionSequence returns the full recorded best-run action sequence,
// normal and deficit actions combined per year, for reporting surfaces
// like internal/httpmon's /best endpoint. RecordDeficitAction already
// logs every deficit action in the normal sequence, so a year's normal
// sequence is returned as is; a year with only a deficit sequence
// reports that sequence.
func (e *Engine) BestActionSequence() map[int][]action.Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[int][]action.Action, len(e.bestActions))
	for year, actions := range e.bestActions {
		out[year] = append([]action.Action(nil), actions...)
	}
	for year, actions := range e.bestDeficitActions {
		if _, ok := out[year]; ok {
			continue
		}
		out[year] = append([]action.Action(nil), actions...)
	}
	return out
}

// ReplayIndex returns the current replay cursor for year.
func (e *Engine) ReplayIndex(year int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.replayIdx[year]
}

// AdvanceReplayIndex increments the replay cursor for year.
func (e *Engine) AdvanceReplayIndex(year int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.replayIdx[year]++
}

// ExplorationRate returns the current exploration rate.
func (e *Engine) ExplorationRate() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.explorationRate
}

// IterationsWithoutImprovement returns the stagnation counter.
func (e *Engine) IterationsWithoutImprovement() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.iterationsWithoutImprovement
}

// LearningRate returns η.
func (e *Engine) LearningRate() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.learningRate
}

// IterationCount returns the number of completed iterations.
func (e *Engine) IterationCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.iterationCount
}

// DeficitView adapts Engine to the policy.ReplaySource contract for
// deficit-action sampling: it reads the recorded deficit sequence instead
// of the full action sequence.
type DeficitView struct{ e *Engine }

// Deficit returns a policy.ReplaySource backed by best_deficit_actions.
func (e *Engine) Deficit() DeficitView { return DeficitView{e: e} }

func (d DeficitView) ForceReplay() bool { return d.e.ForceReplay() }
func (d DeficitView) BestActionsForYear(year int) []action.Action {
	return d.e.BestDeficitActionsForYear(year)
}
func (d DeficitView) ReplayIndex(year int) int        { return d.e.ReplayIndex(year) }
func (d DeficitView) AdvanceReplayIndex(year int)      { d.e.AdvanceReplayIndex(year) }

// RecordAction appends action a to the current-iteration log for year.
func (e *Engine) RecordAction(year int, a action.Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentActions[year] = append(e.currentActions[year], a)
}

// RecordDeficitAction appends a to both the deficit log and the normal
// log for year; a deficit action is always also a normal action.
func (e *Engine) RecordDeficitAction(year int, a action.Action) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.currentDeficitActions[year] = append(e.currentDeficitActions[year], a)
	e.currentActions[year] = append(e.currentActions[year], a)
}

// CurrentActionsForYear returns the in-flight action log for year.
func (e *Engine) CurrentActionsForYear(year int) []action.Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]action.Action(nil), e.currentActions[year]...)
}

// CurrentDeficitActionsForYear returns the in-flight deficit action log
// for year.
func (e *Engine) CurrentDeficitActionsForYear(year int) []action.Action {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]action.Action(nil), e.currentDeficitActions[year]...)
}

// BestMetrics returns a copy of the all-time best metrics, or nil if no
// best has been recorded yet.
func (e *Engine) BestMetrics() *scoring.Metrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.bestMetrics == nil {
		return nil
	}
	m := *e.bestMetrics
	return &m
}

// Clone returns a deep, independent snapshot suitable for handing to an
// iteration worker.
func (e *Engine) Clone() *Engine {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := New()
	out.normalWeights = e.normalWeights.Clone()
	out.deficitWeights = e.deficitWeights.Clone()
	if e.bestWeights != nil {
		out.bestWeights = e.bestWeights.Clone()
	}
	if e.bestMetrics != nil {
		m := *e.bestMetrics
		out.bestMetrics = &m
	}
	out.bestActions = cloneActionMap(e.bestActions)
	out.bestDeficitActions = cloneActionMap(e.bestDeficitActions)
	out.currentActions = make(map[int][]action.Action)
	out.currentDeficitActions = make(map[int][]action.Action)
	out.iterationCount = e.iterationCount
	out.iterationsWithoutImprovement = e.iterationsWithoutImprovement
	out.explorationRate = e.explorationRate
	out.learningRate = e.learningRate
	out.forceReplay = e.forceReplay
	out.guaranteedReplay = e.guaranteedReplay
	out.optimizationMode = e.optimizationMode
	out.replayIdx = make(map[int]int, len(e.replayIdx))
	for y, idx := range e.replayIdx {
		out.replayIdx[y] = idx
	}
	return out
}

func cloneActionMap(m map[int][]action.Action) map[int][]action.Action {
	out := make(map[int][]action.Action, len(m))
	for y, actions := range m {
		out[y] = append([]action.Action(nil), actions...)
	}
	return out
}

// StartNewIteration resets per-iteration buffers, advances the
// exploration decay, and runs the stagnation reactions. rngFloat64 must
// be seeded for reproducible stagnation decisions.
func (e *Engine) StartNewIteration(rngFloat64 func() float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.currentActions = make(map[int][]action.Action)
	e.currentDeficitActions = make(map[int][]action.Action)
	e.replayIdx = make(map[int]int)
	e.forceReplay = e.guaranteedReplay

	e.iterationCount++
	e.explorationRate = BaseExplorationRate / (1 + 0.1*float64(e.iterationCount))

	if e.iterationsWithoutImprovement <= 0 {
		return
	}
	e.runStagnationReactionsLocked(rngFloat64)
}

func (e *Engine) runStagnationReactionsLocked(rngFloat64 func() float64) {
	iwi := e.iterationsWithoutImprovement

	if iwi > 800 && iwi%100 == 0 {
		e.restoreBestWeightsLocked(0.75)
	}

	if iwi > 1000 {
		threshold := minF((float64(iwi)-1000)/500, 0.9)
		if e.guaranteedReplay || rngFloat64() < threshold {
			e.forceReplay = true
		}
		e.randomizeWeightsLocked(rngFloat64)
	}
}

// restoreBestWeightsLocked blends current weights toward the best-run
// snapshot: w := blend*w_best + (1-blend)*w_current.
func (e *Engine) restoreBestWeightsLocked(blend float64) {
	if e.bestWeights == nil {
		return
	}
	for _, year := range e.bestWeights.Years() {
		for a, bw := range e.bestWeights.Weights(year) {
			cw := e.normalWeights.Get(year, a)
			e.normalWeights.Set(year, a, blend*bw+(1-blend)*cw)
		}
	}
}

func (e *Engine) randomizeWeightsLocked(rngFloat64 func() float64) {
	for _, year := range e.normalWeights.Years() {
		for a, w := range e.normalWeights.Weights(year) {
			jitter := 1 + 0.1*(2*rngFloat64()-1)
			e.normalWeights.Set(year, a, w*jitter)
		}
	}
	for _, year := range e.deficitWeights.Years() {
		for a, w := range e.deficitWeights.Weights(year) {
			jitter := 1 + 0.1*(2*rngFloat64()-1)
			e.deficitWeights.Set(year, a, w*jitter)
		}
	}
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// UpdateBestStrategy promotes m when it scores strictly better than the
// current best (or there is none yet): snapshot weights/actions/metrics
// and reset the stagnation counter. Anything else increments it.
func (e *Engine) UpdateBestStrategy(m scoring.Metrics) {
	e.mu.Lock()
	defer e.mu.Unlock()

	better := e.bestMetrics == nil || scoring.Better(m, *e.bestMetrics, e.optimizationMode)
	if !better {
		e.iterationsWithoutImprovement++
		return
	}

	e.bestWeights = e.normalWeights.Clone()
	e.bestActions = cloneActionMap(e.currentActions)
	e.bestDeficitActions = cloneActionMap(e.currentDeficitActions)
	snap := m
	e.bestMetrics = &snap
	e.iterationsWithoutImprovement = 0

	log.Debug().Float64("score", scoring.Score(m, e.optimizationMode)).Msg("learning: new best strategy recorded")
}

// MergeWeightsFrom merges other's normal and deficit weight tables into
// e via the table EMA deep-merge. other is treated as read-only.
func (e *Engine) MergeWeightsFrom(other *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.normalWeights.MergeFrom(other.normalWeights)
	e.deficitWeights.MergeFrom(other.deficitWeights)
}

// MergeActionsFrom folds other's current-iteration action logs into e's,
// used by the coordinator to accumulate an iteration's action_log
// alongside the weight merge.
func (e *Engine) MergeActionsFrom(other *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for year, actions := range other.currentActions {
		e.currentActions[year] = append(e.currentActions[year], actions...)
	}
	for year, actions := range other.currentDeficitActions {
		e.currentDeficitActions[year] = append(e.currentDeficitActions[year], actions...)
	}
}

// AdoptBestFrom promotes other's recorded best (weights/actions/metrics)
// into e if other's best outscores e's, and reports whether it did.
// internal/coordinator calls this after each worker returns: the worker's
// engine clone already ran UpdateBestStrategy against its own
// snapshot-at-clone-time best, so its bestMetrics/bestWeights/bestActions
// reflect the single iteration that produced them — copying that snapshot
// wholesale (rather than EMA-merging it like MergeWeightsFrom) is what
// keeps best_actions a coherent, single-iteration action sequence instead
// of a blend of unrelated iterations' choices.
func (e *Engine) AdoptBestFrom(other *Engine) bool {
	other.mu.RLock()
	otherBest := other.bestMetrics
	otherWeights := other.bestWeights
	otherActions := other.bestActions
	otherDeficitActions := other.bestDeficitActions
	other.mu.RUnlock()

	if otherBest == nil {
		return false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.bestMetrics != nil && !scoring.Better(*otherBest, *e.bestMetrics, e.optimizationMode) {
		return false
	}
	snap := *otherBest
	e.bestMetrics = &snap
	if otherWeights != nil {
		e.bestWeights = otherWeights.Clone()
	}
	e.bestActions = cloneActionMap(otherActions)
	e.bestDeficitActions = cloneActionMap(otherDeficitActions)
	e.iterationsWithoutImprovement = 0
	log.Info().Float64("score", scoring.Score(snap, e.optimizationMode)).Msg("coordinator: adopted new global best")
	return true
}
