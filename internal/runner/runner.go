// Package runner executes one full 2025-2050 sweep over a cloned World
// and a cloned LearningEngine snapshot, producing the run's final metrics,
// action log, and per-year metrics vector.
package runner

import (
	"fmt"

	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/driver"
	"github.com/quietgrid/gridopt/internal/learning"
	"github.com/quietgrid/gridopt/internal/policy"
	"github.com/quietgrid/gridopt/internal/rngx"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/weights"
	"github.com/quietgrid/gridopt/internal/world"
)

// Result is what a single iteration hands back to the coordinator.
type Result struct {
	FinalMetrics  scoring.Metrics
	OutputSummary string
	ActionLog     map[int][]action.Action
	YearlyMetrics []world.YearlyMetrics
	Engine        *learning.Engine
	IsReplay      bool
}

// Option configures a single Run call. internal/coordinator uses these to
// mark an iteration as a full-simulation run or to force it to replay the
// best-known action sequence without changing Run's core signature.
type Option func(*runOptions)

type runOptions struct {
	simMode          world.Mode
	guaranteedReplay bool
}

// WithSimulationMode selects the World's siting-analysis fidelity for this
// iteration.
func WithSimulationMode(m world.Mode) Option {
	return func(o *runOptions) { o.simMode = m }
}

// WithGuaranteedReplay forces this iteration to replay the recorded best
// actions unconditionally, regardless of the stagnation-driven replay
// logic.
func WithGuaranteedReplay(v bool) Option {
	return func(o *runOptions) { o.guaranteedReplay = v }
}

// Run executes one full iteration: clones w and baseEngine, seeds the RNG
// deterministically from seed XOR iteration when seed is non-zero, runs
// the 26-year loop via internal/driver, and — unless this is a replay
// iteration — folds the result back into the best-strategy update and
// contrast learning on the iteration's own engine clone. The caller
// (internal/coordinator) is responsible for merging the returned engine
// back into the shared one under its write-lock.
func Run(baseWorld world.World, baseEngine *learning.Engine, seed uint64, iteration int, opts ...Option) Result {
	cfg := runOptions{simMode: world.ModeFast}
	for _, opt := range opts {
		opt(&cfg)
	}

	w := baseWorld.Clone()
	w.SetSimulationMode(cfg.simMode)
	eng := baseEngine.Clone()
	if cfg.guaranteedReplay {
		eng.SetGuaranteedReplay(true)
	}

	var rng *rngx.Source
	if seed != 0 {
		rng = rngx.New(seed, iteration)
	}

	eng.StartNewIteration(rng.Float64)
	isReplay := eng.ForceReplay()

	counts := policy.NewCountTable()
	var yearly []world.YearlyMetrics
	for year := weights.StartYear; year <= weights.EndYear; year++ {
		m := driver.RunYear(w, eng, counts, year, rng)
		yearly = append(yearly, m)
	}

	final := extractFinalMetrics(yearly)

	if !isReplay {
		eng.UpdateBestStrategy(final)
		currentScore := scoring.Score(final, eng.OptimizationMode())
		eng.ApplyContrastLearning(currentScore)
	}

	actionLog := make(map[int][]action.Action, len(yearly))
	for year := weights.StartYear; year <= weights.EndYear; year++ {
		if acts := eng.CurrentActionsForYear(year); len(acts) > 0 {
			actionLog[year] = acts
		}
	}

	return Result{
		FinalMetrics:  final,
		OutputSummary: summarize(final, isReplay, len(yearly)),
		ActionLog:     actionLog,
		YearlyMetrics: yearly,
		Engine:        eng,
		IsReplay:      isReplay,
	}
}

func summarize(m scoring.Metrics, isReplay bool, years int) string {
	kind := "search"
	if isReplay {
		kind = "replay"
	}
	return fmt.Sprintf("%s over %d years: net_emissions=%.0ft cost=€%.0f opinion=%.2f",
		kind, years, m.FinalNetEmissions, m.TotalCost, m.AveragePublicOpinion)
}

// extractFinalMetrics derives SimulationMetrics from the last yearly
// metrics record. total_cost is taken from the final accum_total, not
// accum_capex, since accum_total also folds in upgrade and closure cost —
// see DESIGN.md.
func extractFinalMetrics(yearly []world.YearlyMetrics) scoring.Metrics {
	if len(yearly) == 0 {
		return scoring.Metrics{}
	}
	last := yearly[len(yearly)-1]
	reliability := 1.0
	for _, y := range yearly {
		if y.BalanceMW < 0 {
			reliability = 0
			break
		}
	}
	return scoring.Metrics{
		FinalNetEmissions:    last.NetCO2,
		AveragePublicOpinion: last.Opinion,
		TotalCost:            last.AccumTotal,
		PowerReliability:     reliability,
	}
}
