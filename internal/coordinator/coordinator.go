// Package coordinator implements MultiRunCoordinator: the worker pool
// that drives many independent Run iterations against a shared
// LearningEngine, merging each worker's result back under a write-lock
// and periodically checkpointing to disk.
package coordinator

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/quietgrid/gridopt/infra/breakers"
	"github.com/quietgrid/gridopt/internal/action"
	"github.com/quietgrid/gridopt/internal/learning"
	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/runner"
	"github.com/quietgrid/gridopt/internal/scoring"
	"github.com/quietgrid/gridopt/internal/world"
)

// FullRunPct is the trailing fraction of iterations run in full-simulation
// mode rather than the fast, cache-backed siting analysis.
const FullRunPct = 0.10

// ReplayBest makes every full-simulation iteration replay the best-known
// action sequence when one exists, confirming it still holds up under the
// exhaustive siting model.
const ReplayBest = true

// Config parameterizes one coordinator run.
type Config struct {
	Iterations           int
	Parallelism          int // 0 or less selects New's default of 4 workers
	ContinueFromCheckpoint bool
	CheckpointRoot       string
	CheckpointInterval   int
	ProgressInterval     int
	Seed                 uint64
	ForceFullSimulation  bool
	OptimizationMode     scoring.Mode
}

// Progress is the snapshot MultiRunCoordinator publishes every
// ProgressInterval iterations, and what internal/httpmon's /progress
// endpoint serves.
type Progress struct {
	Completed          int
	Total              int
	BestScore          float64
	HasBest            bool
	ElapsedSecs        float64
	IterationsStagnant int
}

// Summary is what Run hands back once all iterations complete.
type Summary struct {
	RunDir      string
	BestMetrics *scoring.Metrics
	BestScore   float64
	Completed   int
}

// Coordinator owns the shared LearningEngine and drives iterations against
// it. The zero value is not usable; construct with New.
type Coordinator struct {
	store     persistence.CheckpointStore
	baseWorld world.World
	cfg       Config

	engine *learning.Engine

	completed int64 // atomic; the only cross-worker counter
	runDir    string

	checkpointBreaker *breakers.Breaker

	progressMu sync.Mutex
	onProgress []func(Progress)
	startedAt  time.Time
}

// New constructs a Coordinator. baseWorld is never mutated directly —
// every iteration clones it.
func New(store persistence.CheckpointStore, baseWorld world.World, cfg Config) *Coordinator {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = 4
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = 50
	}
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = 10
	}
	// Iterations finish in well under a second each, so checkpoint saves
	// land roughly every CheckpointInterval seconds at worst; the breaker's
	// re-probe window is keyed to that cadence.
	cadence := time.Duration(cfg.CheckpointInterval) * time.Second
	return &Coordinator{
		store:             store,
		baseWorld:         baseWorld,
		cfg:               cfg,
		checkpointBreaker: breakers.NewCheckpoint("checkpoint-io", cadence),
	}
}

// OnProgress registers a callback invoked every ProgressInterval
// iterations. Multiple subscribers may register — the console progress
// line and internal/httpmon's broadcaster both do.
func (c *Coordinator) OnProgress(fn func(Progress)) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.onProgress = append(c.onProgress, fn)
}

// LoadForMonitoring resolves the shared engine from the latest checkpoint
// without starting a run, for `gridopt monitor`'s read-only reporting
// against a checkpoint directory produced by a separate `gridopt` process.
func (c *Coordinator) LoadForMonitoring() error {
	c.startedAt = time.Now()
	c.cfg.ContinueFromCheckpoint = true
	return c.resolveEngine()
}

// BestMetrics exposes the shared engine's current all-time best, for
// internal/httpmon's /best endpoint. Safe to call concurrently with Run.
func (c *Coordinator) BestMetrics() *scoring.Metrics {
	if c.engine == nil {
		return nil
	}
	return c.engine.BestMetrics()
}

// BestActions exposes the shared engine's current best-known action
// sequence, keyed by year, for internal/httpmon's /best endpoint.
func (c *Coordinator) BestActions() map[int][]action.Action {
	if c.engine == nil {
		return nil
	}
	return c.engine.BestActionSequence()
}

// Completed returns the number of iterations finished so far. Safe to call
// concurrently with Run.
func (c *Coordinator) Completed() int {
	return int(atomic.LoadInt64(&c.completed))
}

// Total returns the configured iteration count for this run.
func (c *Coordinator) Total() int { return c.cfg.Iterations }

// Run drives cfg.Iterations iterations across a worker pool, merging each
// result into the shared engine, checkpointing periodically, and returning
// the final best strategy found.
func (c *Coordinator) Run(ctx context.Context) (Summary, error) {
	c.startedAt = time.Now()

	if err := c.resolveEngine(); err != nil {
		return Summary{}, fmt.Errorf("resolve starting engine: %w", err)
	}

	stamp := c.startedAt.Format("20060102_150405")
	runDir, err := c.store.NewRunDir(c.cfg.CheckpointRoot, stamp)
	if err != nil {
		return Summary{}, fmt.Errorf("create run dir: %w", err)
	}
	c.runDir = runDir
	log.Info().Str("run_dir", runDir).Int("iterations", c.cfg.Iterations).Msg("coordinator: starting run")

	sem := make(chan struct{}, c.cfg.Parallelism)
	var wg sync.WaitGroup
	var mergeMu sync.Mutex // serializes checkpoint writes; engine merges are independently locked

loop:
	for i := 1; i <= c.cfg.Iterations; i++ {
		select {
		case <-ctx.Done():
			break loop
		default:
		}

		sem <- struct{}{}
		wg.Add(1)
		iteration := i
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			c.runOne(iteration, &mergeMu)
		}()
	}
	wg.Wait()

	if err := c.writeCheckpoint(); err != nil {
		log.Error().Err(err).Msg("coordinator: final checkpoint write failed")
	}

	best := c.engine.BestMetrics()
	score := 0.0
	if best != nil {
		score = scoring.Score(*best, c.cfg.OptimizationMode)
	}
	return Summary{
		RunDir:      c.runDir,
		BestMetrics: best,
		BestScore:   score,
		Completed:   int(atomic.LoadInt64(&c.completed)),
	}, nil
}

// runOne executes a single iteration — read-clone the shared engine, run,
// then merge the result back and checkpoint on interval.
func (c *Coordinator) runOne(iteration int, checkpointMu *sync.Mutex) {
	opts := c.optionsFor(iteration)

	result := runner.Run(c.baseWorld, c.engine, c.cfg.Seed, iteration, opts...)

	c.engine.MergeWeightsFrom(result.Engine)
	c.engine.MergeActionsFrom(result.Engine)
	adopted := c.engine.AdoptBestFrom(result.Engine)
	if adopted {
		log.Info().Int("iteration", iteration).Str("summary", result.OutputSummary).Msg("coordinator: new best strategy")
	} else if !result.IsReplay {
		// The iteration did not beat the shared best, so this only
		// advances the shared engine's stagnation counter.
		c.engine.UpdateBestStrategy(result.FinalMetrics)
	}

	n := atomic.AddInt64(&c.completed, 1)
	c.reportProgress(int(n))

	if int(n)%c.cfg.CheckpointInterval == 0 {
		checkpointMu.Lock()
		tid := (iteration - 1) % c.cfg.Parallelism
		if err := c.writeThreadCheckpoint(tid, result.Engine); err != nil {
			log.Error().Err(err).Int("thread", tid).Msg("coordinator: thread checkpoint write failed")
		}
		if err := c.writeCheckpoint(); err != nil {
			log.Error().Err(err).Int("iteration", iteration).Msg("coordinator: periodic checkpoint write failed")
		}
		checkpointMu.Unlock()
	}
}

// optionsFor decides whether iteration runs in full-simulation mode: the
// trailing FullRunPct of the schedule does (or every iteration when
// forced), and a full-simulation iteration replays the best-known
// sequence when one exists so the winner is validated under the
// exhaustive siting model.
func (c *Coordinator) optionsFor(iteration int) []runner.Option {
	fullFloor := int(float64(c.cfg.Iterations) * (1 - FullRunPct))
	isFull := c.cfg.ForceFullSimulation || iteration > fullFloor

	var opts []runner.Option
	if isFull {
		opts = append(opts, runner.WithSimulationMode(world.ModeFull))
		if ReplayBest && c.engine.BestMetrics() != nil {
			opts = append(opts, runner.WithGuaranteedReplay(true))
		}
	}
	return opts
}

// writeThreadCheckpoint persists one worker's post-iteration engine view
// to thread_<tid>_weights.json, the per-thread file checkpoint
// continuation later merges.
func (c *Coordinator) writeThreadCheckpoint(tid int, eng *learning.Engine) error {
	_, err := c.checkpointBreaker.Execute(func() (any, error) {
		name := fmt.Sprintf("thread_%d_weights.json", tid)
		if err := c.store.WriteJSON(filepath.Join(c.runDir, name), eng); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		return nil, nil
	})
	return err
}

func (c *Coordinator) reportProgress(completed int) {
	if completed%c.cfg.ProgressInterval != 0 {
		return
	}
	c.progressMu.Lock()
	cbs := append([]func(Progress){}, c.onProgress...)
	c.progressMu.Unlock()
	if len(cbs) == 0 {
		return
	}
	best := c.engine.BestMetrics()
	p := Progress{
		Completed:          completed,
		Total:              c.cfg.Iterations,
		HasBest:            best != nil,
		ElapsedSecs:        time.Since(c.startedAt).Seconds(),
		IterationsStagnant: c.engine.IterationsWithoutImprovement(),
	}
	if best != nil {
		p.BestScore = scoring.Score(*best, c.cfg.OptimizationMode)
	}
	for _, cb := range cbs {
		cb(p)
	}
}
