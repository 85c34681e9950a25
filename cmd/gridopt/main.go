// gridopt drives MultiRunCoordinator against a grid capital-planning
// World. The CLI is a cobra root command (the optimizer run itself) plus
// `monitor` and `checkpoint` subcommands, with zerolog console output
// and flags overriding any YAML config the user supplies.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/quietgrid/gridopt/internal/config"
	"github.com/quietgrid/gridopt/internal/coordinator"
	"github.com/quietgrid/gridopt/internal/httpmon"
	"github.com/quietgrid/gridopt/internal/obslog"
	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/world"
)

const version = "v0.1.0"

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("gridopt: fatal error")
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath    string
		iterations    int
		parallel      bool
		noContinue    bool
		checkpointDir string
		checkpointInt int
		progressInt   int
		cacheDir      string
		forceFull     bool
		seed          uint64
		costOnly      bool
		enableSales   bool
		quiet         bool
		dbDSN         string
		noMonitor     bool
		monitorHost   string
		monitorPort   int
	)

	root := &cobra.Command{
		Use:     "gridopt",
		Short:   "Adaptive multi-agent search over grid capital-planning strategies",
		Version: version,
		Long: `gridopt searches the space of yearly capital-planning actions for an
electricity grid (2025-2050) using an epsilon-greedy, replay-and-reinforce
policy across many concurrent simulation iterations.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOptimize(cmd.Context(), runFlags{
				configPath:    configPath,
				iterations:    iterations,
				parallel:      parallel,
				noContinue:    noContinue,
				checkpointDir: checkpointDir,
				checkpointInt: checkpointInt,
				progressInt:   progressInt,
				cacheDir:      cacheDir,
				forceFull:     forceFull,
				seed:          seed,
				costOnly:      costOnly,
				enableSales:   enableSales,
				quiet:         quiet,
				dbDSN:         dbDSN,
				noMonitor:     noMonitor,
				monitorHost:   monitorHost,
				monitorPort:   monitorPort,
			})
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML run config (overridden by flags below)")
	root.Flags().IntVar(&iterations, "iterations", 0, "Number of optimizer iterations to run (0 keeps the config/default value)")
	root.Flags().BoolVar(&parallel, "parallel", true, "Run iterations across a worker pool (--parallel=false forces single-threaded)")
	root.Flags().BoolVar(&noContinue, "no-continue", false, "Start fresh instead of resuming from the latest checkpoint")
	root.Flags().StringVar(&checkpointDir, "checkpoint-dir", "", "Root directory for checkpoint run folders")
	root.Flags().IntVar(&checkpointInt, "checkpoint-interval", 0, "Iterations between checkpoint writes")
	root.Flags().IntVar(&progressInt, "progress-interval", 0, "Iterations between progress reports")
	root.Flags().StringVar(&cacheDir, "cache-dir", "", "Directory for fast-mode siting caches")
	root.Flags().BoolVar(&forceFull, "force-full-simulation", false, "Run every iteration in full-simulation mode, ignoring FULL_RUN_PCT")
	root.Flags().Uint64Var(&seed, "seed", 0, "Base RNG seed (0 lets each iteration derive its own)")
	root.Flags().BoolVar(&costOnly, "cost-only", false, "Score strategies on capital cost alone, ignoring emissions and opinion")
	root.Flags().BoolVar(&enableSales, "enable-energy-sales", false, "Enable the optional energy-sales revenue model")
	root.Flags().BoolVar(&quiet, "quiet", false, "Suppress the animated progress bar; structured logs only")
	root.Flags().StringVar(&dbDSN, "db-dsn", "", "Optional Postgres DSN for durable run-summary archival")
	root.Flags().BoolVar(&noMonitor, "no-monitor", false, "Disable the monitoring HTTP server for this run")
	root.Flags().StringVar(&monitorHost, "monitor-host", "", "Host to bind the monitoring server to (overrides config)")
	root.Flags().IntVar(&monitorPort, "monitor-port", 0, "Port to bind the monitoring server to (overrides config, 0 keeps config value)")

	root.SetGlobalNormalizationFunc(normalizeFlagName)
	root.AddCommand(newMonitorCmd())
	root.AddCommand(newCheckpointCmd())
	return root
}

// normalizeFlagName lets config-file spellings like --cost_only resolve to
// their dashed flag names.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

type runFlags struct {
	configPath    string
	iterations    int
	parallel      bool
	noContinue    bool
	checkpointDir string
	checkpointInt int
	progressInt   int
	cacheDir      string
	forceFull     bool
	seed          uint64
	costOnly      bool
	enableSales   bool
	quiet         bool
	dbDSN         string
	noMonitor     bool
	monitorHost   string
	monitorPort   int
}

// resolveConfig loads a YAML config if given, else the baseline defaults,
// then applies any flags the user actually set on top.
func resolveConfig(f runFlags) (config.RunConfig, error) {
	cfg := config.Default()
	if f.configPath != "" {
		loaded, err := config.Load(f.configPath)
		if err != nil {
			return config.RunConfig{}, err
		}
		cfg = loaded
	}

	if f.iterations > 0 {
		cfg.Iterations = f.iterations
	}
	if !f.parallel {
		cfg.Parallel = false
	}
	if f.noContinue {
		cfg.ContinueFromCheckpoint = false
	}
	if f.checkpointDir != "" {
		cfg.CheckpointDir = f.checkpointDir
	}
	if f.checkpointInt > 0 {
		cfg.CheckpointInterval = f.checkpointInt
	}
	if f.progressInt > 0 {
		cfg.ProgressInterval = f.progressInt
	}
	if f.cacheDir != "" {
		cfg.CacheDir = f.cacheDir
	}
	if f.forceFull {
		cfg.ForceFullSimulation = true
	}
	if f.seed != 0 {
		cfg.Seed = f.seed
	}
	if f.costOnly {
		cfg.CostOnly = true
	}
	if f.enableSales {
		cfg.EnableEnergySales = true
	}
	if f.noMonitor {
		cfg.Monitor.Port = 0
	}
	if f.monitorHost != "" {
		cfg.Monitor.Host = f.monitorHost
	}
	if f.monitorPort > 0 {
		cfg.Monitor.Port = f.monitorPort
	}

	if err := cfg.Validate(); err != nil {
		return config.RunConfig{}, err
	}
	return cfg, nil
}

func runOptimize(ctx context.Context, f runFlags) error {
	cfg, err := resolveConfig(f)
	if err != nil {
		return fmt.Errorf("resolve config: %w", err)
	}

	if err := os.MkdirAll(cfg.CheckpointDir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	store := persistence.NewFileStore()
	baseWorld := world.NewWithStaticData(world.DefaultStaticData(), cfg.EnableEnergySales)

	parallelism := 0
	if !cfg.Parallel {
		parallelism = 1
	}
	coord := coordinator.New(store, baseWorld, coordinator.Config{
		Iterations:             cfg.Iterations,
		Parallelism:            parallelism,
		ContinueFromCheckpoint: cfg.ContinueFromCheckpoint,
		CheckpointRoot:         cfg.CheckpointDir,
		CheckpointInterval:     cfg.CheckpointInterval,
		ProgressInterval:       cfg.ProgressInterval,
		Seed:                   cfg.Seed,
		ForceFullSimulation:    cfg.ForceFullSimulation,
		OptimizationMode:       cfg.ScoringMode(),
	})

	progress := obslog.NewRunProgress(cfg.Iterations, f.quiet)
	coord.OnProgress(func(p coordinator.Progress) {
		progress.Update(p.Completed, p.HasBest, p.BestScore)
	})

	var monitorSrv *httpmon.Server
	if cfg.Monitor.Port > 0 {
		monitorCfg := httpmon.DefaultConfig()
		monitorCfg.Host = cfg.Monitor.Host
		monitorCfg.Port = cfg.Monitor.Port
		monitorSrv, err = httpmon.New(monitorCfg, coord)
		if err != nil {
			log.Warn().Err(err).Msg("gridopt: monitoring server disabled, port unavailable")
			monitorSrv = nil
		} else {
			go func() {
				if err := monitorSrv.Start(); err != nil {
					log.Error().Err(err).Msg("gridopt: monitoring server stopped")
				}
			}()
		}
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	summary, err := coord.Run(runCtx)
	progress.Finish(summary.Completed, summary.BestMetrics != nil, summary.BestScore)
	if monitorSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = monitorSrv.Shutdown(shutdownCtx)
	}
	if err != nil {
		return fmt.Errorf("coordinator run: %w", err)
	}

	if f.dbDSN != "" {
		if err := archiveRunSummary(f.dbDSN, cfg, summary, start); err != nil {
			log.Warn().Err(err).Msg("gridopt: failed to archive run summary to Postgres")
		}
	}

	log.Info().
		Str("run_dir", summary.RunDir).
		Int("completed", summary.Completed).
		Float64("best_score", summary.BestScore).
		Msg("gridopt: run complete")
	return nil
}
