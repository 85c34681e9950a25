package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/quietgrid/gridopt/internal/config"
	"github.com/quietgrid/gridopt/internal/coordinator"
	"github.com/quietgrid/gridopt/internal/persistence"
	"github.com/quietgrid/gridopt/internal/persistence/postgres"
	"github.com/quietgrid/gridopt/internal/scoring"
)

// archiveRunSummary records one completed coordinator run in Postgres, for
// deployments that want queryable run history independent of the
// filesystem checkpoint tree.
func archiveRunSummary(dsn string, cfg config.RunConfig, summary coordinator.Summary, startedAt time.Time) error {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return fmt.Errorf("connect to run-history database: %w", err)
	}
	defer db.Close()

	repo := postgres.NewRunSummaryRepo(db, 10*time.Second)

	var best scoring.Metrics
	if summary.BestMetrics != nil {
		best = *summary.BestMetrics
	}

	mode := "default"
	if cfg.CostOnly {
		mode = "cost_only"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return repo.Upsert(ctx, persistence.RunSummary{
		RunID:            summary.RunDir,
		StartedAt:        startedAt,
		FinishedAt:       time.Now(),
		Seed:             int64(cfg.Seed),
		Iterations:       summary.Completed,
		OptimizationMode: mode,
		BestMetrics:      best,
		BestScore:        summary.BestScore,
		CheckpointDir:    cfg.CheckpointDir,
	})
}
