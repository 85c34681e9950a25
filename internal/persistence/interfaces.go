// Package persistence defines the optional durable-storage contracts for
// gridopt's run history: a best-effort archive of completed-run summaries
// independent of the checkpoint directory tree (see CheckpointStore in
// checkpoint.go), for deployments that want queryable run history.
package persistence

import (
	"context"
	"time"

	"github.com/quietgrid/gridopt/internal/scoring"
)

// TimeRange bounds a run-history query.
type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// RunSummary is the durable record of one completed MultiRunCoordinator
// run: its final best metrics plus the run parameters that produced them.
type RunSummary struct {
	RunID            string             `json:"run_id" db:"run_id"`
	StartedAt        time.Time          `json:"started_at" db:"started_at"`
	FinishedAt       time.Time          `json:"finished_at" db:"finished_at"`
	Seed             int64              `json:"seed" db:"seed"`
	Iterations       int                `json:"iterations" db:"iterations"`
	OptimizationMode string             `json:"optimization_mode" db:"optimization_mode"`
	BestMetrics      scoring.Metrics    `json:"best_metrics" db:"best_metrics"`
	BestScore        float64            `json:"best_score" db:"best_score"`
	CheckpointDir    string             `json:"checkpoint_dir" db:"checkpoint_dir"`
}

// RunSummaryRepo provides durable persistence of completed-run summaries,
// independent of the filesystem checkpoint tree MultiRunCoordinator
// writes during a run.
type RunSummaryRepo interface {
	// Upsert inserts or updates the summary for RunID.
	Upsert(ctx context.Context, summary RunSummary) error

	// GetByRunID retrieves a specific run's summary.
	GetByRunID(ctx context.Context, runID string) (*RunSummary, error)

	// Best returns the highest-scoring run summary within tr.
	Best(ctx context.Context, tr TimeRange) (*RunSummary, error)

	// ListRange retrieves run summaries within tr, most recent first.
	ListRange(ctx context.Context, tr TimeRange, limit int) ([]RunSummary, error)
}

// Repository aggregates the persistence interfaces gridopt's optional
// database backend provides.
type Repository struct {
	Runs RunSummaryRepo
}

// HealthCheck is the repository health snapshot RepositoryHealth.Health
// returns.
type HealthCheck struct {
	Healthy        bool      `json:"healthy"`
	Errors         []string  `json:"errors,omitempty"`
	LastCheck      time.Time `json:"last_check"`
	ResponseTimeMS int64     `json:"response_time_ms"`
}

// RepositoryHealth provides health monitoring for the persistence layer.
type RepositoryHealth interface {
	Health(ctx context.Context) HealthCheck
	Ping(ctx context.Context) error
}
