package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/quietgrid/gridopt/internal/persistence"
)

// runSummaryRepo implements persistence.RunSummaryRepo for PostgreSQL.
type runSummaryRepo struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunSummaryRepo creates a new PostgreSQL run-summary repository.
func NewRunSummaryRepo(db *sqlx.DB, timeout time.Duration) persistence.RunSummaryRepo {
	return &runSummaryRepo{db: db, timeout: timeout}
}

// Upsert inserts or updates the summary for run_id.
func (r *runSummaryRepo) Upsert(ctx context.Context, summary persistence.RunSummary) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	metricsJSON, err := json.Marshal(summary.BestMetrics)
	if err != nil {
		return fmt.Errorf("marshal best metrics: %w", err)
	}

	query := `
		INSERT INTO run_summaries
		(run_id, started_at, finished_at, seed, iterations, optimization_mode,
		 best_metrics, best_score, checkpoint_dir)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			iterations = EXCLUDED.iterations,
			best_metrics = EXCLUDED.best_metrics,
			best_score = EXCLUDED.best_score`

	_, err = r.db.ExecContext(ctx, query,
		summary.RunID, summary.StartedAt, summary.FinishedAt, summary.Seed,
		summary.Iterations, summary.OptimizationMode, metricsJSON,
		summary.BestScore, summary.CheckpointDir)
	if err != nil {
		return fmt.Errorf("upsert run summary: %w", err)
	}
	return nil
}

// GetByRunID retrieves a specific run's summary.
func (r *runSummaryRepo) GetByRunID(ctx context.Context, runID string) (*persistence.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowxContext(ctx, `
		SELECT run_id, started_at, finished_at, seed, iterations, optimization_mode,
		       best_metrics, best_score, checkpoint_dir
		FROM run_summaries WHERE run_id = $1`, runID)
	return scanRunSummary(row)
}

// Best returns the highest-scoring run summary within tr.
func (r *runSummaryRepo) Best(ctx context.Context, tr persistence.TimeRange) (*persistence.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowxContext(ctx, `
		SELECT run_id, started_at, finished_at, seed, iterations, optimization_mode,
		       best_metrics, best_score, checkpoint_dir
		FROM run_summaries
		WHERE started_at >= $1 AND started_at <= $2
		ORDER BY best_score DESC
		LIMIT 1`, tr.From, tr.To)
	return scanRunSummary(row)
}

// ListRange retrieves run summaries within tr, most recent first.
func (r *runSummaryRepo) ListRange(ctx context.Context, tr persistence.TimeRange, limit int) ([]persistence.RunSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryxContext(ctx, `
		SELECT run_id, started_at, finished_at, seed, iterations, optimization_mode,
		       best_metrics, best_score, checkpoint_dir
		FROM run_summaries
		WHERE started_at >= $1 AND started_at <= $2
		ORDER BY started_at DESC
		LIMIT $3`, tr.From, tr.To, limit)
	if err != nil {
		return nil, fmt.Errorf("query run summaries: %w", err)
	}
	defer rows.Close()

	var out []persistence.RunSummary
	for rows.Next() {
		var s persistence.RunSummary
		var metricsJSON []byte
		if err := rows.Scan(&s.RunID, &s.StartedAt, &s.FinishedAt, &s.Seed, &s.Iterations,
			&s.OptimizationMode, &metricsJSON, &s.BestScore, &s.CheckpointDir); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		if err := json.Unmarshal(metricsJSON, &s.BestMetrics); err != nil {
			return nil, fmt.Errorf("unmarshal best metrics: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func scanRunSummary(row *sqlx.Row) (*persistence.RunSummary, error) {
	var s persistence.RunSummary
	var metricsJSON []byte
	err := row.Scan(&s.RunID, &s.StartedAt, &s.FinishedAt, &s.Seed, &s.Iterations,
		&s.OptimizationMode, &metricsJSON, &s.BestScore, &s.CheckpointDir)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan run summary: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &s.BestMetrics); err != nil {
		return nil, fmt.Errorf("unmarshal best metrics: %w", err)
	}
	return &s, nil
}
