package storage

import (
	"context"
	"fmt"

	"smartkb/internal/models"
)

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

func (r *RunRepo) CreateRun(ctx context.Context, runID string, caseCount, threshold int) error {
	_, err := r.db.Pool.Exec(ctx, `
INSERT INTO generation_runs (run_id, status, case_count, threshold)
VALUES ($1, 'pending', $2, $3)`, runID, caseCount, threshold)
	if err != nil {
		return fmt.Errorf("create generation run: %w", err)
	}
	return nil
}

func (r *RunRepo) UpdateRun(ctx context.Context, runID, status string, categories, articles, skipped int, failReason string) error {
	_, err := r.db.Pool.Exec(ctx, `
UPDATE generation_runs
SET status=$2, categories=$3, articles=$4, skipped=$5, fail_reason=NULLIF($6,''), updated_at=now()
WHERE run_id=$1`, runID, status, categories, articles, skipped, failReason)
	if err != nil {
		return fmt.Errorf("update generation run: %w", err)
	}
	return nil
}

func (r *RunRepo) GetRun(ctx context.Context, runID string) (*models.GenerationRun, error) {
	var run models.GenerationRun
	err := r.db.Pool.QueryRow(ctx, `
SELECT run_id, status, case_count, threshold, categories, articles, skipped, COALESCE(fail_reason,''), created_at, updated_at
FROM generation_runs WHERE run_id=$1`, runID).
		Scan(&run.RunID, &run.Status, &run.CaseCount, &run.Threshold, &run.Categories, &run.Articles, &run.Skipped, &run.FailReason, &run.CreatedAt, &run.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get generation run: %w", err)
	}
	return &run, nil
}
