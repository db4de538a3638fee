package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/inference-bench/inference-bench/pkg/models"
)

// RunStore handles benchmark run persistence
type RunStore struct {
	db *DB
}

// NewRunStore creates a new run store
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// Create inserts a new run together with its full report document
func (s *RunStore) Create(ctx context.Context, run *models.Run, reportJSON []byte) error {
	query := `
		INSERT INTO runs (
			id, model, endpoint, status,
			total_requests, total_failures,
			prompt_tokens, completion_tokens, total_tokens,
			duration_seconds, requests_per_second,
			report, started_at, finished_at, created_at
		) VALUES (
			?, ?, ?, ?,
			?, ?,
			?, ?, ?,
			?, ?,
			?, ?, ?, ?
		)
	`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Model, run.Endpoint, run.Status,
		run.TotalRequests, run.TotalFailures,
		run.PromptTokens, run.CompletionTokens, run.TotalTokens,
		run.DurationSeconds, run.RequestsPerSecond,
		string(reportJSON), run.StartedAt, run.FinishedAt, run.CreatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create run: %w", err)
	}

	return nil
}

// Get retrieves a run summary by ID
func (s *RunStore) Get(ctx context.Context, id string) (*models.Run, error) {
	query := `
		SELECT
			id, model, endpoint, status,
			total_requests, total_failures,
			prompt_tokens, completion_tokens, total_tokens,
			duration_seconds, requests_per_second,
			started_at, finished_at, created_at
		FROM runs
		WHERE id = ?
	`

	run := &models.Run{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&run.ID, &run.Model, &run.Endpoint, &run.Status,
		&run.TotalRequests, &run.TotalFailures,
		&run.PromptTokens, &run.CompletionTokens, &run.TotalTokens,
		&run.DurationSeconds, &run.RequestsPerSecond,
		&run.StartedAt, &run.FinishedAt, &run.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// GetReport retrieves the full report document for a run
func (s *RunStore) GetReport(ctx context.Context, id string) ([]byte, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, "SELECT report FROM runs WHERE id = ?", id).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run report: %w", err)
	}

	return []byte(doc), nil
}

// List retrieves run summaries, newest first
func (s *RunStore) List(ctx context.Context, req models.ListRunsRequest) ([]*models.Run, error) {
	query := `
		SELECT
			id, model, endpoint, status,
			total_requests, total_failures,
			prompt_tokens, completion_tokens, total_tokens,
			duration_seconds, requests_per_second,
			started_at, finished_at, created_at
		FROM runs
	`
	args := []any{}

	if req.Model != "" {
		query += " WHERE model = ?"
		args = append(args, req.Model)
	}

	query += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	limit := req.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, req.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run := &models.Run{}
		err := rows.Scan(
			&run.ID, &run.Model, &run.Endpoint, &run.Status,
			&run.TotalRequests, &run.TotalFailures,
			&run.PromptTokens, &run.CompletionTokens, &run.TotalTokens,
			&run.DurationSeconds, &run.RequestsPerSecond,
			&run.StartedAt, &run.FinishedAt, &run.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}

	return runs, rows.Err()
}

// Delete removes a run and its report
func (s *RunStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}

	return nil
}
