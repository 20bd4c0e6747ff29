package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/qanoonhub/lawrag/internal/repository"
)

// RunRepo implements repository.RunRepository
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new ingestion-run repository
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// Create creates a new ingestion run
func (r *RunRepo) Create(ctx context.Context, run *repository.IngestionRun) error {
	query := `
		INSERT INTO ingestion_runs (id, collection, laws, chunks_written, skipped_articles, malformed_records, failed_batches, status, error_message, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.Pool.Exec(ctx, query,
		run.ID, run.Collection, run.Laws, run.ChunksWritten, run.SkippedArticles,
		run.MalformedRecords, run.FailedBatches, run.Status, run.ErrorMessage,
		run.StartedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to create ingestion run: %w", err)
	}
	return nil
}

// Update updates an ingestion run's counters and status
func (r *RunRepo) Update(ctx context.Context, run *repository.IngestionRun) error {
	query := `
		UPDATE ingestion_runs
		SET laws = $2, chunks_written = $3, skipped_articles = $4, malformed_records = $5,
		    failed_batches = $6, status = $7, error_message = $8, completed_at = $9
		WHERE id = $1
	`
	tag, err := r.db.Pool.Exec(ctx, query,
		run.ID, run.Laws, run.ChunksWritten, run.SkippedArticles, run.MalformedRecords,
		run.FailedBatches, run.Status, run.ErrorMessage, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("failed to update ingestion run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// GetByID retrieves an ingestion run by ID
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*repository.IngestionRun, error) {
	query := `
		SELECT id, collection, laws, chunks_written, skipped_articles, malformed_records, failed_batches, status, error_message, started_at, completed_at
		FROM ingestion_runs
		WHERE id = $1
	`
	var run repository.IngestionRun
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.Collection, &run.Laws, &run.ChunksWritten, &run.SkippedArticles,
		&run.MalformedRecords, &run.FailedBatches, &run.Status, &run.ErrorMessage,
		&run.StartedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get ingestion run: %w", err)
	}
	return &run, nil
}

// List retrieves ingestion runs, newest first, with pagination
func (r *RunRepo) List(ctx context.Context, limit, offset int) ([]*repository.IngestionRun, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM ingestion_runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count ingestion runs: %w", err)
	}

	query := `
		SELECT id, collection, laws, chunks_written, skipped_articles, malformed_records, failed_batches, status, error_message, started_at, completed_at
		FROM ingestion_runs
		ORDER BY started_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list ingestion runs: %w", err)
	}
	defer rows.Close()

	var runs []*repository.IngestionRun
	for rows.Next() {
		var run repository.IngestionRun
		if err := rows.Scan(
			&run.ID, &run.Collection, &run.Laws, &run.ChunksWritten, &run.SkippedArticles,
			&run.MalformedRecords, &run.FailedBatches, &run.Status, &run.ErrorMessage,
			&run.StartedAt, &run.CompletedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan ingestion run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read ingestion runs: %w", err)
	}

	return runs, total, nil
}

// Ensure RunRepo implements repository.RunRepository
var _ repository.RunRepository = (*RunRepo)(nil)
