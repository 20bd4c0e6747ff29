package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/qanoonhub/lawrag/internal/repository"
)

// LawRepo implements repository.LawRepository
type LawRepo struct {
	db *DB
}

// NewLawRepo creates a new law registry repository
func NewLawRepo(db *DB) *LawRepo {
	return &LawRepo{db: db}
}

// Upsert inserts or replaces a law registry entry
func (r *LawRepo) Upsert(ctx context.Context, law *repository.LawRecord) error {
	categoriesJSON, err := json.Marshal(law.Categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}

	query := `
		INSERT INTO laws (id, name, categories, articles, chunks, run_id, ingested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name, categories = EXCLUDED.categories,
		    articles = EXCLUDED.articles, chunks = EXCLUDED.chunks,
		    run_id = EXCLUDED.run_id, ingested_at = EXCLUDED.ingested_at
	`
	_, err = r.db.Pool.Exec(ctx, query,
		law.ID, law.Name, categoriesJSON, law.Articles, law.Chunks, law.RunID, law.IngestedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert law: %w", err)
	}
	return nil
}

// GetByID retrieves a law registry entry by the law's corpus identifier
func (r *LawRepo) GetByID(ctx context.Context, id string) (*repository.LawRecord, error) {
	query := `
		SELECT id, name, categories, articles, chunks, run_id, ingested_at
		FROM laws
		WHERE id = $1
	`
	return r.scanLaw(ctx, query, id)
}

func (r *LawRepo) scanLaw(ctx context.Context, query string, args ...any) (*repository.LawRecord, error) {
	var law repository.LawRecord
	var categoriesJSON []byte

	err := r.db.Pool.QueryRow(ctx, query, args...).Scan(
		&law.ID, &law.Name, &categoriesJSON, &law.Articles, &law.Chunks,
		&law.RunID, &law.IngestedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get law: %w", err)
	}

	if err := json.Unmarshal(categoriesJSON, &law.Categories); err != nil {
		return nil, fmt.Errorf("failed to unmarshal categories: %w", err)
	}

	return &law, nil
}

// List retrieves law registry entries with pagination
func (r *LawRepo) List(ctx context.Context, limit, offset int) ([]*repository.LawRecord, int, error) {
	var total int
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM laws`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count laws: %w", err)
	}

	query := `
		SELECT id, name, categories, articles, chunks, run_id, ingested_at
		FROM laws
		ORDER BY ingested_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list laws: %w", err)
	}
	defer rows.Close()

	var laws []*repository.LawRecord
	for rows.Next() {
		var law repository.LawRecord
		var categoriesJSON []byte
		if err := rows.Scan(
			&law.ID, &law.Name, &categoriesJSON, &law.Articles, &law.Chunks,
			&law.RunID, &law.IngestedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan law: %w", err)
		}
		if err := json.Unmarshal(categoriesJSON, &law.Categories); err != nil {
			return nil, 0, fmt.Errorf("failed to unmarshal categories: %w", err)
		}
		laws = append(laws, &law)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to read laws: %w", err)
	}

	return laws, total, nil
}

// Ensure LawRepo implements repository.LawRepository
var _ repository.LawRepository = (*LawRepo)(nil)
