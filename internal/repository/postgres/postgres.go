// Package postgres backs the ingestion bookkeeping repositories (run
// summaries and the law registry) with PostgreSQL. The vector data itself
// lives in Qdrant; this store only answers "what was ingested, when, and how
// did it go".
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pingTimeout bounds the connectivity check at startup so a wrong
// DATABASE_URL fails fast instead of hanging ingestion.
const pingTimeout = 5 * time.Second

// DB wraps the connection pool shared by the bookkeeping repositories.
type DB struct {
	Pool *pgxpool.Pool
}

// New opens a connection pool for the bookkeeping store and verifies
// connectivity before returning it.
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
