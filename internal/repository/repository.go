// Package repository defines models and data access interfaces for ingestion
// bookkeeping: which laws were ingested and how each run went.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Run statuses.
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestionRun records one pass of the corpus into the vector store.
type IngestionRun struct {
	ID               uuid.UUID
	Collection       string
	Laws             int
	ChunksWritten    int
	SkippedArticles  int
	MalformedRecords int
	FailedBatches    int
	Status           string
	ErrorMessage     string
	StartedAt        time.Time
	CompletedAt      *time.Time
}

// LawRecord is the registry entry for one ingested law.
type LawRecord struct {
	ID         string
	Name       string
	Categories []string
	Articles   int
	Chunks     int
	RunID      uuid.UUID
	IngestedAt time.Time
}

// RunRepository defines operations for ingestion-run persistence
type RunRepository interface {
	Create(ctx context.Context, run *IngestionRun) error
	Update(ctx context.Context, run *IngestionRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*IngestionRun, error)
	List(ctx context.Context, limit, offset int) ([]*IngestionRun, int, error)
}

// LawRepository defines operations for the law registry
type LawRepository interface {
	Upsert(ctx context.Context, law *LawRecord) error
	GetByID(ctx context.Context, id string) (*LawRecord, error)
	List(ctx context.Context, limit, offset int) ([]*LawRecord, int, error)
}
