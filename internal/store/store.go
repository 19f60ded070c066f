// Package store persists enrichment runs. Two implementations exist: a
// zero-setup SQLite store for the CLI and a PostgreSQL store for shared
// deployments.
package store

import (
	"context"
	"time"

	"github.com/sells-group/valuation-cli/internal/model"
)

// RunStatus is the lifecycle state of a persisted run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one persisted enrichment run. Bundle is nil until the run
// completes; Error is set only on failure.
type Run struct {
	ID        string                  `json:"id"`
	Request   model.EnrichmentRequest `json:"request"`
	Status    RunStatus               `json:"status"`
	Bundle    *model.EnrichmentBundle `json:"bundle,omitempty"`
	Error     string                  `json:"error,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  RunStatus `json:"status,omitempty"`
	Address string    `json:"address,omitempty"`
	Limit   int       `json:"limit,omitempty"`
	Offset  int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for enrichment runs.
type Store interface {
	CreateRun(ctx context.Context, req model.EnrichmentRequest) (*Run, error)
	CompleteRun(ctx context.Context, runID string, bundle *model.EnrichmentBundle) error
	FailRun(ctx context.Context, runID string, cause string) error
	GetRun(ctx context.Context, runID string) (*Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
