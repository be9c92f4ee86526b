// Package store persists run history in a local database.
package store

import (
	"context"

	"github.com/vla-lab/paperflow/internal/model"
)

// Store defines the persistence interface for run history.
type Store interface {
	CreateRun(ctx context.Context, kind model.RunKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, summary model.RunSummary) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
