package store

import (
	"context"

	"github.com/sells-group/noteseg/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.RunKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind model.RunKind, dataPath, modelPath string, labels []string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, result *model.RunResult) error
	FailRun(ctx context.Context, runID string, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Epochs
	AddEpoch(ctx context.Context, epoch model.Epoch) error
	ListEpochs(ctx context.Context, runID string) ([]model.Epoch, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
