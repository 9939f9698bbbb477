// Package classifier defines the sequence classification capability used by
// training and evaluation, independent of the backend that implements it.
package classifier

import (
	"context"
	"errors"

	"github.com/sells-group/noteseg/internal/dataset"
)

// ErrInferenceOnly is returned by backends that cannot be trained or saved.
var ErrInferenceOnly = errors.New("classifier: backend is inference only")

// Output is the result of one forward pass over a batch.
type Output struct {
	// Loss is the mean cross-entropy over the batch.
	Loss float64
	// Losses holds the per-example cross-entropy.
	Losses []float64
	// Logits has one row of NumLabels scores per example.
	Logits [][]float64
}

// Model is a sequence classifier over token ids.
type Model interface {
	// Forward scores a batch and computes its loss against b.Labels.
	Forward(ctx context.Context, b dataset.Batch) (*Output, error)
	// Backward accumulates gradients for the most recent forward pass.
	Backward(ctx context.Context, out *Output) error
	// Step applies accumulated gradients at learning rate lr and clears them.
	Step(lr float64) error
	// SetTraining toggles training mode.
	SetTraining(on bool)
	// Save persists the model to dir.
	Save(dir string) error
	// NumLabels is the width of each logits row.
	NumLabels() int
}

// Loader opens a saved model from a directory.
type Loader func(dir string) (Model, error)
