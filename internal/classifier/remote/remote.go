// Package remote serves classifier.Model from a Triton inference server.
// It can score batches but not train or save.
package remote

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/pkg/triton"
)

// LogitsOutput is the output tensor read from the server.
const LogitsOutput = "logits"

// Model implements classifier.Model over a triton.Client.
type Model struct {
	client    triton.Client
	name      string
	numLabels int
}

var _ classifier.Model = (*Model)(nil)

// New returns a model that calls the server model name.
func New(client triton.Client, name string, numLabels int) *Model {
	return &Model{client: client, name: name, numLabels: numLabels}
}

// Forward implements classifier.Model.
func (m *Model) Forward(ctx context.Context, b dataset.Batch) (*classifier.Output, error) {
	resp, err := m.client.Infer(ctx, m.name, []triton.Tensor{
		triton.Int64Tensor("input_ids", b.IDs),
		triton.Int64Tensor("attention_mask", b.Masks),
	})
	if err != nil {
		return nil, eris.Wrap(err, "remote: infer")
	}
	t, err := resp.Output(LogitsOutput)
	if err != nil {
		return nil, err
	}
	if len(t.Shape) != 2 || t.Shape[0] != b.Len() || t.Shape[1] != m.numLabels || len(t.Data) != b.Len()*m.numLabels {
		return nil, eris.Errorf("remote: logits shape %v, want [%d %d]", t.Shape, b.Len(), m.numLabels)
	}

	logits := make([][]float64, b.Len())
	for i := range logits {
		logits[i] = t.Data[i*m.numLabels : (i+1)*m.numLabels]
	}
	return classifier.NewOutput(logits, b.Labels)
}

// Backward implements classifier.Model.
func (m *Model) Backward(context.Context, *classifier.Output) error { return classifier.ErrInferenceOnly }

// Step implements classifier.Model.
func (m *Model) Step(float64) error { return classifier.ErrInferenceOnly }

// SetTraining implements classifier.Model.
func (m *Model) SetTraining(bool) {}

// Save implements classifier.Model.
func (m *Model) Save(string) error { return classifier.ErrInferenceOnly }

// NumLabels implements classifier.Model.
func (m *Model) NumLabels() int { return m.numLabels }
