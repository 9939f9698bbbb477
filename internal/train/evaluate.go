package train

import (
	"context"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"

	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/dataset"
)

// Validation holds per-example loss and 0/1 accuracy for one pass.
type Validation struct {
	Losses   []float64
	Accuracy []float64
}

// MeanLoss is the average per-example loss.
func (v *Validation) MeanLoss() float64 { return mean(v.Losses) }

// MeanAccuracy is the fraction of correctly classified examples.
func (v *Validation) MeanAccuracy() float64 { return mean(v.Accuracy) }

func mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	return stat.Mean(x, nil)
}

// Validate runs the model over every batch of loader in evaluation mode.
func Validate(ctx context.Context, model classifier.Model, loader *dataset.Loader) (*Validation, error) {
	model.SetTraining(false)
	v := &Validation{
		Losses:   make([]float64, 0, loader.Size()),
		Accuracy: make([]float64, 0, loader.Size()),
	}
	for _, b := range loader.Batches() {
		out, err := model.Forward(ctx, b)
		if err != nil {
			return nil, eris.Wrap(err, "train: validation forward")
		}
		v.Losses = append(v.Losses, out.Losses...)
		for i, row := range out.Logits {
			acc := 0.0
			if classifier.Argmax(row) == b.Labels[i] {
				acc = 1
			}
			v.Accuracy = append(v.Accuracy, acc)
		}
	}
	return v, nil
}
