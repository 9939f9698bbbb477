package classifier

import (
	"math"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
)

// Softmax returns the normalized exponentials of logits.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	if len(logits) == 0 {
		return out
	}
	maxV := floats.Max(logits)
	for i, v := range logits {
		out[i] = math.Exp(v - maxV)
	}
	floats.Scale(1/floats.Sum(out), out)
	return out
}

// CrossEntropy is -log softmax(logits)[label].
func CrossEntropy(logits []float64, label int) (float64, error) {
	if label < 0 || label >= len(logits) {
		return 0, eris.Errorf("classifier: label %d outside %d logits", label, len(logits))
	}
	return floats.LogSumExp(logits) - logits[label], nil
}

// Argmax returns the predicted class of a logits row.
func Argmax(logits []float64) int {
	if len(logits) == 0 {
		return -1
	}
	return floats.MaxIdx(logits)
}

// NewOutput computes per-example and mean cross-entropy for logits.
func NewOutput(logits [][]float64, labels []int) (*Output, error) {
	if len(logits) != len(labels) {
		return nil, eris.Errorf("classifier: %d logit rows for %d labels", len(logits), len(labels))
	}
	out := &Output{Logits: logits, Losses: make([]float64, len(labels))}
	for i, row := range logits {
		l, err := CrossEntropy(row, labels[i])
		if err != nil {
			return nil, err
		}
		out.Losses[i] = l
	}
	if len(labels) > 0 {
		out.Loss = floats.Sum(out.Losses) / float64(len(labels))
	}
	return out, nil
}
