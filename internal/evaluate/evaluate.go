// Package evaluate scores a saved classifier on a labelled table and
// attributes its mistakes to source rows.
package evaluate

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/sells-group/noteseg/internal/attribution"
	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/internal/report"
	"github.com/sells-group/noteseg/internal/tokenize"
)

// Result is the outcome of an evaluation pass.
type Result struct {
	// Loss is the sum of per-batch mean losses.
	Loss         float64
	TrueLabels   []int
	PredLabels   []int
	Scores       []float64
	Report       *report.Report
	Records      []attribution.Record
	Unattributed []attribution.Prediction
}

// Evaluator runs a model over encoded examples.
type Evaluator struct {
	model      classifier.Model
	tokenizer  tokenize.Tokenizer
	attributor *attribution.Attributor
	names      []string
	log        *zap.Logger
}

// New creates an Evaluator. names are the label names in index order.
func New(model classifier.Model, tok tokenize.Tokenizer, attr *attribution.Attributor, names []string, log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{model: model, tokenizer: tok, attributor: attr, names: names, log: log}
}

// Run scores every batch in order, decodes misclassified inputs and builds
// the audit records and classification report.
func (e *Evaluator) Run(ctx context.Context, loader *dataset.Loader) (*Result, error) {
	e.model.SetTraining(false)
	res := &Result{}
	var preds []attribution.Prediction

	for _, b := range loader.Batches() {
		out, err := e.model.Forward(ctx, b)
		if err != nil {
			return nil, eris.Wrap(err, "evaluate: forward")
		}
		res.Loss += out.Loss

		for i, row := range out.Logits {
			probs := classifier.Softmax(row)
			pred := floats.MaxIdx(probs)
			score := probs[pred]
			res.TrueLabels = append(res.TrueLabels, b.Labels[i])
			res.PredLabels = append(res.PredLabels, pred)
			res.Scores = append(res.Scores, score)

			if pred == b.Labels[i] {
				continue
			}
			preds = append(preds, attribution.Prediction{
				Text:      e.tokenizer.Decode(tokenize.Unpad(b.IDs[i], b.Masks[i]), true),
				TrueLabel: b.Labels[i],
				PredLabel: pred,
				Score:     score,
			})
		}
	}

	records, unattributed, err := e.attributor.Attribute(preds)
	if err != nil {
		return nil, err
	}
	res.Records, res.Unattributed = records, unattributed
	e.log.Info("misclassified examples",
		zap.Int("misclassified", len(preds)),
		zap.Int("attributed", len(records)),
		zap.Int("unattributed", len(unattributed)),
	)

	rep, err := report.Compute(res.TrueLabels, res.PredLabels, e.names)
	if err != nil {
		return nil, err
	}
	res.Report = rep
	return res, nil
}
