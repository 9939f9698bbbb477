// Package attribution traces misclassified examples back to the source rows
// they came from and builds the audit report.
package attribution

import (
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/internal/labels"
)

// DefaultThreshold is the minimum Ratio for a source row to match.
const DefaultThreshold = 0.9

// Prediction is one classified example.
type Prediction struct {
	// Text is the decoded model input with special tokens removed.
	Text      string
	TrueLabel int
	PredLabel int
	// Score is the softmax probability of PredLabel.
	Score float64
}

// Misclassified reports whether the prediction is wrong.
func (p Prediction) Misclassified() bool { return p.TrueLabel != p.PredLabel }

// Record is one row of the misclassification audit report.
type Record struct {
	Text           string  `csv:"text"`
	TrueLabel      string  `csv:"true_label"`
	PredictedLabel string  `csv:"predicted_label"`
	PredictedScore float64 `csv:"predicted_score"`
	Github         string  `csv:"github"`
	ProtocolID     string  `csv:"protocol_id"`
}

// Attributor matches decoded texts against a source table.
type Attributor struct {
	source    []dataset.Row
	labels    *labels.Index
	threshold float64
	log       *zap.Logger
}

// New creates an Attributor. A threshold <= 0 uses DefaultThreshold. The
// source rows are only read.
func New(source []dataset.Row, idx *labels.Index, threshold float64, log *zap.Logger) *Attributor {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Attributor{source: source, labels: idx, threshold: threshold, log: log}
}

// Match returns the first source row, in table order, whose content has a
// Ratio of at least the threshold against text.
func (a *Attributor) Match(text string) (dataset.Row, bool) {
	for _, row := range a.source {
		if Ratio(text, row.Content) >= a.threshold {
			return row, true
		}
	}
	return dataset.Row{}, false
}

// Attribute builds audit records for every misclassified prediction, in
// order. Predictions with no matching source row are logged and returned
// separately. Label lookup failures are fatal.
func (a *Attributor) Attribute(preds []Prediction) ([]Record, []Prediction, error) {
	var (
		records      []Record
		unattributed []Prediction
	)
	for _, p := range preds {
		if !p.Misclassified() {
			continue
		}
		trueName, err := a.labels.ToName(p.TrueLabel)
		if err != nil {
			return nil, nil, err
		}
		predName, err := a.labels.ToName(p.PredLabel)
		if err != nil {
			return nil, nil, err
		}

		row, ok := a.Match(p.Text)
		if !ok {
			a.log.Warn("no matching row for text", zap.String("text", p.Text))
			unattributed = append(unattributed, p)
			continue
		}
		records = append(records, Record{
			Text:           p.Text,
			TrueLabel:      trueName,
			PredictedLabel: predName,
			PredictedScore: p.Score,
			Github:         row.Github,
			ProtocolID:     row.ProtocolID,
		})
	}
	return records, unattributed, nil
}
