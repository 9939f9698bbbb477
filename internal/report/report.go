// Package report computes per-class precision, recall and F1 for a set of
// predictions and renders them as a table.
package report

import (
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/rotisserie/eris"
)

// ClassMetrics holds the scores of one class, or of an average row.
type ClassMetrics struct {
	Name      string
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// Report is a classification report over N examples.
type Report struct {
	Accuracy float64
	Classes  []ClassMetrics
	Macro    ClassMetrics
	Weighted ClassMetrics
	Total    int
}

// Compute builds the report. Classes with no predictions get precision 0,
// classes with no support get recall 0.
func Compute(trueLabels, predLabels []int, names []string) (*Report, error) {
	if len(trueLabels) != len(predLabels) {
		return nil, eris.Errorf("report: %d true labels, %d predictions", len(trueLabels), len(predLabels))
	}
	k := len(names)
	tp := make([]int, k)
	predicted := make([]int, k)
	support := make([]int, k)
	correct := 0

	for i, y := range trueLabels {
		p := predLabels[i]
		if y < 0 || y >= k || p < 0 || p >= k {
			return nil, eris.Errorf("report: label pair (%d, %d) outside %d classes", y, p, k)
		}
		support[y]++
		predicted[p]++
		if y == p {
			tp[y]++
			correct++
		}
	}

	r := &Report{Total: len(trueLabels), Classes: make([]ClassMetrics, k)}
	if r.Total > 0 {
		r.Accuracy = float64(correct) / float64(r.Total)
	}
	r.Macro.Name, r.Weighted.Name = "macro avg", "weighted avg"

	for c := 0; c < k; c++ {
		m := ClassMetrics{Name: names[c], Support: support[c]}
		m.Precision = ratio(tp[c], predicted[c])
		m.Recall = ratio(tp[c], support[c])
		if m.Precision+m.Recall > 0 {
			m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
		}
		r.Classes[c] = m

		r.Macro.Precision += m.Precision / float64(k)
		r.Macro.Recall += m.Recall / float64(k)
		r.Macro.F1 += m.F1 / float64(k)
		if r.Total > 0 {
			w := float64(m.Support) / float64(r.Total)
			r.Weighted.Precision += m.Precision * w
			r.Weighted.Recall += m.Recall * w
			r.Weighted.F1 += m.F1 * w
		}
	}
	r.Macro.Support, r.Weighted.Support = r.Total, r.Total
	return r, nil
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Write renders the report as a table.
func Write(w io.Writer, r *Report) error {
	table := tablewriter.NewWriter(w)
	table.Header("", "precision", "recall", "f1-score", "support")

	rows := make([]ClassMetrics, 0, len(r.Classes)+2)
	rows = append(rows, r.Classes...)
	rows = append(rows, r.Macro, r.Weighted)
	for _, m := range rows {
		if err := table.Append([]string{
			m.Name,
			fmt.Sprintf("%.2f", m.Precision),
			fmt.Sprintf("%.2f", m.Recall),
			fmt.Sprintf("%.2f", m.F1),
			fmt.Sprintf("%d", m.Support),
		}); err != nil {
			return eris.Wrap(err, "report: append row")
		}
	}
	if err := table.Append([]string{"accuracy", "", "", fmt.Sprintf("%.2f", r.Accuracy), fmt.Sprintf("%d", r.Total)}); err != nil {
		return eris.Wrap(err, "report: append accuracy")
	}
	return eris.Wrap(table.Render(), "report: render")
}
