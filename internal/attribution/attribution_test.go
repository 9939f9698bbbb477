package attribution

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/internal/labels"
)

func TestRatio(t *testing.T) {
	assert.InDelta(t, 1.0, Ratio("same text", "same text"), 1e-12)
	assert.InDelta(t, 1.0, Ratio("", ""), 1e-12)
	assert.InDelta(t, 0.0, Ratio("abc", ""), 1e-12)
	assert.InDelta(t, 0.0, Ratio("abc", "xyz"), 1e-12)
	// One substitution over 20 runes costs 2.
	assert.Equal(t, 0.9, Ratio("abcdefghij", "abcdefghik"))
	assert.InDelta(t, 16.0/18.0, Ratio("abcdefghi", "abcdefghz"), 1e-12)
}

func TestRatio_NormalizesUnicode(t *testing.T) {
	composed := "f\u00f6rs\u00f6k"
	decomposed := "fo\u0308rso\u0308k"
	assert.InDelta(t, 1.0, Ratio(composed, decomposed), 1e-12)
}

func sourceTable() []dataset.Row {
	return []dataset.Row{
		{Content: "zzzzzzzzzz", Tag: "noseg", Github: "repo-x", ProtocolID: "p0"},
		{Content: "abcdefghik", Tag: "seg", Github: "repo-a", ProtocolID: "p1"},
		{Content: "abcdefghij", Tag: "seg", Github: "repo-b", ProtocolID: "p2"},
	}
}

func index(t *testing.T) *labels.Index {
	t.Helper()
	idx, err := labels.Build([]string{"seg", "noseg"}, nil)
	require.NoError(t, err)
	return idx
}

func TestMatch_ThresholdInclusive(t *testing.T) {
	a := New(sourceTable(), index(t), 0, nil)

	// Exactly 0.9 against row 1, which comes first in table order.
	row, ok := a.Match("abcdefghij")
	require.True(t, ok)
	assert.Equal(t, "repo-a", row.Github)
}

func TestMatch_BelowThreshold(t *testing.T) {
	a := New([]dataset.Row{{Content: "abcdefghz"}, {Content: "qqqqqqqqq"}}, index(t), DefaultThreshold, nil)

	_, ok := a.Match("abcdefghi")
	assert.False(t, ok)
}

func TestAttribute(t *testing.T) {
	src := sourceTable()
	orig := append([]dataset.Row(nil), src...)
	a := New(src, index(t), 0, nil)

	preds := []Prediction{
		{Text: "zzzzzzzzzz", TrueLabel: 0, PredLabel: 0, Score: 0.99},
		{Text: "abcdefghij", TrueLabel: 1, PredLabel: 0, Score: 0.7},
		{Text: "nothing like it", TrueLabel: 0, PredLabel: 1, Score: 0.6},
		{Text: "zzzzzzzzzz", TrueLabel: 0, PredLabel: 1, Score: 0.55},
	}
	records, unattributed, err := a.Attribute(preds)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, Record{
		Text: "abcdefghij", TrueLabel: "seg", PredictedLabel: "noseg",
		PredictedScore: 0.7, Github: "repo-a", ProtocolID: "p1",
	}, records[0])
	assert.Equal(t, "repo-x", records[1].Github)

	require.Len(t, unattributed, 1)
	assert.Equal(t, "nothing like it", unattributed[0].Text)
	assert.Equal(t, orig, src)
}

func TestAttribute_BadLabel(t *testing.T) {
	a := New(sourceTable(), index(t), 0, nil)
	_, _, err := a.Attribute([]Prediction{{Text: "x", TrueLabel: 0, PredLabel: 5}})

	var oor *labels.IndexOutOfRangeError
	assert.ErrorAs(t, err, &oor)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []Record{{
		Text: "a, b", TrueLabel: "seg", PredictedLabel: "noseg", PredictedScore: 0.75, Github: "g", ProtocolID: "p",
	}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(Columns, ","), lines[0])
	assert.Equal(t, `"a, b",seg,noseg,0.75,g,p`, lines[1])
}

func TestWriteCSV_EmptyHasHeader(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, nil))
	assert.Equal(t, strings.Join(Columns, ",")+"\n", buf.String())
}

func TestWriteCSVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "misclassified_examples.csv")
	require.NoError(t, WriteCSVFile(path, nil))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "text,true_label"))
}
