package dataset

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/noteseg/internal/labels"
)

func TestDecodeCSV_Basic(t *testing.T) {
	input := "content,tag,github,protocol_id\nhello world,seg,repo-a,p1\n,noseg,repo-b,p2\n"
	rows, err := DecodeCSV(strings.NewReader(input), EvalColumns)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, Row{Content: "hello world", Tag: "seg", Github: "repo-a", ProtocolID: "p1"}, rows[0])
	assert.Equal(t, "", rows[1].Content)
}

func TestDecodeCSV_ExtraColumnsIgnored(t *testing.T) {
	input := "id,content,tag\n1,a,x\n"
	rows, err := DecodeCSV(strings.NewReader(input), TrainColumns)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].Content)
}

func TestDecodeCSV_MissingColumn(t *testing.T) {
	input := "content,tag\na,x\n"
	_, err := DecodeCSV(strings.NewReader(input), EvalColumns)
	require.Error(t, err)

	var cfgErr *labels.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "github")
}

func TestDecodeCSV_Empty(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader(""), TrainColumns)
	var cfgErr *labels.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestReadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("content,tag\n\"quoted, text\",seg\n"), 0o644))

	rows, err := ReadCSV(path, TrainColumns)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "quoted, text", rows[0].Content)

	_, err = ReadCSV(filepath.Join(t.TempDir(), "missing.csv"), TrainColumns)
	assert.Error(t, err)
}

func TestShuffle_SeededAndNonMutating(t *testing.T) {
	rows := make([]Row, 20)
	for i := range rows {
		rows[i] = Row{Content: string(rune('a' + i))}
	}
	orig := append([]Row(nil), rows...)

	a := Shuffle(rows, 123)
	b := Shuffle(rows, 123)
	assert.Equal(t, a, b)
	assert.Equal(t, orig, rows)
	assert.ElementsMatch(t, orig, a)
}

func TestPrepare_FiltersNullsAndIndexes(t *testing.T) {
	rows := []Row{
		{Content: "a", Tag: "seg"},
		{Content: "", Tag: "weird"},
		{Content: "b", Tag: "noseg"},
		{Content: "c", Tag: "seg"},
	}
	p, err := Prepare(rows, nil, DefaultShuffleSeed)
	require.NoError(t, err)

	require.Len(t, p.Rows, 3)
	assert.Equal(t, []string{"noseg", "seg"}, p.Labels.Names())
	for i, r := range p.Rows {
		assert.NotEmpty(t, r.Content)
		name, err := p.Labels.ToName(p.Targets[i])
		require.NoError(t, err)
		assert.Equal(t, r.Tag, name)
	}
	assert.Len(t, p.Texts(), 3)
}

func TestPrepare_ExplicitNamesMissingTag(t *testing.T) {
	rows := []Row{{Content: "a", Tag: "seg"}, {Content: "b", Tag: "other"}}
	_, err := Prepare(rows, []string{"seg", "noseg"}, 1)

	var unk *labels.UnknownLabelError
	assert.ErrorAs(t, err, &unk)
}

func TestEncode_ShapeAndOrder(t *testing.T) {
	tok := newWordTokenizer("hello", "world", "note")
	texts := []string{"hello world", "note", "hello world note hello world note hello"}
	targets := []int{0, 1, 0}

	examples, err := Encode(context.Background(), texts, targets, tok, 5, 3)
	require.NoError(t, err)
	require.Len(t, examples, 3)

	for i, ex := range examples {
		assert.Len(t, ex.IDs, 5)
		assert.Len(t, ex.Mask, 5)
		assert.Equal(t, targets[i], ex.Label)
		assert.Equal(t, i, ex.Source)
	}
	assert.Equal(t, []int{1, 3, 4, 2, 0}, examples[0].IDs)
	assert.Equal(t, []int{1, 1, 1, 1, 0}, examples[0].Mask)
	assert.Equal(t, []int{1, 5, 2, 0, 0}, examples[1].IDs)
	// Truncated sequences keep the closing token.
	assert.Equal(t, 2, examples[2].IDs[4])
}

func TestEncode_Errors(t *testing.T) {
	tok := newWordTokenizer()

	_, err := Encode(context.Background(), []string{"a"}, nil, tok, 4, 1)
	assert.Error(t, err)

	_, err = Encode(context.Background(), []string{"a"}, []int{0}, tok, 0, 1)
	assert.Error(t, err)

	_, err = Encode(context.Background(), []string{"a", "boom"}, []int{0, 1}, tok, 4, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exploded")
}

func exampleSet(n int) []Example {
	out := make([]Example, n)
	for i := range out {
		out[i] = Example{IDs: []int{i}, Mask: []int{1}, Label: i % 2, Source: i}
	}
	return out
}

func TestSplit_Sizes(t *testing.T) {
	s, err := Split(exampleSet(10), 0.6, 0.2, 42)
	require.NoError(t, err)

	assert.Len(t, s.Train, 6)
	assert.Len(t, s.Valid, 2)
	assert.Len(t, s.Test, 2)

	seen := map[int]bool{}
	for _, part := range [][]Example{s.Train, s.Valid, s.Test} {
		for _, ex := range part {
			assert.False(t, seen[ex.Source], "example %d in two splits", ex.Source)
			seen[ex.Source] = true
		}
	}
	assert.Len(t, seen, 10)
}

func TestSplit_Deterministic(t *testing.T) {
	a, err := Split(exampleSet(30), 0.5, 0.3, 7)
	require.NoError(t, err)
	b, err := Split(exampleSet(30), 0.5, 0.3, 7)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSplit_InvalidRatios(t *testing.T) {
	_, err := Split(exampleSet(4), 0.8, 0.3, 1)
	assert.Error(t, err)
	_, err = Split(exampleSet(4), -0.1, 0.3, 1)
	assert.Error(t, err)
}

func TestLoader_Ordered(t *testing.T) {
	l := NewLoader(exampleSet(5), 2, nil)
	assert.Equal(t, 3, l.NumBatches())
	assert.Equal(t, 5, l.Size())

	batches := l.Batches()
	require.Len(t, batches, 3)
	assert.Equal(t, []int{0, 1}, batches[0].Sources)
	assert.Equal(t, []int{2, 3}, batches[1].Sources)
	assert.Equal(t, []int{4}, batches[2].Sources)
	assert.Equal(t, 1, batches[2].Len())
}

func TestLoader_ShuffledCoversAll(t *testing.T) {
	l := NewLoader(exampleSet(9), 4, rand.New(rand.NewPCG(1, 2)))

	var sources []int
	for _, b := range l.Batches() {
		sources = append(sources, b.Sources...)
		for i, src := range b.Sources {
			assert.Equal(t, src%2, b.Labels[i])
		}
	}
	assert.ElementsMatch(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8}, sources)
}
