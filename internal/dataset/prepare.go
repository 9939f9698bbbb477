package dataset

import (
	"math/rand/v2"

	"github.com/sells-group/noteseg/internal/labels"
)

// DefaultShuffleSeed is the seed used to shuffle source rows before use.
const DefaultShuffleSeed = 123

// Prepared is the source table after shuffling, null filtering and label
// indexing. Targets[i] is the class index of Rows[i].
type Prepared struct {
	Rows    []Row
	Labels  *labels.Index
	Targets []int
}

// Texts returns the content column in row order.
func (p *Prepared) Texts() []string {
	out := make([]string, len(p.Rows))
	for i, r := range p.Rows {
		out[i] = r.Content
	}
	return out
}

// Prepare shuffles rows with seed, drops rows with empty content and builds
// the label index from explicit names or from the remaining tags.
func Prepare(rows []Row, explicit []string, seed uint64) (*Prepared, error) {
	kept := DropEmptyContent(Shuffle(rows, seed))

	tags := make([]string, len(kept))
	for i, r := range kept {
		tags[i] = r.Tag
	}
	idx, err := labels.Build(tags, explicit)
	if err != nil {
		return nil, err
	}
	targets, err := idx.Encode(tags)
	if err != nil {
		return nil, err
	}
	return &Prepared{Rows: kept, Labels: idx, Targets: targets}, nil
}

// Shuffle returns a seeded permutation of rows. The input is not modified.
func Shuffle(rows []Row, seed uint64) []Row {
	out := make([]Row, len(rows))
	copy(out, rows)
	rng := rand.New(rand.NewPCG(seed, seed))
	rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// DropEmptyContent removes rows whose content is empty.
func DropEmptyContent(rows []Row) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if r.Content == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
