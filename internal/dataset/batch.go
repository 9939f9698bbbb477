package dataset

import "math/rand/v2"

// Batch is a group of examples fed to the model in one forward pass.
type Batch struct {
	IDs    [][]int
	Masks  [][]int
	Labels []int
	// Sources are the prepared-table positions of each example.
	Sources []int
}

// Len returns the number of examples in the batch.
func (b Batch) Len() int { return len(b.Labels) }

// Loader yields batches over a fixed set of examples.
type Loader struct {
	examples  []Example
	batchSize int
	rng       *rand.Rand
}

// NewLoader creates a loader. When rng is non-nil every call to Batches
// draws a fresh permutation; otherwise examples keep their order.
func NewLoader(examples []Example, batchSize int, rng *rand.Rand) *Loader {
	if batchSize < 1 {
		batchSize = 1
	}
	return &Loader{examples: examples, batchSize: batchSize, rng: rng}
}

// NumBatches returns the number of batches per pass.
func (l *Loader) NumBatches() int {
	return (len(l.examples) + l.batchSize - 1) / l.batchSize
}

// Size returns the number of examples.
func (l *Loader) Size() int { return len(l.examples) }

// Batches returns one pass over the examples. The final batch may be short.
func (l *Loader) Batches() []Batch {
	order := make([]int, len(l.examples))
	for i := range order {
		order[i] = i
	}
	if l.rng != nil {
		l.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	batches := make([]Batch, 0, l.NumBatches())
	for start := 0; start < len(order); start += l.batchSize {
		end := min(start+l.batchSize, len(order))
		b := Batch{
			IDs:     make([][]int, 0, end-start),
			Masks:   make([][]int, 0, end-start),
			Labels:  make([]int, 0, end-start),
			Sources: make([]int, 0, end-start),
		}
		for _, i := range order[start:end] {
			ex := l.examples[i]
			b.IDs = append(b.IDs, ex.IDs)
			b.Masks = append(b.Masks, ex.Mask)
			b.Labels = append(b.Labels, ex.Label)
			b.Sources = append(b.Sources, ex.Source)
		}
		batches = append(batches, b)
	}
	return batches
}
