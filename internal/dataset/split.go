package dataset

import (
	"math/rand/v2"

	"github.com/rotisserie/eris"
)

// Splits holds the three disjoint partitions of the encoded dataset.
type Splits struct {
	Train []Example
	Valid []Example
	Test  []Example
}

// Split partitions examples by a seeded random permutation. Train and valid
// get int(ratio*N) examples each, test gets the remainder.
func Split(examples []Example, trainRatio, validRatio float64, seed uint64) (*Splits, error) {
	if trainRatio < 0 || validRatio < 0 || trainRatio+validRatio > 1 {
		return nil, eris.Errorf("dataset: invalid split ratios train=%.2f valid=%.2f", trainRatio, validRatio)
	}
	n := len(examples)
	trainN := int(trainRatio * float64(n))
	validN := int(validRatio * float64(n))

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(n)

	pick := func(idx []int) []Example {
		out := make([]Example, len(idx))
		for i, p := range idx {
			out[i] = examples[p]
		}
		return out
	}
	return &Splits{
		Train: pick(perm[:trainN]),
		Valid: pick(perm[trainN : trainN+validN]),
		Test:  pick(perm[trainN+validN:]),
	}, nil
}
