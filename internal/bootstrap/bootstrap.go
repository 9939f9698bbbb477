// Package bootstrap implements the Bayesian (Dirichlet-weighted) bootstrap
// used to measure how certain the choice of best epoch is.
package bootstrap

import (
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Defaults for validation resampling.
const (
	DefaultSeed    = 429
	DefaultSamples = 1000
)

// Weights draws samples rows from a symmetric Dirichlet(1, ..., 1) over n
// categories. Each row sums to one. The same seed, samples and n always
// yield the same matrix.
func Weights(n, samples int, seed uint64) (*mat.Dense, error) {
	if n < 1 || samples < 1 {
		return nil, eris.Errorf("bootstrap: need n>0 and samples>0 (got n=%d samples=%d)", n, samples)
	}
	rng := rand.New(rand.NewPCG(seed, seed))
	data := make([]float64, samples*n)
	for r := 0; r < samples; r++ {
		row := data[r*n : (r+1)*n]
		// Gamma(1) is Exp(1); normalized gammas are Dirichlet distributed.
		for i := range row {
			row[i] = rng.ExpFloat64()
		}
		floats.Scale(1/floats.Sum(row), row)
	}
	return mat.NewDense(samples, n, data), nil
}

// Resample returns theta @ values, one weighted mean per bootstrap draw.
func Resample(theta *mat.Dense, values []float64) ([]float64, error) {
	rows, cols := theta.Dims()
	if cols != len(values) {
		return nil, eris.Errorf("bootstrap: %d weights per draw for %d values", cols, len(values))
	}
	out := mat.NewVecDense(rows, nil)
	out.MulVec(theta, mat.NewVecDense(len(values), values))
	return out.RawVector().Data, nil
}

// Sampler caches the weight matrix for a fixed example count.
type Sampler struct {
	seed    uint64
	samples int
	theta   *mat.Dense
	n       int
}

// NewSampler creates a Sampler drawing samples weights per call.
func NewSampler(seed uint64, samples int) *Sampler {
	if samples < 1 {
		samples = DefaultSamples
	}
	return &Sampler{seed: seed, samples: samples}
}

// Resample draws (or reuses) weights for len(values) and applies them.
func (s *Sampler) Resample(values []float64) ([]float64, error) {
	if s.theta == nil || s.n != len(values) {
		theta, err := Weights(len(values), s.samples, s.seed)
		if err != nil {
			return nil, err
		}
		s.theta, s.n = theta, len(values)
	}
	return Resample(s.theta, values)
}

// History collects the resampled validation loss of every epoch.
type History struct {
	epochs [][]float64
}

// Add appends one epoch of resampled losses. All epochs must share a length.
func (h *History) Add(losses []float64) error {
	if len(h.epochs) > 0 && len(losses) != len(h.epochs[0]) {
		return eris.Errorf("bootstrap: epoch has %d draws, want %d", len(losses), len(h.epochs[0]))
	}
	h.epochs = append(h.epochs, append([]float64(nil), losses...))
	return nil
}

// Epochs returns the number of recorded epochs.
func (h *History) Epochs() int { return len(h.epochs) }

// Posterior counts, for every draw, which epoch had the lowest loss. Ties go
// to the earliest epoch. probs is counts normalized to sum to one.
func (h *History) Posterior() (counts []int, probs []float64) {
	counts = make([]int, len(h.epochs))
	probs = make([]float64, len(h.epochs))
	if len(h.epochs) == 0 {
		return counts, probs
	}
	draws := len(h.epochs[0])
	for d := 0; d < draws; d++ {
		best := 0
		for e := 1; e < len(h.epochs); e++ {
			if h.epochs[e][d] < h.epochs[best][d] {
				best = e
			}
		}
		counts[best]++
	}
	if draws > 0 {
		for i, c := range counts {
			probs[i] = float64(c) / float64(draws)
		}
	}
	return counts, probs
}
