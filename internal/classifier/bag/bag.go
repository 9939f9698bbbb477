// Package bag is an in-process baseline classifier: token ids are hashed
// into a fixed feature space, mean-pooled over the attention mask and fed to
// a linear softmax layer trained with Adam.
package bag

import (
	"context"
	"maps"
	"math"
	"math/rand/v2"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/dataset"
)

// ModelType identifies bag checkpoints in config.json.
const ModelType = "bag-of-tokens"

// DefaultFeatureDim is the hashed feature width used when none is given.
const DefaultFeatureDim = 1 << 14

const (
	beta1   = 0.9
	beta2   = 0.999
	epsilon = 1e-8
	initStd = 0.02
)

// Config describes the shape of a bag model.
type Config struct {
	ModelType  string   `json:"model_type"`
	NumLabels  int      `json:"num_labels"`
	FeatureDim int      `json:"feature_dim"`
	ID2Label   []string `json:"id2label"`
}

// Model implements classifier.Model.
type Model struct {
	cfg Config

	// weight is row-major [NumLabels][FeatureDim].
	weight []float64
	bias   []float64

	gradW []float64
	gradB []float64

	m, v   []float64
	mb, vb []float64
	t      int

	training bool
	last     []sparse
	labels   []int
	pending  bool
}

// feature is one non-zero entry of a hashed feature vector.
type feature struct {
	Index int
	Value float64
}

// sparse is a mean-pooled hashed feature vector sorted by index, so sums
// over it are accumulated in a fixed order.
type sparse []feature

var _ classifier.Model = (*Model)(nil)

// New returns a freshly initialized model. seed fixes the initial weights.
func New(cfg Config, seed uint64) (*Model, error) {
	if cfg.NumLabels < 1 {
		return nil, eris.Errorf("bag: num labels must be positive (got %d)", cfg.NumLabels)
	}
	if cfg.FeatureDim <= 0 {
		cfg.FeatureDim = DefaultFeatureDim
	}
	cfg.ModelType = ModelType

	m := alloc(cfg)
	rng := rand.New(rand.NewPCG(seed, seed+1))
	for i := range m.weight {
		m.weight[i] = rng.NormFloat64() * initStd
	}
	return m, nil
}

func alloc(cfg Config) *Model {
	n := cfg.NumLabels * cfg.FeatureDim
	return &Model{
		cfg:    cfg,
		weight: make([]float64, n),
		bias:   make([]float64, cfg.NumLabels),
		gradW:  make([]float64, n),
		gradB:  make([]float64, cfg.NumLabels),
		m:      make([]float64, n),
		v:      make([]float64, n),
		mb:     make([]float64, cfg.NumLabels),
		vb:     make([]float64, cfg.NumLabels),
	}
}

// Config returns the model configuration.
func (m *Model) Config() Config { return m.cfg }

// NumLabels implements classifier.Model.
func (m *Model) NumLabels() int { return m.cfg.NumLabels }

// SetTraining implements classifier.Model.
func (m *Model) SetTraining(on bool) {
	m.training = on
	if !on {
		m.last = nil
		m.pending = false
	}
}

func (m *Model) features(ids, mask []int) sparse {
	counts := map[int]float64{}
	var n float64
	for i, id := range ids {
		if i < len(mask) && mask[i] == 0 {
			continue
		}
		h := id % m.cfg.FeatureDim
		if h < 0 {
			h += m.cfg.FeatureDim
		}
		counts[h]++
		n++
	}
	f := make(sparse, 0, len(counts))
	for _, h := range slices.Sorted(maps.Keys(counts)) {
		f = append(f, feature{Index: h, Value: counts[h] / n})
	}
	return f
}

func (m *Model) logits(f sparse) []float64 {
	out := make([]float64, m.cfg.NumLabels)
	for c := range out {
		row := m.weight[c*m.cfg.FeatureDim : (c+1)*m.cfg.FeatureDim]
		s := m.bias[c]
		for _, x := range f {
			s += row[x.Index] * x.Value
		}
		out[c] = s
	}
	return out
}

// Forward implements classifier.Model.
func (m *Model) Forward(ctx context.Context, b dataset.Batch) (*classifier.Output, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "bag: forward")
	}
	feats := make([]sparse, b.Len())
	logits := make([][]float64, b.Len())
	for i := range b.Labels {
		feats[i] = m.features(b.IDs[i], b.Masks[i])
		logits[i] = m.logits(feats[i])
	}
	out, err := classifier.NewOutput(logits, b.Labels)
	if err != nil {
		return nil, eris.Wrap(err, "bag: forward")
	}
	if m.training {
		m.last = feats
		m.labels = append(m.labels[:0], b.Labels...)
	}
	return out, nil
}

// Backward implements classifier.Model. Gradients are of the batch mean loss.
func (m *Model) Backward(_ context.Context, out *classifier.Output) error {
	if !m.training || m.last == nil {
		return eris.New("bag: backward without a training forward pass")
	}
	if len(out.Logits) != len(m.last) {
		return eris.Errorf("bag: backward got %d rows, forward had %d", len(out.Logits), len(m.last))
	}
	scale := 1 / float64(len(m.last))
	for i, f := range m.last {
		p := classifier.Softmax(out.Logits[i])
		y := m.labels[i]
		for c := range p {
			g := p[c]
			if c == y {
				g--
			}
			g *= scale
			m.gradB[c] += g
			row := m.gradW[c*m.cfg.FeatureDim : (c+1)*m.cfg.FeatureDim]
			for _, x := range f {
				row[x.Index] += g * x.Value
			}
		}
	}
	m.pending = true
	return nil
}

// Step implements classifier.Model with an Adam update.
func (m *Model) Step(lr float64) error {
	if !m.pending {
		return nil
	}
	m.t++
	c1 := 1 - math.Pow(beta1, float64(m.t))
	c2 := 1 - math.Pow(beta2, float64(m.t))
	adam(m.weight, m.gradW, m.m, m.v, lr, c1, c2)
	adam(m.bias, m.gradB, m.mb, m.vb, lr, c1, c2)
	m.pending = false
	m.last = nil
	return nil
}

func adam(param, grad, m, v []float64, lr, c1, c2 float64) {
	for i, g := range grad {
		if g == 0 && m[i] == 0 && v[i] == 0 {
			continue
		}
		m[i] = beta1*m[i] + (1-beta1)*g
		v[i] = beta2*v[i] + (1-beta2)*g*g
		param[i] -= lr * (m[i] / c1) / (math.Sqrt(v[i]/c2) + epsilon)
		grad[i] = 0
	}
}
