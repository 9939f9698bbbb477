package bag

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/sells-group/noteseg/internal/classifier"
)

// Checkpoint file names.
const (
	ConfigFile  = "config.json"
	WeightsFile = "weights.json"
)

type weights struct {
	Weight []float64 `json:"weight"`
	Bias   []float64 `json:"bias"`
}

// Save implements classifier.Model. Files are written to temporaries and
// renamed so a checkpoint directory never holds a half-written model.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "bag: create %s", dir)
	}
	if err := writeJSON(filepath.Join(dir, WeightsFile), weights{Weight: m.weight, Bias: m.bias}); err != nil {
		return err
	}
	return writeJSON(filepath.Join(dir, ConfigFile), m.cfg)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "bag: marshal %s", filepath.Base(path))
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return eris.Wrapf(err, "bag: write %s", tmp)
	}
	return eris.Wrapf(os.Rename(tmp, path), "bag: rename %s", tmp)
}

// Load opens a checkpoint written by Save.
func Load(dir string) (*Model, error) {
	var cfg Config
	if err := readJSON(filepath.Join(dir, ConfigFile), &cfg); err != nil {
		return nil, err
	}
	if cfg.ModelType != ModelType {
		return nil, eris.Errorf("bag: %s is a %q checkpoint", dir, cfg.ModelType)
	}
	var w weights
	if err := readJSON(filepath.Join(dir, WeightsFile), &w); err != nil {
		return nil, err
	}
	if len(w.Weight) != cfg.NumLabels*cfg.FeatureDim || len(w.Bias) != cfg.NumLabels {
		return nil, eris.Errorf("bag: weights in %s do not match %d labels x %d features", dir, cfg.NumLabels, cfg.FeatureDim)
	}

	m := alloc(cfg)
	copy(m.weight, w.Weight)
	copy(m.bias, w.Bias)
	return m, nil
}

// Loader adapts Load to classifier.Loader.
func Loader(dir string) (classifier.Model, error) {
	return Load(dir)
}

// Open initializes a model for training from base. When base holds a bag
// checkpoint with a matching label count its weights are used; otherwise a
// fresh model is built. The label names are always taken from id2label.
func Open(base string, id2label []string, featureDim int, seed uint64) (*Model, error) {
	if base != "" {
		if _, err := os.Stat(filepath.Join(base, ConfigFile)); err == nil {
			m, err := Load(base)
			if err != nil {
				return nil, err
			}
			if m.cfg.NumLabels != len(id2label) {
				return nil, eris.Errorf("bag: base %s has %d labels, want %d", base, m.cfg.NumLabels, len(id2label))
			}
			m.cfg.ID2Label = append([]string(nil), id2label...)
			return m, nil
		}
	}
	return New(Config{NumLabels: len(id2label), FeatureDim: featureDim, ID2Label: append([]string(nil), id2label...)}, seed)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "bag: read %s", path)
	}
	return eris.Wrapf(json.Unmarshal(data, v), "bag: decode %s", path)
}
