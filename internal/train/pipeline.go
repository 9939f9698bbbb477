package train

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/internal/labels"
	"github.com/sells-group/noteseg/internal/tokenize"
)

// ModelFactory builds the model to fine-tune for the given label names.
type ModelFactory func(id2label []string) (classifier.Model, error)

// PipelineConfig configures data preparation around the training loop.
type PipelineConfig struct {
	LabelNames  []string
	MaxLength   int
	Workers     int
	TrainRatio  float64
	ValidRatio  float64
	ShuffleSeed uint64
	SplitSeed   uint64
	Options     Options
}

// Pipeline prepares a table, encodes it, splits it and trains a model.
type Pipeline struct {
	cfg       PipelineConfig
	tokenizer tokenize.Tokenizer
	factory   ModelFactory
	log       *zap.Logger
	onEpoch   EpochHook
}

// PipelineResult is the outcome of a pipeline run.
type PipelineResult struct {
	*Result
	Labels *labels.Index
	Splits *dataset.Splits
}

// NewPipeline creates a Pipeline.
func NewPipeline(cfg PipelineConfig, tok tokenize.Tokenizer, factory ModelFactory, log *zap.Logger) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &Pipeline{cfg: cfg, tokenizer: tok, factory: factory, log: log}
}

// OnEpoch registers a hook forwarded to the trainer.
func (p *Pipeline) OnEpoch(h EpochHook) { p.onEpoch = h }

// Run executes the pipeline over the raw source rows.
func (p *Pipeline) Run(ctx context.Context, rows []dataset.Row) (*PipelineResult, error) {
	prep, err := dataset.Prepare(rows, p.cfg.LabelNames, p.cfg.ShuffleSeed)
	if err != nil {
		return nil, err
	}
	p.log.Info("labels", zap.Strings("names", prep.Labels.Names()), zap.Int("rows", len(prep.Rows)))

	p.log.Info("preprocess datasets")
	examples, err := dataset.Encode(ctx, prep.Texts(), prep.Targets, p.tokenizer, p.cfg.MaxLength, p.cfg.Workers)
	if err != nil {
		return nil, err
	}

	splits, err := dataset.Split(examples, p.cfg.TrainRatio, p.cfg.ValidRatio, p.cfg.SplitSeed)
	if err != nil {
		return nil, err
	}
	p.log.Info("split",
		zap.Int("train", len(splits.Train)),
		zap.Int("valid", len(splits.Valid)),
		zap.Int("test", len(splits.Test)),
	)

	p.log.Info("define model")
	model, err := p.factory(prep.Labels.Names())
	if err != nil {
		return nil, eris.Wrap(err, "train: build model")
	}
	if model.NumLabels() != prep.Labels.Len() {
		return nil, eris.Errorf("train: model has %d labels, data has %d", model.NumLabels(), prep.Labels.Len())
	}

	trainer := NewTrainer(model, p.log, p.cfg.Options)
	trainer.OnEpoch(p.onEpoch)
	res, err := trainer.Run(ctx, splits.Train, splits.Valid)
	if err != nil {
		return nil, err
	}
	return &PipelineResult{Result: res, Labels: prep.Labels, Splits: splits}, nil
}
