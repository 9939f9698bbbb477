// Package train runs the fine-tuning loop: batched forward, backward and
// optimizer steps, per-epoch validation and best-loss checkpointing.
package train

import (
	"context"
	"math/rand/v2"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/bootstrap"
	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/dataset"
)

// Options configures a training run.
type Options struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	// SavePath receives the best checkpoint. Empty disables saving.
	SavePath string
	// Bootstrap enables Dirichlet resampling of validation metrics.
	Bootstrap        bool
	BootstrapSeed    uint64
	BootstrapSamples int
	// ShuffleSeed drives the per-epoch training batch order.
	ShuffleSeed uint64
}

// EpochResult summarizes one epoch.
type EpochResult struct {
	Epoch         int
	TrainLoss     float64
	ValidLoss     float64
	ValidAccuracy float64
	Improved      bool
	Saved         bool
	// Bootstrap posterior over the best epoch so far; nil when disabled.
	PosteriorCounts []int
	PosteriorProbs  []float64
}

// Result summarizes a finished run.
type Result struct {
	Epochs    []EpochResult
	BestEpoch int
	BestLoss  float64
}

// EpochHook is called after every epoch. An error aborts the run.
type EpochHook func(ctx context.Context, r EpochResult) error

// Trainer drives a classifier.Model through the epochs.
type Trainer struct {
	model   classifier.Model
	log     *zap.Logger
	opts    Options
	onEpoch EpochHook
}

// NewTrainer creates a Trainer.
func NewTrainer(model classifier.Model, log *zap.Logger, opts Options) *Trainer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Trainer{model: model, log: log, opts: opts}
}

// OnEpoch registers a hook run after each epoch.
func (t *Trainer) OnEpoch(h EpochHook) { t.onEpoch = h }

// Run trains for the configured epochs. Any model failure is fatal.
func (t *Trainer) Run(ctx context.Context, trainSet, validSet []dataset.Example) (*Result, error) {
	if t.opts.Epochs < 1 {
		return nil, eris.Errorf("train: epochs must be positive (got %d)", t.opts.Epochs)
	}
	if len(trainSet) == 0 || len(validSet) == 0 {
		return nil, eris.Errorf("train: empty split (train=%d valid=%d)", len(trainSet), len(validSet))
	}

	rng := rand.New(rand.NewPCG(t.opts.ShuffleSeed, t.opts.ShuffleSeed+1))
	trainLoader := dataset.NewLoader(trainSet, t.opts.BatchSize, rng)
	validLoader := dataset.NewLoader(validSet, t.opts.BatchSize, nil)

	sched := NewLinearSchedule(trainLoader.NumBatches(), t.opts.Epochs)
	t.log.Debug("schedule",
		zap.Int("total_steps", sched.Total),
		zap.Int("warmup_steps", sched.Warmup),
	)

	var (
		best    BestTracker
		sampler *bootstrap.Sampler
		history bootstrap.History
		step    int
	)
	result := &Result{BestEpoch: -1}
	if t.opts.Bootstrap {
		sampler = bootstrap.NewSampler(t.opts.BootstrapSeed, t.opts.BootstrapSamples)
	}

	for epoch := 0; epoch < t.opts.Epochs; epoch++ {
		t.log.Info("epoch starts", zap.Int("epoch", epoch))

		t.model.SetTraining(true)
		var trainLoss float64
		for _, b := range trainLoader.Batches() {
			if err := ctx.Err(); err != nil {
				return nil, eris.Wrap(err, "train: cancelled")
			}
			out, err := t.model.Forward(ctx, b)
			if err != nil {
				return nil, eris.Wrapf(err, "train: forward epoch %d step %d", epoch, step)
			}
			trainLoss += out.Loss
			if err := t.model.Backward(ctx, out); err != nil {
				return nil, eris.Wrapf(err, "train: backward epoch %d step %d", epoch, step)
			}
			if err := t.model.Step(t.opts.LearningRate * sched.Factor(step)); err != nil {
				return nil, eris.Wrapf(err, "train: optimizer step %d", step)
			}
			step++
		}

		val, err := Validate(ctx, t.model, validLoader)
		if err != nil {
			return nil, err
		}

		er := EpochResult{
			Epoch:         epoch,
			TrainLoss:     trainLoss * float64(t.opts.BatchSize) / float64(trainLoader.NumBatches()),
			ValidLoss:     val.MeanLoss(),
			ValidAccuracy: val.MeanAccuracy(),
		}
		t.log.Info("epoch metrics",
			zap.Int("epoch", epoch),
			zap.Float64("training_loss", er.TrainLoss),
			zap.Float64("validation_loss", er.ValidLoss),
			zap.Float64("validation_accuracy", er.ValidAccuracy),
		)

		if sampler != nil {
			resampled, err := sampler.Resample(val.Losses)
			if err != nil {
				return nil, err
			}
			if err := history.Add(resampled); err != nil {
				return nil, err
			}
			er.PosteriorCounts, er.PosteriorProbs = history.Posterior()
			t.log.Info("bayesian bootstrap",
				zap.Ints("samples", er.PosteriorCounts),
				zap.Float64s("posterior", er.PosteriorProbs),
			)
		}

		if best.Observe(er.ValidLoss) {
			er.Improved = true
			result.BestEpoch, result.BestLoss = epoch, er.ValidLoss
			t.log.Info("best validation loss so far", zap.Int("epoch", epoch))
			if t.opts.SavePath != "" {
				t.log.Debug("save model", zap.String("path", t.opts.SavePath))
				if err := t.model.Save(t.opts.SavePath); err != nil {
					return nil, eris.Wrapf(err, "train: save checkpoint epoch %d", epoch)
				}
				er.Saved = true
			} else {
				t.log.Debug("no save path provided, skipping saving")
			}
		} else {
			t.log.Info("not the best validation loss so far", zap.Int("epoch", epoch))
		}

		result.Epochs = append(result.Epochs, er)
		if t.onEpoch != nil {
			if err := t.onEpoch(ctx, er); err != nil {
				return nil, eris.Wrap(err, "train: epoch hook")
			}
		}
	}
	return result, nil
}
