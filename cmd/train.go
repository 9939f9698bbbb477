package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/classifier/bag"
	"github.com/sells-group/noteseg/internal/config"
	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/internal/model"
	"github.com/sells-group/noteseg/internal/tokenize"
	"github.com/sells-group/noteseg/internal/train"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fine-tune the classifier on a labelled CSV",
	Long: `Fine-tune the note segmentation classifier.

The CSV must carry "content" and "tag" columns. Rows are shuffled with a fixed
seed, rows with empty content are dropped, and the table is split into train,
validation and test sets. The checkpoint with the lowest validation loss is
written to --savepath together with the tokenizer.

Examples:
  # Train with defaults from config.yaml
  noteseg train --savepath trained/binary_note_seg_model

  # Fixed label order and Bayesian bootstrap of the validation loss
  noteseg train --labels noseg,seg --bayesian-bootstrap --n-epochs 5`,
	RunE: runTrain,
}

func init() {
	f := trainCmd.Flags()
	f.String("data", "", "training CSV path (overrides config)")
	f.String("savepath", "", "checkpoint directory; empty disables saving (overrides config)")
	f.StringSlice("labels", nil, "comma-separated label names in index order (default: sorted tags)")
	f.String("device", "", "compute device (overrides config)")
	f.String("base", "", "base checkpoint to fine-tune from (overrides config)")
	f.String("tokenizer", "", "tokenizer.json file or directory (overrides config)")
	f.Int("max-length", 0, "maximum tokens per example (overrides config)")
	f.Int("n-epochs", 0, "number of epochs (overrides config)")
	f.Int("batch-size", 0, "batch size (overrides config)")
	f.Int("num-workers", 0, "parallel encoding workers (overrides config)")
	f.Float64("lr", 0, "peak learning rate (overrides config)")
	f.Float64("train-ratio", 0, "fraction of rows used for training (overrides config)")
	f.Float64("valid-ratio", 0, "fraction of rows used for validation (overrides config)")
	f.Bool("bayesian-bootstrap", false, "resample validation loss with Dirichlet weights")

	rootCmd.AddCommand(trainCmd)
}

// applyTrainOverrides copies flags the user set onto the loaded config.
func applyTrainOverrides(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("data") {
		c.Train.DataPath, _ = f.GetString("data")
	}
	if f.Changed("savepath") {
		c.Train.SavePath, _ = f.GetString("savepath")
	}
	if f.Changed("labels") {
		c.Train.LabelNames, _ = f.GetStringSlice("labels")
	}
	if f.Changed("device") {
		c.Train.Device, _ = f.GetString("device")
	}
	if f.Changed("base") {
		c.Model.Base, _ = f.GetString("base")
	}
	if f.Changed("tokenizer") {
		c.Model.TokenizerPath, _ = f.GetString("tokenizer")
	}
	if f.Changed("max-length") {
		c.Model.MaxLength, _ = f.GetInt("max-length")
	}
	if f.Changed("n-epochs") {
		c.Train.Epochs, _ = f.GetInt("n-epochs")
	}
	if f.Changed("batch-size") {
		c.Train.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("num-workers") {
		c.Train.NumWorkers, _ = f.GetInt("num-workers")
	}
	if f.Changed("lr") {
		c.Train.LearningRate, _ = f.GetFloat64("lr")
	}
	if f.Changed("train-ratio") {
		c.Train.TrainRatio, _ = f.GetFloat64("train-ratio")
	}
	if f.Changed("valid-ratio") {
		c.Train.ValidRatio, _ = f.GetFloat64("valid-ratio")
	}
	if f.Changed("bayesian-bootstrap") {
		c.Train.BayesianBootstrap, _ = f.GetBool("bayesian-bootstrap")
	}
}

func runTrain(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyTrainOverrides(cmd, cfg)
	if err := cfg.Validate(config.ScopeTrain); err != nil {
		return err
	}
	tc := cfg.Train
	log := logger.Named("finetuner")

	if tc.Device != "cpu" {
		log.Warn("device not supported by the bag backend, using cpu", zap.String("device", tc.Device))
	}

	log.Info("read tokenizer", zap.String("path", cfg.Model.TokenizerPath))
	tok, err := tokenize.LoadHF(cfg.Model.TokenizerPath, cfg.Model.PadToken)
	if err != nil {
		return err
	}
	if tc.SavePath != "" {
		if err := os.MkdirAll(tc.SavePath, 0o755); err != nil {
			return eris.Wrap(err, "train: create savepath")
		}
		if err := tok.SaveTo(tc.SavePath); err != nil {
			return err
		}
	}

	log.Info("read data", zap.String("path", tc.DataPath))
	rows, err := dataset.ReadCSV(tc.DataPath, dataset.TrainColumns)
	if err != nil {
		return err
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	var rec *runRecorder
	if st != nil {
		defer st.Close() //nolint:errcheck
		rec, err = startRun(ctx, st, model.RunKindTrain, tc.DataPath, tc.SavePath, tc.LabelNames)
		if err != nil {
			return err
		}
	}

	factory := func(id2label []string) (classifier.Model, error) {
		return bag.Open(cfg.Model.Base, id2label, cfg.Model.FeatureDim, tc.ShuffleSeed)
	}
	pipe := train.NewPipeline(train.PipelineConfig{
		LabelNames:  tc.LabelNames,
		MaxLength:   cfg.Model.MaxLength,
		Workers:     tc.NumWorkers,
		TrainRatio:  tc.TrainRatio,
		ValidRatio:  tc.ValidRatio,
		ShuffleSeed: tc.ShuffleSeed,
		SplitSeed:   tc.SplitSeed,
		Options: train.Options{
			Epochs:           tc.Epochs,
			BatchSize:        tc.BatchSize,
			LearningRate:     tc.LearningRate,
			SavePath:         tc.SavePath,
			Bootstrap:        tc.BayesianBootstrap,
			BootstrapSeed:    tc.BootstrapSeed,
			BootstrapSamples: tc.BootstrapSamples,
			ShuffleSeed:      tc.ShuffleSeed,
		},
	}, tok, factory, log)
	if rec != nil {
		pipe.OnEpoch(rec.epoch)
	}

	res, err := pipe.Run(ctx, rows)
	if err != nil {
		rec.fail(log, err)
		return err
	}

	log.Info("training complete",
		zap.Int("best_epoch", res.BestEpoch),
		zap.Float64("best_validation_loss", res.BestLoss),
	)
	return rec.complete(ctx, &model.RunResult{
		Labels:    res.Labels.Names(),
		BestEpoch: res.BestEpoch,
		BestLoss:  res.BestLoss,
	})
}
