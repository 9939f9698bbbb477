package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/attribution"
	"github.com/sells-group/noteseg/internal/classifier"
	"github.com/sells-group/noteseg/internal/classifier/bag"
	"github.com/sells-group/noteseg/internal/classifier/remote"
	"github.com/sells-group/noteseg/internal/config"
	"github.com/sells-group/noteseg/internal/dataset"
	"github.com/sells-group/noteseg/internal/evaluate"
	"github.com/sells-group/noteseg/internal/model"
	"github.com/sells-group/noteseg/internal/report"
	"github.com/sells-group/noteseg/internal/tokenize"
	"github.com/sells-group/noteseg/pkg/triton"
)

// evalLogFile is written inside the model directory.
const evalLogFile = "evaluation.log"

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate a trained classifier and audit its mistakes",
	Long: `Evaluate a trained classifier on a labelled CSV.

The CSV must carry "content", "tag", "github" and "protocol_id" columns. Every
misclassified example is decoded, matched back to its source row by edit
distance similarity and written to the audit CSV with the row's provenance.
Accuracy and a per-class report are printed to stdout.

Examples:
  # Evaluate the default checkpoint
  noteseg eval

  # Evaluate a checkpoint served by Triton
  noteseg eval --backend triton --labels noseg,seg`,
	RunE: runEval,
}

func init() {
	f := evalCmd.Flags()
	f.String("model-dir", "", "checkpoint directory (overrides config)")
	f.String("data", "", "evaluation CSV path (overrides config)")
	f.StringSlice("labels", nil, "comma-separated label names in index order (default: checkpoint labels)")
	f.String("backend", "", "model backend: bag or triton (overrides config)")
	f.Int("batch-size", 0, "batch size (overrides config)")
	f.Int("num-workers", 0, "parallel encoding workers (overrides config)")
	f.String("output", "", "misclassified examples CSV (overrides config)")
	f.Float64("threshold", 0, "minimum similarity to attribute a source row (overrides config)")

	rootCmd.AddCommand(evalCmd)
}

// applyEvalOverrides copies flags the user set onto the loaded config.
func applyEvalOverrides(cmd *cobra.Command, c *config.Config) {
	f := cmd.Flags()
	if f.Changed("model-dir") {
		c.Eval.ModelDir, _ = f.GetString("model-dir")
	}
	if f.Changed("data") {
		c.Eval.DataPath, _ = f.GetString("data")
	}
	if f.Changed("labels") {
		c.Eval.LabelNames, _ = f.GetStringSlice("labels")
	}
	if f.Changed("backend") {
		c.Model.Backend, _ = f.GetString("backend")
	}
	if f.Changed("batch-size") {
		c.Eval.BatchSize, _ = f.GetInt("batch-size")
	}
	if f.Changed("num-workers") {
		c.Eval.NumWorkers, _ = f.GetInt("num-workers")
	}
	if f.Changed("output") {
		c.Eval.Output, _ = f.GetString("output")
	}
	if f.Changed("threshold") {
		c.Eval.SimilarityThreshold, _ = f.GetFloat64("threshold")
	}
}

func runEval(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	applyEvalOverrides(cmd, cfg)
	if err := cfg.Validate(config.ScopeEval); err != nil {
		return err
	}
	ec := cfg.Eval

	if err := os.MkdirAll(ec.ModelDir, 0o755); err != nil {
		return eris.Wrap(err, "eval: create model dir")
	}
	logCfg := cfg.Log
	if logCfg.File == "" {
		logCfg.File = filepath.Join(ec.ModelDir, evalLogFile)
	}
	base, err := config.NewLogger(logCfg)
	if err != nil {
		return err
	}
	defer base.Sync() //nolint:errcheck
	log := base.Named("evaluator")

	log.Info("read tokenizer", zap.String("path", ec.ModelDir))
	tok, err := tokenize.LoadHF(ec.ModelDir, cfg.Model.PadToken)
	if err != nil {
		return err
	}

	log.Info("read data", zap.String("path", ec.DataPath))
	rows, err := dataset.ReadCSV(ec.DataPath, dataset.EvalColumns)
	if err != nil {
		return err
	}

	var (
		clf      classifier.Model
		explicit = ec.LabelNames
	)
	if cfg.Model.Backend == config.BackendBag {
		m, err := bag.Load(ec.ModelDir)
		if err != nil {
			return err
		}
		clf = m
		if len(explicit) == 0 {
			explicit = m.Config().ID2Label
		}
	}

	prep, err := dataset.Prepare(rows, explicit, dataset.DefaultShuffleSeed)
	if err != nil {
		return err
	}
	names := prep.Labels.Names()
	log.Info("labels", zap.Strings("names", names), zap.Int("rows", len(prep.Rows)))

	if clf == nil {
		tc := cfg.Model.Triton
		client := triton.NewClient(tc.URL, time.Duration(tc.TimeoutSecs)*time.Second,
			triton.WithRateLimit(tc.RateLimit, cfg.Eval.NumWorkers),
		)
		clf = remote.New(client, tc.ModelName, len(names))
	}
	if clf.NumLabels() != len(names) {
		return eris.Errorf("eval: model has %d labels, data has %d", clf.NumLabels(), len(names))
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	var rec *runRecorder
	if st != nil {
		defer st.Close() //nolint:errcheck
		rec, err = startRun(ctx, st, model.RunKindEval, ec.DataPath, ec.ModelDir, names)
		if err != nil {
			return err
		}
	}

	res, err := evaluateTable(ctx, cmd.OutOrStdout(), rows, prep, tok, clf, log)
	if err != nil {
		rec.fail(log, err)
		return err
	}

	return rec.complete(ctx, &model.RunResult{
		Labels:        names,
		Accuracy:      res.Report.Accuracy,
		Misclassified: len(res.Records) + len(res.Unattributed),
		Unattributed:  len(res.Unattributed),
		ReportPath:    ec.Output,
	})
}

// evaluateTable encodes the prepared rows, scores them, writes the audit CSV
// and prints the summary.
func evaluateTable(ctx context.Context, out io.Writer, source []dataset.Row, prep *dataset.Prepared, tok tokenize.Tokenizer, clf classifier.Model, log *zap.Logger) (*evaluate.Result, error) {
	ec := cfg.Eval

	log.Info("preprocess dataset")
	examples, err := dataset.Encode(ctx, prep.Texts(), prep.Targets, tok, cfg.Model.MaxLength, ec.NumWorkers)
	if err != nil {
		return nil, err
	}
	loader := dataset.NewLoader(examples, ec.BatchSize, nil)

	attr := attribution.New(dataset.DropEmptyContent(source), prep.Labels, ec.SimilarityThreshold, log)
	res, err := evaluate.New(clf, tok, attr, prep.Labels.Names(), log).Run(ctx, loader)
	if err != nil {
		return nil, err
	}

	if err := attribution.WriteCSVFile(ec.Output, res.Records); err != nil {
		return nil, err
	}
	log.Info("saved misclassified examples", zap.String("path", ec.Output), zap.Int("count", len(res.Records)))

	if err := attribution.WriteCSV(out, res.Records); err != nil {
		return nil, err
	}
	fmt.Fprintf(out, "\nAccuracy: %.4f\n\n", res.Report.Accuracy)
	if err := report.Write(out, res.Report); err != nil {
		return nil, err
	}
	return res, nil
}
