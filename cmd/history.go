package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/model"
	"github.com/sells-group/noteseg/internal/store"
	"github.com/sells-group/noteseg/internal/train"
)

// runRecorder writes one run and its epochs to the history store. A nil
// recorder is a no-op.
type runRecorder struct {
	st    store.Store
	runID string
}

func startRun(ctx context.Context, st store.Store, kind model.RunKind, dataPath, modelPath string, labelNames []string) (*runRecorder, error) {
	run, err := st.CreateRun(ctx, kind, dataPath, modelPath, labelNames)
	if err != nil {
		return nil, eris.Wrap(err, "record run")
	}
	return &runRecorder{st: st, runID: run.ID}, nil
}

func (r *runRecorder) epoch(ctx context.Context, er train.EpochResult) error {
	return r.st.AddEpoch(ctx, model.Epoch{
		RunID:           r.runID,
		Epoch:           er.Epoch,
		TrainLoss:       er.TrainLoss,
		ValidLoss:       er.ValidLoss,
		ValidAccuracy:   er.ValidAccuracy,
		Saved:           er.Saved,
		PosteriorCounts: er.PosteriorCounts,
		PosteriorProbs:  er.PosteriorProbs,
	})
}

func (r *runRecorder) complete(ctx context.Context, result *model.RunResult) error {
	if r == nil {
		return nil
	}
	return r.st.CompleteRun(ctx, r.runID, result)
}

// fail marks the run failed. It uses a fresh context so cancelled runs are
// still recorded.
func (r *runRecorder) fail(log *zap.Logger, cause error) {
	if r == nil {
		return
	}
	if err := r.st.FailRun(context.Background(), r.runID, cause); err != nil {
		log.Warn("record failed run", zap.String("run_id", r.runID), zap.Error(err))
	}
}
