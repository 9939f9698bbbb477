package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/noteseg/internal/config"
	"github.com/sells-group/noteseg/internal/model"
	"github.com/sells-group/noteseg/internal/train"
)

func TestFormatRunsList(t *testing.T) {
	prevNoColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prevNoColor })

	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindTrain,
			Status:    model.RunStatusComplete,
			DataPath:  "data/training_data.csv",
			Result:    &model.RunResult{BestEpoch: 2, BestLoss: 0.3141},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Minute),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Kind:      model.RunKindEval,
			Status:    model.RunStatusFailed,
			DataPath:  "data/pilot/val_processed_data.csv",
			Error:     "missing required column",
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-30 * time.Minute),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, formatRunsList(&buf, runs))

	output := buf.String()
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "def12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "best_epoch=2 loss=0.3141")
	assert.Contains(t, output, "error: missing required column")
	assert.Contains(t, output, "2m0s")
}

func TestSummarizeResult(t *testing.T) {
	assert.Empty(t, summarizeResult(model.Run{Status: model.RunStatusRunning}))
	assert.Equal(t, "acc=0.8750 miss=4", summarizeResult(model.Run{
		Kind:   model.RunKindEval,
		Status: model.RunStatusComplete,
		Result: &model.RunResult{Accuracy: 0.875, Misclassified: 4},
	}))
}

func TestStatusColor(t *testing.T) {
	assert.Same(t, green, statusColor(model.RunStatusComplete))
	assert.Same(t, red, statusColor(model.RunStatusFailed))
	assert.Same(t, yellow, statusColor(model.RunStatusRunning))
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func withStoreConfig(t *testing.T, path string) {
	t.Helper()
	prev := cfg
	cfg = &config.Config{Store: config.StoreConfig{Path: path}}
	t.Cleanup(func() { cfg = prev })
}

func TestOpenStore_Disabled(t *testing.T) {
	withStoreConfig(t, "")
	st, err := openStore(context.Background())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestRunRecorder(t *testing.T) {
	withStoreConfig(t, filepath.Join(t.TempDir(), "runs.db"))
	ctx := context.Background()

	st, err := openStore(ctx)
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	rec, err := startRun(ctx, st, model.RunKindTrain, "data.csv", "trained", nil)
	require.NoError(t, err)
	require.NoError(t, rec.epoch(ctx, train.EpochResult{Epoch: 0, TrainLoss: 1.2, ValidLoss: 0.7, ValidAccuracy: 0.5, Saved: true}))
	require.NoError(t, rec.complete(ctx, &model.RunResult{Labels: []string{"noseg", "seg"}, BestEpoch: 0, BestLoss: 0.7}))

	run, err := st.GetRun(ctx, rec.runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, []string{"noseg", "seg"}, run.Result.Labels)

	epochs, err := st.ListEpochs(ctx, rec.runID)
	require.NoError(t, err)
	require.Len(t, epochs, 1)
	assert.True(t, epochs[0].Saved)

	failed, err := startRun(ctx, st, model.RunKindEval, "data.csv", "trained", []string{"noseg", "seg"})
	require.NoError(t, err)
	failed.fail(zap.NewNop(), errors.New("boom"))
	run, err = st.GetRun(ctx, failed.runID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.Error)
}

func TestRunRecorder_NilIsNoop(t *testing.T) {
	var rec *runRecorder
	assert.NoError(t, rec.complete(context.Background(), &model.RunResult{}))
	rec.fail(zap.NewNop(), errors.New("ignored"))
}

func TestWriteRunDetail(t *testing.T) {
	d := runDetail{
		Run: model.Run{ID: "run-1", Kind: model.RunKindTrain, Status: model.RunStatusComplete},
		Epochs: []model.Epoch{
			{RunID: "run-1", Epoch: 0, ValidLoss: 0.5},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, writeRunDetail(&buf, "json", d))
	assert.Contains(t, buf.String(), `"id": "run-1"`)
	assert.Contains(t, buf.String(), `"valid_loss": 0.5`)

	buf.Reset()
	require.NoError(t, writeRunDetail(&buf, "yaml", d))
	assert.Contains(t, buf.String(), "epochs:")

	assert.Error(t, writeRunDetail(&buf, "xml", d))
}
