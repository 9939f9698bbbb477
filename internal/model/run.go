package model

import "time"

// RunKind distinguishes training from evaluation runs.
type RunKind string

const (
	RunKindTrain RunKind = "train"
	RunKindEval  RunKind = "eval"
)

// RunStatus represents the current state of a run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one invocation of the train or eval command.
type Run struct {
	ID        string     `json:"id"`
	Kind      RunKind    `json:"kind"`
	Status    RunStatus  `json:"status"`
	DataPath  string     `json:"data_path"`
	ModelPath string     `json:"model_path"`
	Labels    []string   `json:"labels"`
	Result    *RunResult `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// RunResult holds the final outcome of a run.
type RunResult struct {
	Labels        []string `json:"labels,omitempty"`
	BestEpoch     int      `json:"best_epoch"`
	BestLoss      float64  `json:"best_loss,omitempty"`
	Accuracy      float64  `json:"accuracy,omitempty"`
	Misclassified int      `json:"misclassified,omitempty"`
	Unattributed  int      `json:"unattributed,omitempty"`
	ReportPath    string   `json:"report_path,omitempty"`
}

// Epoch is the persisted summary of one training epoch.
type Epoch struct {
	RunID           string    `json:"run_id"`
	Epoch           int       `json:"epoch"`
	TrainLoss       float64   `json:"train_loss"`
	ValidLoss       float64   `json:"valid_loss"`
	ValidAccuracy   float64   `json:"valid_accuracy"`
	Saved           bool      `json:"saved"`
	PosteriorCounts []int     `json:"posterior_counts,omitempty"`
	PosteriorProbs  []float64 `json:"posterior_probs,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}
