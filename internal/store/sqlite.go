// Package store persists the history of training and evaluation runs.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/noteseg/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	kind       TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'running',
	data_path  TEXT NOT NULL,
	model_path TEXT NOT NULL,
	labels     TEXT NOT NULL,
	result     TEXT,
	error      TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_epochs (
	run_id         TEXT NOT NULL REFERENCES runs(id),
	epoch          INTEGER NOT NULL,
	train_loss     REAL NOT NULL,
	valid_loss     REAL NOT NULL,
	valid_accuracy REAL NOT NULL,
	saved          INTEGER NOT NULL DEFAULT 0,
	posterior      TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, epoch)
);

CREATE INDEX IF NOT EXISTS idx_runs_kind ON runs(kind);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateRun(ctx context.Context, kind model.RunKind, dataPath, modelPath string, labels []string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	labelsJSON, err := json.Marshal(labels)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal labels")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, data_path, model_path, labels, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, string(kind), string(model.RunStatusRunning), dataPath, modelPath, string(labelsJSON), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.Run{
		ID:        id,
		Kind:      kind,
		Status:    model.RunStatusRunning,
		DataPath:  dataPath,
		ModelPath: modelPath,
		Labels:    labels,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.RunResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET error = ?, status = ?, updated_at = ? WHERE id = ?`,
		msg, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

const runColumns = `id, kind, status, data_path, model_path, labels, result, error, created_at, updated_at`

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

type posterior struct {
	Counts []int     `json:"counts"`
	Probs  []float64 `json:"probs"`
}

func (s *SQLiteStore) AddEpoch(ctx context.Context, e model.Epoch) error {
	var post sql.NullString
	if e.PosteriorCounts != nil {
		b, err := json.Marshal(posterior{Counts: e.PosteriorCounts, Probs: e.PosteriorProbs})
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal posterior")
		}
		post = sql.NullString{String: string(b), Valid: true}
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_epochs (run_id, epoch, train_loss, valid_loss, valid_accuracy, saved, posterior, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Epoch, e.TrainLoss, e.ValidLoss, e.ValidAccuracy, e.Saved, post, e.CreatedAt,
	)
	return eris.Wrapf(err, "sqlite: insert epoch %d for run %s", e.Epoch, e.RunID)
}

func (s *SQLiteStore) ListEpochs(ctx context.Context, runID string) ([]model.Epoch, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, epoch, train_loss, valid_loss, valid_accuracy, saved, posterior, created_at
		 FROM run_epochs WHERE run_id = ? ORDER BY epoch`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list epochs")
	}
	defer rows.Close() //nolint:errcheck

	var epochs []model.Epoch
	for rows.Next() {
		var e model.Epoch
		var post sql.NullString
		if err := rows.Scan(&e.RunID, &e.Epoch, &e.TrainLoss, &e.ValidLoss, &e.ValidAccuracy, &e.Saved, &post, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan epoch")
		}
		if post.Valid {
			var p posterior
			if err := json.Unmarshal([]byte(post.String), &p); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal posterior")
			}
			e.PosteriorCounts, e.PosteriorProbs = p.Counts, p.Probs
		}
		epochs = append(epochs, e)
	}
	return epochs, eris.Wrap(rows.Err(), "sqlite: list epochs iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var labelsJSON string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &r.Kind, &r.Status, &r.DataPath, &r.ModelPath, &labelsJSON, &resultJSON, &errMsg, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(labelsJSON), &r.Labels); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal labels")
	}
	if resultJSON.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	r.Error = errMsg.String
	return &r, nil
}
