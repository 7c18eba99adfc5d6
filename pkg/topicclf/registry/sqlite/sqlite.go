package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/registry"
)

// sqliteStore implements registry.Store on a SQLite file.
type sqliteStore struct {
	db *sql.DB
}

// Open opens (or creates) a run registry database with WAL mode enabled.
func Open(ctx context.Context, path string) (registry.Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &sqliteStore{db: db}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	status TEXT NOT NULL,
	error TEXT NOT NULL DEFAULT '',
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	family TEXT NOT NULL DEFAULT '',
	params TEXT NOT NULL DEFAULT '',
	metric TEXT NOT NULL DEFAULT '',
	score REAL NOT NULL DEFAULT 0,
	vectorizer_path TEXT NOT NULL DEFAULT '',
	model_path TEXT NOT NULL DEFAULT '',
	train_rows INTEGER NOT NULL DEFAULT 0,
	test_rows INTEGER NOT NULL DEFAULT 0,
	vocabulary INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_status_started ON runs(status, started_at);

CREATE TABLE IF NOT EXISTS candidates (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	family TEXT NOT NULL,
	params TEXT NOT NULL DEFAULT '',
	cv_score REAL NOT NULL DEFAULT 0,
	test_score REAL NOT NULL DEFAULT 0,
	configs INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	PRIMARY KEY(run_id, position),
	FOREIGN KEY(run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init registry schema: %w", err)
	}
	return nil
}

// RecordRun upserts the run row and replaces its candidates in one transaction.
func (s *sqliteStore) RecordRun(ctx context.Context, run registry.Run, candidates []registry.Candidate) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is empty", internalerr.ErrInvalidInput)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs(id, status, error, started_at, finished_at, family, params, metric, score,
	vectorizer_path, model_path, train_rows, test_rows, vocabulary)
VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET
	status=excluded.status,
	error=excluded.error,
	started_at=excluded.started_at,
	finished_at=excluded.finished_at,
	family=excluded.family,
	params=excluded.params,
	metric=excluded.metric,
	score=excluded.score,
	vectorizer_path=excluded.vectorizer_path,
	model_path=excluded.model_path,
	train_rows=excluded.train_rows,
	test_rows=excluded.test_rows,
	vocabulary=excluded.vocabulary;`,
		run.ID, run.Status, run.Error, formatTime(run.StartedAt), formatTime(run.FinishedAt),
		run.Family, run.Params, run.Metric, run.Score,
		run.VectorizerPath, run.ModelPath, run.TrainRows, run.TestRows, run.Vocabulary,
	)
	if err != nil {
		return fmt.Errorf("upsert run %s: %w", run.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE run_id=?`, run.ID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO candidates(run_id, position, family, params, cv_score, test_score, configs, duration_ms, error)
VALUES(?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for i, c := range candidates {
		if _, err := stmt.ExecContext(ctx, run.ID, i, c.Family, c.Params, c.CVScore, c.TestScore,
			c.Configs, c.DurationMS, c.Error); err != nil {
			return fmt.Errorf("insert candidate %s: %w", c.Family, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, status, error, started_at, finished_at, family, params, metric, score,
	vectorizer_path, model_path, train_rows, test_rows, vocabulary`

func (s *sqliteStore) GetRun(ctx context.Context, id string) (registry.Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id=?`, id)
	return scanRun(row)
}

func (s *sqliteStore) LatestRun(ctx context.Context, status string) (registry.Run, error) {
	var row *sql.Row
	if status == "" {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs
ORDER BY started_at DESC, id DESC LIMIT 1`)
	} else {
		row = s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE status=?
ORDER BY started_at DESC, id DESC LIMIT 1`, status)
	}
	return scanRun(row)
}

func (s *sqliteStore) Candidates(ctx context.Context, runID string) ([]registry.Candidate, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT run_id, position, family, params, cv_score, test_score, configs, duration_ms, error
FROM candidates WHERE run_id=? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []registry.Candidate
	for rows.Next() {
		var c registry.Candidate
		if err := rows.Scan(&c.RunID, &c.Position, &c.Family, &c.Params, &c.CVScore, &c.TestScore,
			&c.Configs, &c.DurationMS, &c.Error); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanRun(row *sql.Row) (registry.Run, error) {
	var (
		r                 registry.Run
		started, finished string
	)
	err := row.Scan(&r.ID, &r.Status, &r.Error, &started, &finished, &r.Family, &r.Params,
		&r.Metric, &r.Score, &r.VectorizerPath, &r.ModelPath, &r.TrainRows, &r.TestRows, &r.Vocabulary)
	if errors.Is(err, sql.ErrNoRows) {
		return registry.Run{}, internalerr.ErrNotFound
	}
	if err != nil {
		return registry.Run{}, err
	}
	if r.StartedAt, err = parseTime(started); err != nil {
		return registry.Run{}, err
	}
	if r.FinishedAt, err = parseTime(finished); err != nil {
		return registry.Run{}, err
	}
	return r, nil
}

// Fixed-width UTC timestamps keep lexicographic order equal to time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
