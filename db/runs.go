package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/teranos/orx/errors"
)

// Run kinds.
const (
	RunExchange = "exchange"
	RunAnswer   = "answer"
)

// Run is one recorded evaluation.
type Run struct {
	ID        string
	Kind      string
	Label     string
	Affected  int64
	Passes    int
	Rounds    int
	Failures  int
	Duration  time.Duration
	StartedAt time.Time
	Error     string
}

// RecordRun inserts run. An empty ID is filled with a new UUID and a zero
// StartedAt with the current time.
func RecordRun(ctx context.Context, db *sql.DB, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now().UTC()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO runs
		(id, kind, label, affected, passes, rounds, failures, duration_ms, started_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Kind, run.Label, run.Affected, run.Passes, run.Rounds, run.Failures,
		run.Duration.Milliseconds(), run.StartedAt, run.Error)
	return wrapClosed(err, "record run "+run.ID)
}

// ListRuns returns up to limit runs, newest first.
func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, kind, label, affected, passes, rounds, failures,
		duration_ms, started_at, error FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, wrapClosed(err, "list runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var ms int64
		if err := rows.Scan(&r.ID, &r.Kind, &r.Label, &r.Affected, &r.Passes, &r.Rounds, &r.Failures,
			&ms, &r.StartedAt, &r.Error); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, errors.Wrap(rows.Err(), "list runs")
}
