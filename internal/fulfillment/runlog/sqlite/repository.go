// Package sqlite provides a SQLite-backed implementation of runlog.Repository.
//
// WAL mode is enabled on Open so readers never block writers: the run
// inspection endpoints read run history while orchestrations append to it.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/jcmexdev/pod-fulfillment/internal/fulfillment/runlog"

	// Register the pure-Go SQLite driver. modernc.org/sqlite avoids CGO,
	// which keeps Docker builds on Alpine simple.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup.
// fulfillment_runs holds one row per run; run_steps is append-only, one row
// per step transition. The reduced step view is computed on read.
const schema = `
CREATE TABLE IF NOT EXISTS fulfillment_runs (
    id                 TEXT PRIMARY KEY,
    order_id           TEXT NOT NULL,
    provider_name      TEXT NOT NULL,
    provider_order_id  TEXT NOT NULL DEFAULT '',
    status             TEXT NOT NULL,
    created_at         TEXT NOT NULL,
    updated_at         TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_order_id ON fulfillment_runs(order_id, created_at);

CREATE TABLE IF NOT EXISTS run_steps (
    -- Surrogate key; insertion order breaks timestamp ties on replay.
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id   TEXT NOT NULL,
    seq      INTEGER NOT NULL,
    name     TEXT NOT NULL,
    status   TEXT NOT NULL,
    error    TEXT NOT NULL DEFAULT '',
    at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_steps_run_id ON run_steps(run_id, seq, id);
`

// Repository is the SQLite implementation of runlog.Repository.
type Repository struct {
	db *sql.DB
}

var _ runlog.Repository = (*Repository)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close releases the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// CreateRun persists a new run in its initial state.
func (r *Repository) CreateRun(ctx context.Context, run *runlog.FulfillmentRun) error {
	const q = `
		INSERT INTO fulfillment_runs (id, order_id, provider_name, provider_order_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	now := formatTime(run.CreatedAt)
	_, err := r.db.ExecContext(ctx, q,
		run.ID, run.OrderID, run.ProviderName, run.ProviderOrderID,
		string(run.Status), now, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: create run %q: %w", run.ID, err)
	}
	return nil
}

// AppendStep appends one step transition record.
func (r *Repository) AppendStep(ctx context.Context, rec *runlog.StepRecord) error {
	const q = `
		INSERT INTO run_steps (run_id, seq, name, status, error, at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		rec.RunID, rec.Seq, string(rec.Name), string(rec.Status), rec.Error, formatTime(rec.At),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append step %s for run %q: %w", rec.Name, rec.RunID, err)
	}
	return nil
}

// SetRunStatus records a run-level status transition.
func (r *Repository) SetRunStatus(ctx context.Context, runID string, status runlog.RunStatus) error {
	const q = `UPDATE fulfillment_runs SET status = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, string(status), formatTime(time.Now().UTC()), runID)
	if err != nil {
		return fmt.Errorf("sqlite: set status for run %q: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return runlog.ErrRunNotFound
	}
	return nil
}

// SetProviderOrderID records the vendor-assigned order ID on the run.
func (r *Repository) SetProviderOrderID(ctx context.Context, runID, providerOrderID string) error {
	const q = `UPDATE fulfillment_runs SET provider_order_id = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, providerOrderID, formatTime(time.Now().UTC()), runID)
	if err != nil {
		return fmt.Errorf("sqlite: set provider order id for run %q: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return runlog.ErrRunNotFound
	}
	return nil
}

// GetRun loads a run with its reduced step view.
func (r *Repository) GetRun(ctx context.Context, runID string) (*runlog.FulfillmentRun, error) {
	const q = `
		SELECT id, order_id, provider_name, provider_order_id, status, created_at, updated_at
		FROM   fulfillment_runs
		WHERE  id = ?`

	run, err := r.scanRun(r.db.QueryRowContext(ctx, q, runID))
	if err != nil {
		return nil, err
	}
	if err := r.loadSteps(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// ListRunsByOrder returns all runs for an internal order, newest first.
func (r *Repository) ListRunsByOrder(ctx context.Context, orderID string) ([]*runlog.FulfillmentRun, error) {
	const q = `
		SELECT id, order_id, provider_name, provider_order_id, status, created_at, updated_at
		FROM   fulfillment_runs
		WHERE  order_id = ?
		ORDER  BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, q, orderID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list runs for order %q: %w", orderID, err)
	}
	defer rows.Close()

	var runs []*runlog.FulfillmentRun
	for rows.Next() {
		run, err := r.scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: list runs for order %q: %w", orderID, err)
	}
	for _, run := range runs {
		if err := r.loadSteps(ctx, run); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// LatestRunForOrder returns the most recent run for an order.
func (r *Repository) LatestRunForOrder(ctx context.Context, orderID string) (*runlog.FulfillmentRun, error) {
	runs, err := r.ListRunsByOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, runlog.ErrRunNotFound
	}
	return runs[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *Repository) scanRun(row rowScanner) (*runlog.FulfillmentRun, error) {
	var run runlog.FulfillmentRun
	var status, createdAt, updatedAt string
	err := row.Scan(&run.ID, &run.OrderID, &run.ProviderName, &run.ProviderOrderID, &status, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, runlog.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: scan run: %w", err)
	}
	run.Status = runlog.RunStatus(status)
	if run.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if run.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &run, nil
}

// loadSteps replays the append-only step records of a run into the reduced
// WorkflowStep view: latest status per seq, started/completed timestamps
// recovered from the in_progress and terminal records.
func (r *Repository) loadSteps(ctx context.Context, run *runlog.FulfillmentRun) error {
	const q = `
		SELECT seq, name, status, error, at
		FROM   run_steps
		WHERE  run_id = ?
		ORDER  BY seq ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, run.ID)
	if err != nil {
		return fmt.Errorf("sqlite: load steps for run %q: %w", run.ID, err)
	}
	defer rows.Close()

	bySeq := make(map[int]*runlog.WorkflowStep)
	for rows.Next() {
		var rec runlog.StepRecord
		var name, status, at string
		if err := rows.Scan(&rec.Seq, &name, &status, &rec.Error, &at); err != nil {
			return fmt.Errorf("sqlite: scan step for run %q: %w", run.ID, err)
		}
		rec.Name = runlog.StepName(name)
		rec.Status = runlog.StepStatus(status)
		if rec.At, err = parseTime(at); err != nil {
			return err
		}

		step, ok := bySeq[rec.Seq]
		if !ok {
			step = &runlog.WorkflowStep{Seq: rec.Seq, Name: rec.Name}
			bySeq[rec.Seq] = step
		}
		step.Status = rec.Status
		step.Error = rec.Error
		switch rec.Status {
		case runlog.StepInProgress:
			step.StartedAt = rec.At
		case runlog.StepCompleted, runlog.StepFailed:
			step.CompletedAt = rec.At
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sqlite: load steps for run %q: %w", run.ID, err)
	}

	steps := make([]runlog.WorkflowStep, 0, len(bySeq))
	for _, s := range bySeq {
		steps = append(steps, *s)
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Seq < steps[j].Seq })
	run.Steps = steps
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
