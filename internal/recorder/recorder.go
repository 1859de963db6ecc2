// Package recorder persists scenario runs to SQLite: one row per run plus
// the ordered firing trace, so past runs can be inspected after the fact.
package recorder

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"sync"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tessen-io/stagehand/internal/engine"
)

//go:embed schema.sql
var schemaSQL string

// Recorder provides durable storage for run traces.
// Uses SQLite with WAL mode for concurrent read access.
type Recorder struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path, applying
// pragmas and the schema. Idempotent; pass ":memory:" for an ephemeral
// database in tests.
func Open(path string) (*Recorder, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY and keeps ":memory:" databases on one schema.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Close closes the database connection.
func (r *Recorder) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// Run is an open recording of one scenario execution. It implements
// engine.TraceSink: every firing lands as a row keyed by (run, seq), so
// replaying a write is a no-op.
type Run struct {
	rec *Recorder
	id  string

	mu  sync.Mutex
	seq int64
	err error
}

// StartRun inserts a run row and returns the open recording.
func (r *Recorder) StartRun(ctx context.Context, scenario string) (*Run, error) {
	id := uuid.Must(uuid.NewV7()).String()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO runs (id, scenario) VALUES (?, ?)`, id, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}
	return &Run{rec: r, id: id}, nil
}

// ID returns the run's identifier.
func (run *Run) ID() string { return run.id }

// Record implements engine.TraceSink. The sink interface cannot surface
// errors mid-run; the first write failure is retained and reported by Err
// and Finish.
func (run *Run) Record(e engine.TraceEntry) {
	run.mu.Lock()
	defer run.mu.Unlock()

	if run.err != nil {
		return
	}
	run.seq++
	_, err := run.rec.db.Exec(
		`INSERT INTO firings (run_id, seq, step, scope, node, kind, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, seq) DO NOTHING`,
		run.id, run.seq, e.Step, e.Scope, e.Node, e.Kind, e.Detail)
	if err != nil {
		run.err = fmt.Errorf("failed to record firing %d: %w", run.seq, err)
	}
}

// Err returns the first write failure, if any.
func (run *Run) Err() error {
	run.mu.Lock()
	defer run.mu.Unlock()
	return run.err
}

// Finish stamps the run row with the verdict. It also surfaces any write
// failure that occurred while recording.
func (run *Run) Finish(ctx context.Context, verdict *engine.Verdict) error {
	run.mu.Lock()
	writeErr := run.err
	run.mu.Unlock()

	_, err := run.rec.db.ExecContext(ctx,
		`UPDATE runs
		 SET status = ?, fired = ?, steps = ?, failure = ?, finished_at = datetime('now')
		 WHERE id = ?`,
		string(verdict.Status), verdict.Fired, verdict.Steps, verdict.Failure, run.id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return writeErr
}

// RunSummary is one row of the runs table.
type RunSummary struct {
	ID       string
	Scenario string
	Status   string
	Fired    int
	Steps    int64
	Failure  string
}

// Firing is one recorded trace entry.
type Firing struct {
	Seq    int64
	Step   int64
	Scope  string
	Node   string
	Kind   string
	Detail string
}

// ListRuns returns run summaries, most recent first.
func (r *Recorder) ListRuns(ctx context.Context) ([]RunSummary, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, scenario, status, fired, steps, failure
		 FROM runs ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.Scenario, &s.Status, &s.Fired, &s.Steps, &s.Failure); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadRun returns a run's summary and its firing trace in order.
func (r *Recorder) ReadRun(ctx context.Context, id string) (*RunSummary, []Firing, error) {
	var s RunSummary
	err := r.db.QueryRowContext(ctx,
		`SELECT id, scenario, status, fired, steps, failure FROM runs WHERE id = ?`, id).
		Scan(&s.ID, &s.Scenario, &s.Status, &s.Fired, &s.Steps, &s.Failure)
	if err == sql.ErrNoRows {
		return nil, nil, fmt.Errorf("run %q not found", id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read run: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, step, scope, node, kind, detail
		 FROM firings WHERE run_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read firings: %w", err)
	}
	defer rows.Close()

	var firings []Firing
	for rows.Next() {
		var f Firing
		if err := rows.Scan(&f.Seq, &f.Step, &f.Scope, &f.Node, &f.Kind, &f.Detail); err != nil {
			return nil, nil, fmt.Errorf("failed to scan firing: %w", err)
		}
		firings = append(firings, f)
	}
	return &s, firings, rows.Err()
}
