// Package history records cleaning runs in a SQL database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/KaramelBytes/tidyloom-cli/internal/clean"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned by GetRun for an unknown id.
var ErrRunNotFound = errors.New("run not found")

// ErrUnsupportedDriver is returned by Open for driver names it does not know.
var ErrUnsupportedDriver = errors.New("unsupported history driver")

// Timestamps are stored as fixed-width UTC text so that they sort and
// round-trip the same way on every backend.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// Config selects the backend.
type Config struct {
	Driver string
	DSN    string
}

// Run is one recorded pipeline execution.
type Run struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	Status      string    `json:"status"`
	Error       string    `json:"error,omitempty"`
	Steps       []string  `json:"steps"`
	RowsIn      int       `json:"rows_in"`
	RowsOut     int       `json:"rows_out"`
	RowsRemoved int       `json:"rows_removed"`
	Warnings    []string  `json:"warnings,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	// Log is only filled by GetRun.
	Log []string `json:"log,omitempty"`
}

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunFromResult converts a completed pipeline result.
func RunFromResult(source string, res *clean.Result) Run {
	steps := make([]string, len(res.Steps))
	for i, s := range res.Steps {
		steps[i] = string(s)
	}
	return Run{
		ID:          res.RunID,
		Source:      source,
		Status:      StatusCompleted,
		Steps:       steps,
		RowsIn:      res.RowsIn,
		RowsOut:     res.RowsOut,
		RowsRemoved: res.RowsRemoved,
		Warnings:    res.Warnings,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Log:         res.Log,
	}
}

// Store persists runs. It is safe for concurrent use.
type Store struct {
	db *sql.DB
	d  dialect
}

// Open connects, pings and migrates. For sqlite the DSN's parent directory
// is created when missing.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	d, ok := lookupDialect(cfg.Driver)
	if !ok {
		return nil, fmt.Errorf("%w: %q (use sqlite, pgx or sqlserver)", ErrUnsupportedDriver, cfg.Driver)
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("history: empty dsn for driver %s", d.driver)
	}
	if d.driver == "sqlite" && !strings.HasPrefix(cfg.DSN, "file:") && cfg.DSN != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DSN), 0o755); err != nil {
			return nil, fmt.Errorf("history: create dir: %w", err)
		}
	}
	db, err := sql.Open(d.driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("history: open: %w", err)
	}
	if d.driver == "sqlite" {
		// one writer at a time
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}
	s := &Store{db: db, d: d}
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Migrate creates the runs and run_log tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	for _, q := range s.d.ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("history: migrate: %w", err)
		}
	}
	return nil
}

// SaveRun inserts run and its log in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	warnings, err := json.Marshal(nonNil(run.Warnings))
	if err != nil {
		return fmt.Errorf("history: encode warnings: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, s.d.bind(`INSERT INTO runs
		(id, source, status, error, steps, rows_in, rows_out, rows_removed, warnings, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		run.ID, run.Source, run.Status, run.Error, strings.Join(run.Steps, ","),
		run.RowsIn, run.RowsOut, run.RowsRemoved, string(warnings),
		run.StartedAt.UTC().Format(tsLayout), run.FinishedAt.UTC().Format(tsLayout))
	if err != nil {
		return fmt.Errorf("history: insert run %s: %w", run.ID, err)
	}
	stmt, err := tx.PrepareContext(ctx, s.d.bind(`INSERT INTO run_log (run_id, seq, entry) VALUES (?, ?, ?)`))
	if err != nil {
		return fmt.Errorf("history: prepare log insert: %w", err)
	}
	defer stmt.Close()
	for i, e := range run.Log {
		if _, err := stmt.ExecContext(ctx, run.ID, i+1, e); err != nil {
			return fmt.Errorf("history: insert log entry %d: %w", i+1, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

const runColumns = "id, source, status, error, steps, rows_in, rows_out, rows_removed, warnings, started_at, finished_at"

// ListRuns returns up to limit runs, newest first, without their logs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	q := s.d.limit(runColumns, "FROM runs ORDER BY started_at DESC, id", limit)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns the run with its log. id may be a unique prefix.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	q := s.d.bind("SELECT " + runColumns + " FROM runs WHERE id LIKE ? ORDER BY id")
	rows, err := s.db.QueryContext(ctx, q, escapeLike(id)+"%")
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	var matches []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		matches = append(matches, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	switch {
	case len(matches) == 0 || id == "":
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case len(matches) > 1:
		return nil, fmt.Errorf("run id prefix %q is ambiguous (%d matches)", id, len(matches))
	}
	run := matches[0]

	logRows, err := s.db.QueryContext(ctx, s.d.bind("SELECT entry FROM run_log WHERE run_id = ? ORDER BY seq"), run.ID)
	if err != nil {
		return nil, fmt.Errorf("history: get log: %w", err)
	}
	defer logRows.Close()
	for logRows.Next() {
		var e string
		if err := logRows.Scan(&e); err != nil {
			return nil, fmt.Errorf("history: scan log: %w", err)
		}
		run.Log = append(run.Log, e)
	}
	return &run, logRows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r                 Run
		steps, warnings   string
		started, finished string
		in, out, removed  int64
	)
	if err := sc.Scan(&r.ID, &r.Source, &r.Status, &r.Error, &steps, &in, &out, &removed, &warnings, &started, &finished); err != nil {
		return Run{}, fmt.Errorf("history: scan run: %w", err)
	}
	r.RowsIn, r.RowsOut, r.RowsRemoved = int(in), int(out), int(removed)
	if steps != "" {
		r.Steps = strings.Split(steps, ",")
	}
	if err := json.Unmarshal([]byte(warnings), &r.Warnings); err != nil {
		return Run{}, fmt.Errorf("history: decode warnings of %s: %w", r.ID, err)
	}
	var err error
	if r.StartedAt, err = time.Parse(tsLayout, started); err != nil {
		return Run{}, fmt.Errorf("history: started_at of %s: %w", r.ID, err)
	}
	if r.FinishedAt, err = time.Parse(tsLayout, finished); err != nil {
		return Run{}, fmt.Errorf("history: finished_at of %s: %w", r.ID, err)
	}
	return r, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

var likeEscaper = strings.NewReplacer("%", "", "_", "")

// escapeLike drops LIKE wildcards; run ids only contain hex digits and dashes.
func escapeLike(s string) string { return likeEscaper.Replace(s) }
