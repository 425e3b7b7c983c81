package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is the on-disk Store implementation.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore builds a store backed by the SQLite file at path. Call
// Init before using it.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	return &SQLiteStore{path: path}, nil
}

// Init opens the database in WAL mode and runs pending migrations.
func (s *SQLiteStore) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL&_txlock=immediate", s.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db
	return s.migrate()
}

func (s *SQLiteStore) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}
	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("build migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("build migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// CreateRun inserts a new run row.
func (s *SQLiteStore) CreateRun(ctx context.Context, run *RunReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, plan_name, status, started_at, completed_at, error) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.PlanName, run.Status, run.StartedAt, run.CompletedAt, run.Error,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// UpdateRunStatus transitions a run's status, stamping completed_at when it
// reaches a terminal state.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, id string, status RunStatus, errMsg *string) error {
	var completedAt *time.Time
	if status == RunStatusCompleted || status == RunStatusFailed {
		now := time.Now()
		completedAt = &now
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return checkRowsAffected(result, "run", id)
}

// GetRun retrieves a single run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*RunReport, error) {
	run := &RunReport{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, plan_name, status, started_at, completed_at, error FROM runs WHERE id = ?`, id,
	).Scan(&run.ID, &run.PlanName, &run.Status, &run.StartedAt, &run.CompletedAt, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// Recent returns the n most recently started runs.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]*RunReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, plan_name, status, started_at, completed_at, error FROM runs ORDER BY started_at DESC LIMIT ?`, n,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunReport
	for rows.Next() {
		run := &RunReport{}
		if err := rows.Scan(&run.ID, &run.PlanName, &run.Status, &run.StartedAt, &run.CompletedAt, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// CreateActionReport inserts a new action report row, populating its
// auto-generated ID.
func (s *SQLiteStore) CreateActionReport(ctx context.Context, report *ActionReport) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO action_reports (run_id, action_name, host, status, retries, started_at, completed_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.ActionName, report.Host, report.Status, report.Retries,
		report.StartedAt, report.CompletedAt, report.Error,
	)
	if err != nil {
		return fmt.Errorf("create action report: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("read action report id: %w", err)
	}
	report.ID = id
	return nil
}

// UpdateActionReport transitions an action report's status, stamping
// completed_at when it reaches a terminal state.
func (s *SQLiteStore) UpdateActionReport(ctx context.Context, id int64, status ActionStatus, errMsg *string) error {
	var completedAt *time.Time
	if status == ActionStatusSucceeded || status == ActionStatusFailed {
		now := time.Now()
		completedAt = &now
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE action_reports SET status = ?, error = ?, completed_at = ? WHERE id = ?`,
		status, errMsg, completedAt, id,
	)
	if err != nil {
		return fmt.Errorf("update action report: %w", err)
	}
	return checkRowsAffected(result, "action report", fmt.Sprintf("%d", id))
}

// ListActionsByRun returns every action report belonging to runID, oldest
// first.
func (s *SQLiteStore) ListActionsByRun(ctx context.Context, runID string) ([]*ActionReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, run_id, action_name, host, status, retries, started_at, completed_at, error
		 FROM action_reports WHERE run_id = ? ORDER BY started_at ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list action reports: %w", err)
	}
	defer rows.Close()

	var reports []*ActionReport
	for rows.Next() {
		r := &ActionReport{}
		if err := rows.Scan(&r.ID, &r.RunID, &r.ActionName, &r.Host, &r.Status, &r.Retries, &r.StartedAt, &r.CompletedAt, &r.Error); err != nil {
			return nil, fmt.Errorf("scan action report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

func checkRowsAffected(result sql.Result, kind, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
