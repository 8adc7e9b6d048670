package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/runpipe/internal/model"
)

// DB provides SQLite-based storage for pipeline run history.
// It manages connection pooling and provides methods for saving and
// loading runs.
type DB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures DB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent
	// read performance. This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the run history database in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dbDir, "history.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("history database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite connection strings: mode=rw opens an existing
	// file only, mode=rwc also creates it.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single pooled connection also
	// keeps the pragmas below applied to every statement.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &DB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if _, err := db.ExecContext(context.Background(), "PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (hdb *DB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *DB) createTables() error {
	schema := `
	-- One row per pipeline run
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL,
		command TEXT NOT NULL,
		separator TEXT NOT NULL,
		stage_count INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_fingerprint ON runs(fingerprint);
	CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

	-- One row per stage of a run
	CREATE TABLE IF NOT EXISTS stage_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		stage_index INTEGER NOT NULL,
		command TEXT NOT NULL,
		pid INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		signal TEXT NOT NULL DEFAULT '',
		launch_error TEXT NOT NULL DEFAULT '',
		wait_error TEXT NOT NULL DEFAULT '',
		UNIQUE(run_id, stage_index)
	);

	CREATE INDEX IF NOT EXISTS idx_stage_results_run ON stage_results(run_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores a finished run and its stage results in one
// transaction and returns the new run id.
func (hdb *DB) SaveRun(ctx context.Context, report *model.RunReport) (int64, error) {
	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	result, err := tx.ExecContext(ctx, `
	INSERT INTO runs (fingerprint, command, separator, stage_count, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?)
	`,
		report.Fingerprint,
		report.Command,
		report.Separator,
		report.StageCount(),
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	runID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for i := range report.Stages {
		stage := &report.Stages[i]
		_, err := tx.ExecContext(ctx, `
		INSERT INTO stage_results (run_id, stage_index, command, pid, exit_code, signal, launch_error, wait_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID,
			stage.Index,
			stage.Command,
			stage.PID,
			stage.ExitCode,
			stage.Signal,
			stage.LaunchError,
			stage.WaitError,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert stage result %d: %w", stage.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return runID, nil
}

// RecentRuns returns up to limit runs, most recently finished first,
// each with its stage results loaded.
func (hdb *DB) RecentRuns(ctx context.Context, limit int) ([]*model.RunReport, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, fingerprint, command, separator, started_at, finished_at
	FROM runs
	ORDER BY finished_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var reports []*model.RunReport
	for rows.Next() {
		report, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, report := range reports {
		if err := hdb.loadStages(ctx, report); err != nil {
			return nil, err
		}
	}
	return reports, nil
}

// GetRun returns the run with the given id, with its stage results
// loaded. It returns nil without an error when no such run exists.
func (hdb *DB) GetRun(ctx context.Context, id int64) (*model.RunReport, error) {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT id, fingerprint, command, separator, started_at, finished_at
	FROM runs
	WHERE id = ?
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	report, err := scanRun(rows)
	if err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := hdb.loadStages(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// scanRun reads one runs row into a report, without its stages.
func scanRun(rows *sql.Rows) (*model.RunReport, error) {
	var report model.RunReport
	var startedAt, finishedAt string

	if err := rows.Scan(
		&report.ID,
		&report.Fingerprint,
		&report.Command,
		&report.Separator,
		&startedAt,
		&finishedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}

	report.StartedAt = parseTimestamp(startedAt)
	report.FinishedAt = parseTimestamp(finishedAt)
	return &report, nil
}

// loadStages fills in the report's stage results in stage order.
func (hdb *DB) loadStages(ctx context.Context, report *model.RunReport) error {
	rows, err := hdb.db.QueryContext(ctx, `
	SELECT stage_index, command, pid, exit_code, signal, launch_error, wait_error
	FROM stage_results
	WHERE run_id = ?
	ORDER BY stage_index
	`, report.ID)
	if err != nil {
		return fmt.Errorf("failed to query stage results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stage model.StageResult
		if err := rows.Scan(
			&stage.Index,
			&stage.Command,
			&stage.PID,
			&stage.ExitCode,
			&stage.Signal,
			&stage.LaunchError,
			&stage.WaitError,
		); err != nil {
			return fmt.Errorf("failed to scan stage result: %w", err)
		}
		report.Stages = append(report.Stages, stage)
	}
	return rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,          // Format used when saving runs
	time.RFC3339,              // Full RFC3339 format
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple
// formats. SQLite may return timestamps in different formats depending
// on configuration. If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
