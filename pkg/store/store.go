// Package store persists check results and workflow run history in a
// shared SQLite database.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultPath returns the default path for the shared storage database.
func DefaultPath() (string, error) {
	if basePath := os.Getenv("DEVOPS_TESTS_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "storage.db"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".devops-tests", "storage.db"), nil
}

// Store wraps the SQLite database holding the check cache and run history.
type Store struct {
	dbPath string
	db     *sqlx.DB
}

// Open opens or creates a SQLite database at the given path with optimal configuration.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create database directory")
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open database")
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}

	if err := configure(ctx, db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to configure database")
	}

	return &Store{dbPath: dbPath, db: db}, nil
}

// configure sets up SQLite pragmas for optimal WAL mode performance.
func configure(ctx context.Context, db *sqlx.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=1000",
		"PRAGMA temp_store=memory",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return errors.Wrapf(err, "failed to execute pragma: %s", pragma)
		}
	}

	db.SetMaxIdleConns(1)
	db.SetMaxOpenConns(1)

	var journalMode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}

	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("WAL mode not enabled. Current mode: %s", journalMode)
	}

	return nil
}

// VerifyConfiguration checks if the database is properly configured with WAL mode.
func (s *Store) VerifyConfiguration() error {
	var journalMode string
	if err := s.db.Get(&journalMode, "PRAGMA journal_mode"); err != nil {
		return errors.Wrap(err, "failed to query journal mode")
	}
	if strings.ToLower(journalMode) != "wal" {
		return errors.Errorf("expected WAL mode, got %s", journalMode)
	}

	var synchronous string
	if err := s.db.Get(&synchronous, "PRAGMA synchronous"); err != nil {
		return errors.Wrap(err, "failed to query synchronous mode")
	}
	if synchronous != "1" {
		return errors.Errorf("expected NORMAL synchronous mode, got %s", synchronous)
	}

	var foreignKeys string
	if err := s.db.Get(&foreignKeys, "PRAGMA foreign_keys"); err != nil {
		return errors.Wrap(err, "failed to query foreign keys")
	}
	if foreignKeys != "1" {
		return errors.Errorf("expected foreign keys ON, got %s", foreignKeys)
	}

	return nil
}

// RunMigrations applies the given migrations to this store's database.
func (s *Store) RunMigrations(ctx context.Context, migrations []Migration) error {
	runner := NewMigrationRunner(s.db)
	return runner.Run(ctx, migrations)
}

// Migrate opens the database at its default path, runs the provided
// migrations and closes it again. This should be called once at CLI startup.
func Migrate(ctx context.Context, migrations []Migration) error {
	dbPath, err := DefaultPath()
	if err != nil {
		return err
	}

	s, err := Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	return s.RunMigrations(ctx, migrations)
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// cacheEntry mirrors a row of the check_cache table.
type cacheEntry struct {
	HookID     string    `db:"hook_id"`
	FilePath   string    `db:"file_path"`
	FileHash   string    `db:"file_hash"`
	ConfigHash string    `db:"config_hash"`
	CheckedAt  time.Time `db:"checked_at"`
}

// CacheGet returns the recorded file and config hashes for a hook/file pair.
// A miss returns empty hashes and no error.
func (s *Store) CacheGet(ctx context.Context, hookID, file string) (string, string, error) {
	var entry cacheEntry
	query := `SELECT hook_id, file_path, file_hash, config_hash, checked_at
		FROM check_cache WHERE hook_id = ? AND file_path = ?`
	err := s.db.GetContext(ctx, &entry, query, hookID, file)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", errors.Wrap(err, "failed to query check cache")
	}
	return entry.FileHash, entry.ConfigHash, nil
}

// CachePut records a passing check for a hook/file pair.
func (s *Store) CachePut(ctx context.Context, hookID, file, fileHash, configHash string) error {
	entry := cacheEntry{
		HookID:     hookID,
		FilePath:   file,
		FileHash:   fileHash,
		ConfigHash: configHash,
		CheckedAt:  time.Now(),
	}

	query := `
		INSERT INTO check_cache (hook_id, file_path, file_hash, config_hash, checked_at)
		VALUES (:hook_id, :file_path, :file_hash, :config_hash, :checked_at)
		ON CONFLICT(hook_id, file_path) DO UPDATE SET
			file_hash = excluded.file_hash,
			config_hash = excluded.config_hash,
			checked_at = excluded.checked_at
	`
	_, err := s.db.NamedExecContext(ctx, query, entry)
	return errors.Wrap(err, "failed to save cache entry")
}

// CacheInvalidate removes cached results for a hook, or the whole cache when
// hookID is empty.
func (s *Store) CacheInvalidate(ctx context.Context, hookID string) error {
	var err error
	if hookID == "" {
		_, err = s.db.ExecContext(ctx, "DELETE FROM check_cache")
	} else {
		_, err = s.db.ExecContext(ctx, "DELETE FROM check_cache WHERE hook_id = ?", hookID)
	}
	return errors.Wrap(err, "failed to invalidate check cache")
}

// WorkflowRun is a stored workflow execution with its JSON report.
type WorkflowRun struct {
	ID         string    `db:"id" json:"id"`
	Event      string    `db:"event" json:"event"`
	Status     string    `db:"status" json:"status"`
	StartedAt  time.Time `db:"started_at" json:"startedAt"`
	FinishedAt time.Time `db:"finished_at" json:"finishedAt"`
	Report     string    `db:"report" json:"report"`
}

// SaveRun inserts or updates a workflow run record.
func (s *Store) SaveRun(ctx context.Context, run WorkflowRun) error {
	query := `
		INSERT INTO workflow_runs (id, event, status, started_at, finished_at, report)
		VALUES (:id, :event, :status, :started_at, :finished_at, :report)
		ON CONFLICT(id) DO UPDATE SET
			event = excluded.event,
			status = excluded.status,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at,
			report = excluded.report
	`
	_, err := s.db.NamedExecContext(ctx, query, run)
	return errors.Wrap(err, "failed to save workflow run")
}

// ListRuns returns stored workflow runs, newest first. A non-positive limit
// returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]WorkflowRun, error) {
	query := `SELECT id, event, status, started_at, finished_at, report
		FROM workflow_runs ORDER BY started_at DESC`

	var runs []WorkflowRun
	var err error
	if limit > 0 {
		err = s.db.SelectContext(ctx, &runs, query+" LIMIT ?", limit)
	} else {
		err = s.db.SelectContext(ctx, &runs, query)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to list workflow runs")
	}
	return runs, nil
}

// GetRun retrieves a stored workflow run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (WorkflowRun, error) {
	var run WorkflowRun
	query := `SELECT id, event, status, started_at, finished_at, report
		FROM workflow_runs WHERE id = ?`
	err := s.db.GetContext(ctx, &run, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WorkflowRun{}, errors.Errorf("workflow run not found: %s", id)
		}
		return WorkflowRun{}, errors.Wrap(err, "failed to load workflow run")
	}
	return run, nil
}
