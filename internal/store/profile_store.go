// Package store persists each profile's medication list in its own SQLite
// database.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Both drivers register themselves; Options.Driver picks one.
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"medtrack/internal/apperr"
	"medtrack/internal/logging"
	"medtrack/internal/medication"
)

// Driver names as registered with database/sql.
const (
	DriverSQLite3 = "sqlite3" // github.com/mattn/go-sqlite3
	DriverSQLite  = "sqlite"  // modernc.org/sqlite
)

// Options configures how a profile database is opened.
type Options struct {
	Driver      string
	BusyTimeout time.Duration
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{Driver: DriverSQLite3, BusyTimeout: 5 * time.Second}
}

const medicationsTable = `
CREATE TABLE IF NOT EXISTS medications (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	strength TEXT NOT NULL,
	dosage_frequency TEXT NOT NULL
)`

// ProfileStore is a handle on one profile's medications table. A handle
// must not be shared by concurrently running units of work.
type ProfileStore struct {
	db     *sql.DB
	path   string
	driver string
}

// Open opens (creating if needed) the profile database at path, ensures the
// schema exists and applies pending migrations.
func Open(path string, opts Options) (*ProfileStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	if opts.Driver == "" {
		opts.Driver = DefaultOptions().Driver
	}
	if opts.BusyTimeout <= 0 {
		opts.BusyTimeout = DefaultOptions().BusyTimeout
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, apperr.Persistence("open profile", fmt.Errorf("failed to create directory: %w", err))
	}

	db, err := sql.Open(opts.Driver, path)
	if err != nil {
		logging.StoreError("Failed to open database at %s: %v", path, err)
		return nil, apperr.Persistence("open profile", fmt.Errorf("failed to open database: %w", err))
	}
	// One connection keeps the transaction and its statements on the same
	// SQLite connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds())); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}

	if _, err := db.Exec(medicationsTable); err != nil {
		db.Close()
		return nil, apperr.Persistence("open profile", fmt.Errorf("failed to create schema: %w", err))
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, apperr.Persistence("open profile", err)
	}

	logging.StoreDebug("Opened profile %s (driver=%s)", path, opts.Driver)
	return &ProfileStore{db: db, path: path, driver: opts.Driver}, nil
}

// Path returns the database file path. It identifies the profile.
func (s *ProfileStore) Path() string { return s.path }

// Name returns the profile name derived from the file name.
func (s *ProfileStore) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), Ext)
}

// Close closes the handle. Any transaction still open is rolled back by
// SQLite.
func (s *ProfileStore) Close() error {
	return s.db.Close()
}

// Row is a persisted record with its storage id. Ids are reassigned by every
// reconciliation.
type Row struct {
	ID int64
	medication.Record
}

// Load returns every record in insertion order.
func (s *ProfileStore) Load(ctx context.Context) ([]medication.Record, error) {
	rows, err := s.LoadRows(ctx)
	if err != nil {
		return nil, err
	}
	records := make([]medication.Record, len(rows))
	for i, r := range rows {
		records[i] = r.Record
	}
	return records, nil
}

// LoadRows returns every row with its id, in insertion order.
func (s *ProfileStore) LoadRows(ctx context.Context) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, strength, dosage_frequency, COALESCE(description, '') FROM medications ORDER BY id")
	if err != nil {
		return nil, apperr.Persistence("load medications", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.ID, &r.Name, &r.Strength, &r.Frequency, &r.Description); err != nil {
			return nil, apperr.Persistence("load medications", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Persistence("load medications", err)
	}
	logging.StoreDebug("Loaded %d medications from %s", len(out), s.Name())
	return out, nil
}

// Insert appends one record outside any transaction and returns its id.
func (s *ProfileStore) Insert(ctx context.Context, r medication.Record) (int64, error) {
	res, err := s.db.ExecContext(ctx, insertMedication, r.Name, r.Strength, r.Frequency, r.Description)
	if err != nil {
		return 0, apperr.Persistence("insert medication", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, apperr.Persistence("insert medication", err)
	}
	return id, nil
}

// Delete removes the row with the given id. It reports whether a row was
// removed.
func (s *ProfileStore) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM medications WHERE id = ?", id)
	if err != nil {
		return false, apperr.Persistence("delete medication", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, apperr.Persistence("delete medication", err)
	}
	return n > 0, nil
}

const insertMedication = "INSERT INTO medications (name, strength, dosage_frequency, description) VALUES (?, ?, ?, ?)"

// =============================================================================
// TRANSACTIONS
// =============================================================================

// Tx is an open write transaction on a profile. Rollback after Commit is a
// no-op, so callers can always defer Rollback.
type Tx struct {
	tx   *sql.Tx
	done bool
}

// Begin starts a write transaction.
func (s *ProfileStore) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperr.Persistence("begin transaction", err)
	}
	return &Tx{tx: tx}, nil
}

// Clear deletes every medication row.
func (t *Tx) Clear(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, "DELETE FROM medications"); err != nil {
		return apperr.Persistence("clear medications", err)
	}
	return nil
}

// Insert writes one record.
func (t *Tx) Insert(ctx context.Context, r medication.Record) error {
	if _, err := t.tx.ExecContext(ctx, insertMedication, r.Name, r.Strength, r.Frequency, r.Description); err != nil {
		return apperr.Persistence("insert medication", err)
	}
	return nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return apperr.Persistence("commit", sql.ErrTxDone)
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return apperr.Persistence("commit", err)
	}
	return nil
}

// Rollback aborts the transaction unless it was already finished.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return apperr.Persistence("rollback", err)
	}
	return nil
}
