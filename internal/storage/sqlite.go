package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/JamesPrial/liferpg/internal/engine"
)

var sqliteDialect = dialect{
	name:     "sqlite",
	isNoRows: func(err error) bool { return errors.Is(err, sql.ErrNoRows) },
	isUnique: func(err error) bool {
		var se *sqlite.Error
		if !errors.As(err, &se) {
			return false
		}
		switch se.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		case sqlite3.SQLITE_CONSTRAINT:
			// Primary result code only; the message names the constraint.
			return strings.Contains(se.Error(), "UNIQUE constraint failed")
		}
		return false
	},
}

// SQLiteStore implements engine.Store on a local SQLite file.
//
// The database runs in WAL mode with a busy timeout and foreign keys on.
// Transactions begin IMMEDIATE, taking the write lock up front, so writers
// in other processes wait instead of failing on a stale snapshot.
// Schema migrations are applied when the store is opened.
type SQLiteStore struct {
	// DBPath is the absolute path to the SQLite database file.
	DBPath string

	db *sql.DB
}

var _ engine.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at dbPath. Parent
// directories are created as needed.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(on)&_txlock=immediate", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to check journal mode: %w", err)
	}
	if journalMode != "wal" {
		_ = db.Close()
		return nil, fmt.Errorf("expected WAL journal mode, got %q", journalMode)
	}

	s := &SQLiteStore{DBPath: dbPath, db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// InTx runs fn inside a database transaction, committing on success.
func (s *SQLiteStore) InTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(&sqlTx{q: &sqlQuerier{ctx: ctx, tx: tx}, d: sqliteDialect}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, metaDDL); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}
	return runMigrations(ctx, sqliteDialect, sqliteMigrations, func(fn func(q querier) error) error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if err := fn(&sqlQuerier{ctx: ctx, tx: tx}); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

// sqlQuerier adapts a database/sql transaction to querier.
type sqlQuerier struct {
	ctx context.Context
	tx  *sql.Tx
}

func (q *sqlQuerier) exec(query string, args ...any) error {
	_, err := q.tx.ExecContext(q.ctx, query, args...)
	return err
}

func (q *sqlQuerier) queryRow(query string, args ...any) row {
	return q.tx.QueryRowContext(q.ctx, query, args...)
}

func (q *sqlQuerier) query(query string, args ...any) (rows, func(), error) {
	rs, err := q.tx.QueryContext(q.ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	return rs, func() { _ = rs.Close() }, nil
}
