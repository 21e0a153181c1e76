package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store holds forecast sessions in one SQLite file.
type Store struct {
	db *sql.DB
}

type pragmaSetting struct {
	name  string
	value string
}

// Connection settings, applied in order on every open.
var connectionPragmas = []pragmaSetting{
	{"journal_mode", "WAL"},
	{"synchronous", "NORMAL"},
	{"busy_timeout", "5000"},
	{"foreign_keys", "ON"},
}

// migrations[i] brings a database from user_version i to i+1. A fresh
// database starts from schema.sql at version 0.
var migrations = []func(tx *sql.Tx) error{
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_runs_session_seq ON runs(session_id, seq)`)
		return err
	},
	// v2: cells.value becomes nullable so NaN results can be stored.
	func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			CREATE TABLE cells_v2 (
				session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				key        TEXT NOT NULL,
				statement  TEXT NOT NULL,
				year       INTEGER NOT NULL,
				account_id TEXT NOT NULL,
				value      REAL,
				PRIMARY KEY (session_id, key)
			);
			INSERT INTO cells_v2 SELECT session_id, key, statement, year, account_id, value FROM cells;
			DROP TABLE cells;
			ALTER TABLE cells_v2 RENAME TO cells;
			CREATE INDEX IF NOT EXISTS idx_cells_session_year ON cells(session_id, year);
		`)
		return err
	},
}

// Open opens the database at path, creating it when missing, and brings
// its schema up to date. ":memory:" gives a private in-memory database.
// Opening an existing file twice is safe.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.init(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	for _, p := range connectionPragmas {
		stmt := fmt.Sprintf("PRAGMA %s = %s", p.name, p.value)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("pragma %s: %w", p.name, err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return s.migrate(ctx)
}

// migrate runs each pending migration in its own transaction and bumps
// user_version with it.
func (s *Store) migrate(ctx context.Context) error {
	version, err := s.schemaVersion(ctx)
	if err != nil {
		return err
	}
	for ; version < len(migrations); version++ {
		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if err := migrations[version](tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", version+1))
			return err
		})
		if err != nil {
			return fmt.Errorf("migrate to v%d: %w", version+1, err)
		}
	}
	return nil
}

func (s *Store) schemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("read user_version: %w", err)
	}
	return v, nil
}

// inTx runs fn in a transaction, committing when fn returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Close releases the connection. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Query runs a read-only query. The caller closes the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// verifyPragma reports an error unless PRAGMA name reads back as want.
func (s *Store) verifyPragma(name, want string) error {
	var got string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&got); err != nil {
		return fmt.Errorf("read pragma %s: %w", name, err)
	}
	if got != want {
		return fmt.Errorf("pragma %s: got %q, want %q", name, got, want)
	}
	return nil
}
