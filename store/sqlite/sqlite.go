/*
Package sqlite provides a SQLite-backed artifact backend.

PURPOSE:
  Keeps the whole hrstore document in one row of a SQLite database. The
  document store still rewrites the full state on every mutation; SQLite
  only supplies the durable, transactional replace and a revision counter
  other processes can see.

KEY TABLES:
  artifact: exactly one row (id = 1)
    document   BLOB     the full JSON document
    revision   INTEGER  bumped on every write
    updated_at TEXT     RFC3339 time of the last write

CONCURRENCY:
  Write runs in one SQL transaction: it reads the current revision, compares
  it with the one the caller last saw, and only then replaces the document.
  A mismatch means another process wrote in between and is reported as
  generic.ErrConcurrentModification.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Readers don't block the writer
  - Single writer at a time
  - Better crash recovery

USAGE:
  backend, err := sqlite.New("./data/hrstore.db")
  if err != nil {
      log.Fatal(err)
  }
  defer backend.Close()

  store := hr.Open(backend)

SEE ALSO:
  - generic/store.go: Backend interface
  - generic/store/file.go: Plain file backend
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/hrstore/generic"
)

// Store implements generic.Backend on SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// New opens (and migrates) the database at dbPath.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A ":memory:" database lives in one connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS artifact (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		document BLOB NOT NULL,
		revision INTEGER NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Read returns the stored document and its revision.
func (s *Store) Read(ctx context.Context) ([]byte, generic.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		doc []byte
		rev int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT document, revision FROM artifact WHERE id = 1`,
	).Scan(&doc, &rev)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, "", generic.ErrNotInitialized
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to read artifact: %w", err)
	}
	return doc, formatRevision(rev), nil
}

// Write replaces the document if the stored revision is still expect.
func (s *Store) Write(ctx context.Context, data []byte, expect generic.Revision) (generic.Revision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var current int64
	err = sqlTx.QueryRowContext(ctx, `SELECT revision FROM artifact WHERE id = 1`).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if expect != "" {
			return "", fmt.Errorf("artifact row removed: %w", generic.ErrConcurrentModification)
		}
	case err != nil:
		return "", fmt.Errorf("failed to read revision: %w", err)
	case formatRevision(current) != expect:
		return "", fmt.Errorf("artifact at revision %d, expected %s: %w",
			current, expect, generic.ErrConcurrentModification)
	}

	next := current + 1
	if err := upsert(ctx, sqlTx, data, next); err != nil {
		return "", err
	}
	if err := sqlTx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit: %w", err)
	}
	return formatRevision(next), nil
}

// Seed stores an initial document, replacing whatever is there.
func (s *Store) Seed(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var current int64
	err = sqlTx.QueryRowContext(ctx, `SELECT revision FROM artifact WHERE id = 1`).Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read revision: %w", err)
	}
	if err := upsert(ctx, sqlTx, data, current+1); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func upsert(ctx context.Context, tx *sql.Tx, data []byte, revision int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO artifact (id, document, revision, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			document = excluded.document,
			revision = excluded.revision,
			updated_at = excluded.updated_at
	`, data, revision, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}
	return nil
}

func formatRevision(rev int64) generic.Revision {
	return generic.Revision(strconv.FormatInt(rev, 10))
}
