// Package storage persists the transaction journal in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TxRecord is one journal row.
type TxRecord struct {
	Hash        string
	Contract    string
	Method      string
	From        string
	State       string
	SubmittedAt time.Time
	ResolvedAt  *time.Time
	BlockNumber uint64
	Error       string
}

// Store wraps SQLite-backed persistence for submitted transactions.
type Store struct {
	db *sql.DB
}

// Open initializes a SQLite database and runs minimal schema setup.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := configure(db); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("store not initialized")
	}
	return s.db.PingContext(ctx)
}

func configure(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("set pragma %q: %w", p, err)
		}
	}
	return nil
}

func migrate(db *sql.DB) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	schema := `
CREATE TABLE IF NOT EXISTS transactions (
  hash          TEXT PRIMARY KEY,
  contract      TEXT NOT NULL,
  method        TEXT NOT NULL,
  from_addr     TEXT NOT NULL DEFAULT '',
  state         TEXT NOT NULL,
  submitted_at  TIMESTAMP NOT NULL,
  resolved_at   TIMESTAMP,
  block_number  INTEGER NOT NULL DEFAULT 0,
  error         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_submitted ON transactions(submitted_at);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// RecordSubmitted inserts a freshly submitted transaction. Re-recording the
// same hash keeps the first row.
func (s *Store) RecordSubmitted(ctx context.Context, rec TxRecord) error {
	if rec.Hash == "" {
		return errors.New("hash required")
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO transactions (hash, contract, method, from_addr, state, submitted_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO NOTHING;
`, rec.Hash, rec.Contract, rec.Method, rec.From, rec.State, rec.SubmittedAt.UTC())
	if err != nil {
		return fmt.Errorf("record submitted: %w", err)
	}
	return nil
}

// RecordResolved stores the terminal state for hash.
func (s *Store) RecordResolved(ctx context.Context, hash, state string, blockNumber uint64, errMsg string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
UPDATE transactions
SET state = ?, block_number = ?, error = ?, resolved_at = ?
WHERE hash = ?;
`, state, blockNumber, errMsg, at.UTC(), hash)
	if err != nil {
		return fmt.Errorf("record resolved: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("record resolved: %s: %w", hash, sql.ErrNoRows)
	}
	return nil
}

// Get returns the journal row for hash.
func (s *Store) Get(ctx context.Context, hash string) (TxRecord, bool, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT hash, contract, method, from_addr, state, submitted_at, resolved_at, block_number, error
FROM transactions WHERE hash = ?;
`, hash)

	var (
		rec      TxRecord
		resolved sql.NullTime
	)
	switch err := row.Scan(&rec.Hash, &rec.Contract, &rec.Method, &rec.From, &rec.State,
		&rec.SubmittedAt, &resolved, &rec.BlockNumber, &rec.Error); err {
	case nil:
		if resolved.Valid {
			t := resolved.Time
			rec.ResolvedAt = &t
		}
		return rec, true, nil
	case sql.ErrNoRows:
		return TxRecord{}, false, nil
	default:
		return TxRecord{}, false, fmt.Errorf("get transaction: %w", err)
	}
}

// Recent returns the newest transactions, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]TxRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT hash, contract, method, from_addr, state, submitted_at, resolved_at, block_number, error
FROM transactions ORDER BY submitted_at DESC LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent transactions: %w", err)
	}
	defer rows.Close()

	var out []TxRecord
	for rows.Next() {
		var (
			rec      TxRecord
			resolved sql.NullTime
		)
		if err := rows.Scan(&rec.Hash, &rec.Contract, &rec.Method, &rec.From, &rec.State,
			&rec.SubmittedAt, &resolved, &rec.BlockNumber, &rec.Error); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if resolved.Valid {
			t := resolved.Time
			rec.ResolvedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
