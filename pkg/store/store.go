// Package store keeps a ledger of solved programs in SQLite, keyed by the
// program's content hash. It records search results only; machine state
// never outlives a run.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"github.com/chazu/tribit/pkg/dist"
)

const schema = `
CREATE TABLE IF NOT EXISTS solutions (
	hash       TEXT PRIMARY KEY,
	program    TEXT NOT NULL,
	found      INTEGER NOT NULL,
	seed       TEXT NOT NULL,
	runs       INTEGER NOT NULL,
	step_limit INTEGER NOT NULL,
	solved_at  INTEGER NOT NULL
)`

// Entry is one ledger row. Seed is meaningful only when Found is set.
// StepLimit is the per-candidate limit the search ran under.
type Entry struct {
	Hash      dist.Hash
	Program   string
	Found     bool
	Seed      uint64
	Runs      int64
	StepLimit int
	SolvedAt  time.Time
}

// Answers reports whether e settles a search run under stepLimit. The
// limit decides which candidates are pruned, so a result only carries over
// to searches under the same limit.
func (e *Entry) Answers(stepLimit int) bool {
	return e.StepLimit == stepLimit
}

// Store is a SQLite-backed solution ledger. It is safe for concurrent use.
type Store struct {
	db *sql.DB
}

// Open opens or creates the ledger at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put inserts or replaces the entry for e.Hash.
func (s *Store) Put(ctx context.Context, e Entry) error {
	if e.SolvedAt.IsZero() {
		e.SolvedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO solutions (hash, program, found, seed, runs, step_limit, solved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Hash.String(), e.Program, e.Found, strconv.FormatUint(e.Seed, 10), e.Runs, e.StepLimit, e.SolvedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("store: put %s: %w", e.Hash, err)
	}
	return nil
}

// Lookup returns the entry for h, or nil if the program was never solved.
func (s *Store) Lookup(ctx context.Context, h dist.Hash) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT hash, program, found, seed, runs, step_limit, solved_at FROM solutions WHERE hash = ?`,
		h.String(),
	)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: lookup %s: %w", h, err)
	}
	return e, nil
}

// List returns every entry, most recently solved first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hash, program, found, seed, runs, step_limit, solved_at FROM solutions ORDER BY solved_at DESC, hash`,
	)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// scanner is the subset of *sql.Row and *sql.Rows used by scanEntry.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(r scanner) (*Entry, error) {
	var (
		e        Entry
		hash     string
		seed     string
		solvedAt int64
	)
	if err := r.Scan(&hash, &e.Program, &e.Found, &seed, &e.Runs, &e.StepLimit, &solvedAt); err != nil {
		return nil, err
	}
	h, err := dist.ParseHash(hash)
	if err != nil {
		return nil, err
	}
	e.Hash = h
	e.Seed, err = strconv.ParseUint(seed, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("bad seed %q: %w", seed, err)
	}
	e.SolvedAt = time.Unix(solvedAt, 0)
	return &e, nil
}
