// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache keeps a local SQLite database of archive responses,
// submitted asynchronous jobs and query history.
package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/astroquery/pkg/types"
)

const dbFile = "astroquery.db"

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000Z"

// ErrJobNotFound is returned when no job with the requested id is recorded.
var ErrJobNotFound = errors.New("job not found in local registry")

// Store manages the cache database.
type Store struct {
	db  *sql.DB
	dir string
	ttl time.Duration

	// now is replaced in tests.
	now func() time.Time
}

// Open opens or creates the database at cfg.Dir/astroquery.db and creates
// the schema if it does not exist.
func Open(cfg types.CacheConfig) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("cache directory not configured")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	dbPath := filepath.Join(cfg.Dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:  db,
		dir: cfg.Dir,
		ttl: cfg.TTL,
		now: time.Now,
	}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return filepath.Join(s.dir, dbFile)
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS responses (
			key TEXT PRIMARY KEY,
			service TEXT NOT NULL,
			query TEXT NOT NULL,
			payload BLOB NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_responses_created ON responses(created_at)`,
		`CREATE TABLE IF NOT EXISTS jobs (
			service TEXT NOT NULL,
			id TEXT NOT NULL,
			url TEXT NOT NULL,
			query TEXT,
			phase TEXT NOT NULL,
			run_id TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			error TEXT,
			PRIMARY KEY (service, id)
		)`,
		`CREATE TABLE IF NOT EXISTS history (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			service TEXT NOT NULL,
			query TEXT NOT NULL,
			row_count INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_history_created ON history(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// Full-text index over history queries, kept in sync by triggers.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='history_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}
	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE history_fts USING fts4(query)`,
			`CREATE TRIGGER history_ai AFTER INSERT ON history BEGIN
				INSERT INTO history_fts(docid, query) VALUES (new.rowid, new.query);
			END`,
			`CREATE TRIGGER history_ad AFTER DELETE ON history BEGIN
				DELETE FROM history_fts WHERE docid = old.rowid;
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// Lookup returns the cached payload for key. Entries older than the
// configured TTL are reported as misses.
func (s *Store) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	var (
		payload []byte
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT payload, created_at FROM responses WHERE key = ?`, key,
	).Scan(&payload, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cached response: %w", err)
	}

	if s.ttl > 0 {
		t, err := time.Parse(timeLayout, created)
		if err != nil || s.now().Sub(t) > s.ttl {
			log.WithField("key", key[:min(12, len(key))]).Debug("Cached response expired")
			return nil, false, nil
		}
	}
	log.WithField("key", key[:min(12, len(key))]).Debug("Cache hit")
	return payload, true, nil
}

// Store saves payload under key, replacing any previous entry.
func (s *Store) Store(ctx context.Context, key, service, query string, payload []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO responses (key, service, query, payload, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			service=excluded.service, query=excluded.query,
			payload=excluded.payload, created_at=excluded.created_at`,
		key, service, query, payload, s.stamp(s.now()),
	)
	if err != nil {
		return fmt.Errorf("storing response: %w", err)
	}
	return nil
}

// ClearSummary counts rows removed by Clear.
type ClearSummary struct {
	Responses int64
	Jobs      int64
	History   int64
}

// Clear removes cached responses, finished jobs and history entries created
// more than olderThan ago. Zero removes everything; jobs that have not
// reached a terminal phase are always kept.
func (s *Store) Clear(ctx context.Context, olderThan time.Duration) (ClearSummary, error) {
	cutoff := s.stamp(s.now().Add(-olderThan))
	if olderThan <= 0 {
		cutoff = s.stamp(s.now().Add(time.Hour))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ClearSummary{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var sum ClearSummary
	deletes := []struct {
		count *int64
		stmt  string
		args  []any
	}{
		{&sum.Responses, `DELETE FROM responses WHERE created_at < ?`, []any{cutoff}},
		{&sum.Jobs, `DELETE FROM jobs WHERE updated_at < ? AND phase IN (?, ?, ?, ?)`, []any{cutoff,
			string(types.PhaseCompleted), string(types.PhaseError), string(types.PhaseAborted), string(types.PhaseArchived)}},
		{&sum.History, `DELETE FROM history WHERE created_at < ?`, []any{cutoff}},
	}
	for _, d := range deletes {
		res, err := tx.ExecContext(ctx, d.stmt, d.args...)
		if err != nil {
			return ClearSummary{}, fmt.Errorf("clearing cache: %w", err)
		}
		*d.count, _ = res.RowsAffected()
	}
	if err := tx.Commit(); err != nil {
		return ClearSummary{}, fmt.Errorf("committing: %w", err)
	}
	return sum, nil
}

func (s *Store) stamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseStamp(v string) time.Time {
	t, _ := time.Parse(timeLayout, v)
	return t
}
