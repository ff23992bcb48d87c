// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"
)

const defaultHistoryLimit = 20

// HistoryEntry is one executed query.
type HistoryEntry struct {
	ID        string    `json:"id" yaml:"id"`
	Service   string    `json:"service" yaml:"service"`
	Query     string    `json:"query" yaml:"query"`
	Rows      int       `json:"rows" yaml:"rows"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
}

// RecordQuery appends a query to the history and returns its id.
func (s *Store) RecordQuery(ctx context.Context, service, query string, rows int) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (id, service, query, row_count, created_at) VALUES (?, ?, ?, ?, ?)`,
		id, service, query, rows, s.stamp(s.now()),
	)
	if err != nil {
		return "", fmt.Errorf("recording query: %w", err)
	}
	return id, nil
}

// SearchHistory returns history entries whose query text matches every word
// of text, newest first. An empty text returns the most recent entries.
// A limit of zero uses the default; a negative limit returns everything.
func (s *Store) SearchHistory(ctx context.Context, text string, limit int) ([]HistoryEntry, error) {
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	var (
		qb   strings.Builder
		args []any
	)
	if match := ftsMatch(text); match != "" {
		qb.WriteString(`SELECT h.id, h.service, h.query, h.row_count, h.created_at
			FROM history_fts JOIN history h ON h.rowid = history_fts.docid
			WHERE history_fts MATCH ?`)
		args = append(args, match)
	} else {
		qb.WriteString(`SELECT h.id, h.service, h.query, h.row_count, h.created_at FROM history h`)
	}
	qb.WriteString(` ORDER BY h.created_at DESC, h.rowid DESC LIMIT ?`)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("searching history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var (
			e       HistoryEntry
			created string
		)
		if err := rows.Scan(&e.ID, &e.Service, &e.Query, &e.Rows, &created); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		e.CreatedAt = parseStamp(created)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ftsMatch turns each word of text into a quoted phrase so ADQL punctuation
// is not read as full-text query syntax. Words without letters or digits
// are dropped.
func ftsMatch(text string) string {
	var phrases []string
	for _, w := range strings.Fields(text) {
		w = strings.ReplaceAll(w, `"`, " ")
		if !strings.ContainsFunc(w, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
			continue
		}
		phrases = append(phrases, `"`+w+`"`)
	}
	return strings.Join(phrases, " ")
}

// ExportYAML writes history entries matching text to path, defaulting to
// history.yaml in the cache directory. It returns the path written.
func (s *Store) ExportYAML(ctx context.Context, path, text string) (string, error) {
	entries, err := s.SearchHistory(ctx, text, -1)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	data, err := yaml.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshaling YAML: %w", err)
	}
	return s.writeExport(path, "history.yaml", data)
}

// ExportJSON is ExportYAML for JSON, defaulting to history.json.
func (s *Store) ExportJSON(ctx context.Context, path, text string) (string, error) {
	entries, err := s.SearchHistory(ctx, text, -1)
	if err != nil {
		return "", fmt.Errorf("querying for export: %w", err)
	}
	if entries == nil {
		entries = []HistoryEntry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling JSON: %w", err)
	}
	return s.writeExport(path, "history.json", append(data, '\n'))
}

func (s *Store) writeExport(path, name string, data []byte) (string, error) {
	if path == "" {
		path = filepath.Join(s.dir, name)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Responses    int
	PayloadBytes int64
	Jobs         int
	ActiveJobs   int
	History      int
	FileBytes    int64
	Oldest       time.Time
}

// Stats counts rows and sizes in the cache.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var (
		st     Stats
		oldest sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(length(payload)), 0), min(created_at) FROM responses`,
	).Scan(&st.Responses, &st.PayloadBytes, &oldest)
	if err != nil {
		return Stats{}, fmt.Errorf("counting responses: %w", err)
	}
	if oldest.Valid {
		st.Oldest = parseStamp(oldest.String)
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT count(*), coalesce(sum(CASE WHEN phase IN ('COMPLETED','ERROR','ABORTED','ARCHIVED') THEN 0 ELSE 1 END), 0) FROM jobs`,
	).Scan(&st.Jobs, &st.ActiveJobs)
	if err != nil {
		return Stats{}, fmt.Errorf("counting jobs: %w", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM history`).Scan(&st.History); err != nil {
		return Stats{}, fmt.Errorf("counting history: %w", err)
	}

	if info, err := os.Stat(s.Path()); err == nil {
		st.FileBytes = info.Size()
	}
	return st, nil
}

// String renders the stats for display.
func (st Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Cached responses: %d (%s)\n", st.Responses, humanize.Bytes(uint64(st.PayloadBytes)))
	if !st.Oldest.IsZero() {
		fmt.Fprintf(&b, "Oldest response:  %s\n", humanize.Time(st.Oldest))
	}
	fmt.Fprintf(&b, "Jobs:             %d (%d active)\n", st.Jobs, st.ActiveJobs)
	fmt.Fprintf(&b, "History entries:  %d\n", st.History)
	fmt.Fprintf(&b, "Database size:    %s\n", humanize.Bytes(uint64(st.FileBytes)))
	return b.String()
}
