// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/pdiddy/astroquery/pkg/types"
)

// RecordJob inserts or replaces job in the registry. Zero timestamps are
// set to the current time.
func (s *Store) RecordJob(ctx context.Context, job *types.Job) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	if job.UpdatedAt.IsZero() {
		job.UpdatedAt = now
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (service, id, url, query, phase, run_id, created_at, updated_at, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(service, id) DO UPDATE SET
			url=excluded.url, query=excluded.query, phase=excluded.phase,
			run_id=excluded.run_id, updated_at=excluded.updated_at, error=excluded.error`,
		job.Service, job.ID, job.URL, job.Query, string(job.Phase), job.RunID,
		s.stamp(job.CreatedAt), s.stamp(job.UpdatedAt), job.Error,
	)
	if err != nil {
		return fmt.Errorf("recording job %s: %w", job.ID, err)
	}
	return nil
}

// UpdateJob stores a newly observed phase (and error summary) for a job.
func (s *Store) UpdateJob(ctx context.Context, service, id string, phase types.JobPhase, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET phase = ?, error = ?, updated_at = ? WHERE service = ? AND id = ?`,
		string(phase), errMsg, s.stamp(s.now()), service, id,
	)
	if err != nil {
		return fmt.Errorf("updating job %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s/%s: %w", service, id, ErrJobNotFound)
	}
	return nil
}

// Job returns the most recently updated job with the given id.
func (s *Store) Job(ctx context.Context, id string) (*types.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT service, id, url, query, phase, run_id, created_at, updated_at, error
		 FROM jobs WHERE id = ? ORDER BY updated_at DESC LIMIT 1`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", id, ErrJobNotFound)
	}
	return job, err
}

// Jobs lists recorded jobs, newest first. An empty service lists all.
func (s *Store) Jobs(ctx context.Context, service string) ([]types.Job, error) {
	query := `SELECT service, id, url, query, phase, run_id, created_at, updated_at, error FROM jobs`
	var args []any
	if service != "" {
		query += ` WHERE service = ?`
		args = append(args, service)
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing jobs: %w", err)
	}
	defer rows.Close()

	var jobs []types.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// DeleteJob removes a job from the registry.
func (s *Store) DeleteJob(ctx context.Context, service, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE service = ? AND id = ?`, service, id)
	if err != nil {
		return fmt.Errorf("deleting job %s: %w", id, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(sc scanner) (*types.Job, error) {
	var (
		job              types.Job
		phase            string
		query, runID     sql.NullString
		errMsg           sql.NullString
		created, updated string
	)
	if err := sc.Scan(&job.Service, &job.ID, &job.URL, &query, &phase, &runID, &created, &updated, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning job: %w", err)
	}
	job.Phase = types.JobPhase(phase)
	job.Query = query.String
	job.RunID = runID.String
	job.Error = errMsg.String
	job.CreatedAt = parseStamp(created)
	job.UpdatedAt = parseStamp(updated)
	return &job, nil
}
