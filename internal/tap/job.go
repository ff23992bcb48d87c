// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package tap

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/astroquery/internal/httputil"
	"github.com/pdiddy/astroquery/internal/votable"
	"github.com/pdiddy/astroquery/pkg/types"
)

// JobError reports an async job that ended in ERROR or ABORTED, or whose
// results were archived.
type JobError struct {
	JobID   string
	Phase   types.JobPhase
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("job %s ended in phase %s", e.JobID, e.Phase)
	}
	return fmt.Sprintf("job %s ended in phase %s: %s", e.JobID, e.Phase, e.Message)
}

// JobTimeoutError is returned when a job is still running after the
// caller's wait bound. The job keeps running on the service; its results
// can be fetched later using JobID or URL.
type JobTimeoutError struct {
	JobID  string
	URL    string
	Phase  types.JobPhase
	Waited time.Duration
}

func (e *JobTimeoutError) Error() string {
	return fmt.Sprintf("job %s still %s after %s; results can be retrieved later by job id",
		e.JobID, e.Phase, e.Waited.Round(time.Millisecond))
}

// uwsJob is the UWS job description document.
type uwsJob struct {
	JobID        string `xml:"jobId"`
	RunID        string `xml:"runId"`
	Phase        string `xml:"phase"`
	CreationTime string `xml:"creationTime"`
	ErrorSummary *struct {
		Message string `xml:"message"`
	} `xml:"errorSummary"`
	Parameters []struct {
		ID    string `xml:"id,attr"`
		Value string `xml:",chardata"`
	} `xml:"parameters>parameter"`
}

// Submit creates an async job for query in the PENDING phase. The job is
// tagged with a random RUNID so it can be recognised in the service's job
// list.
func (c *Client) Submit(ctx context.Context, query string, opts QueryOptions) (*types.Job, error) {
	form := queryForm(query, opts)
	runID := uuid.NewString()
	form.Set("RUNID", runID)

	asyncURL := c.endpoint("async")
	req, err := c.newRequest(ctx, http.MethodPost, asyncURL, form)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s job submission: %w", c.label(), err)
	}
	defer resp.Body.Close()

	payload, err := c.readPayload(resp)
	if err != nil {
		return nil, fmt.Errorf("submitting job: %w", err)
	}

	now := time.Now().UTC()
	job := &types.Job{
		Service:   c.label(),
		Phase:     types.PhasePending,
		Query:     query,
		RunID:     runID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	// Services answer with a 303 to the job resource; the client follows it,
	// so the final request URL is the job URL.
	jobURL := strings.TrimRight(resp.Request.URL.String(), "/")
	if desc, err := parseJob(payload); err == nil {
		applyJob(job, desc)
	}
	if jobURL == strings.TrimRight(asyncURL, "/") {
		if job.ID == "" {
			return nil, fmt.Errorf("%s did not return a job location", c.label())
		}
		jobURL = asyncURL + "/" + job.ID
	}
	job.URL = jobURL
	if job.ID == "" {
		job.ID = path.Base(jobURL)
	}

	log.WithFields(log.Fields{"service": c.label(), "job": job.ID}).Info("Submitted async job")
	return job, nil
}

// Run moves a PENDING job to the execution queue.
func (c *Client) Run(ctx context.Context, job *types.Job) error {
	return c.setPhase(ctx, job, "RUN")
}

// Abort asks the service to stop a job.
func (c *Client) Abort(ctx context.Context, job *types.Job) error {
	if err := c.setPhase(ctx, job, "ABORT"); err != nil {
		return err
	}
	job.Phase = types.PhaseAborted
	job.UpdatedAt = time.Now().UTC()
	return nil
}

func (c *Client) setPhase(ctx context.Context, job *types.Job, phase string) error {
	req, err := c.newRequest(ctx, http.MethodPost, job.URL+"/phase", url.Values{"PHASE": {phase}})
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("setting job %s phase %s: %w", job.ID, phase, err)
	}
	defer resp.Body.Close()
	return c.checkStatus(resp)
}

// Phase returns the current execution phase of job.
func (c *Client) Phase(ctx context.Context, job *types.Job) (types.JobPhase, error) {
	body, err := c.getText(ctx, job.URL+"/phase")
	if err != nil {
		return "", fmt.Errorf("reading job %s phase: %w", job.ID, err)
	}
	return types.JobPhase(strings.ToUpper(strings.TrimSpace(body))), nil
}

// Wait polls job until it reaches a terminal phase, maxWait elapses, or ctx
// is cancelled. The delay between polls starts at PollInterval and doubles
// up to MaxPollInterval. A zero maxWait waits without bound.
func (c *Client) Wait(ctx context.Context, job *types.Job, maxWait time.Duration) error {
	interval := c.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxInterval := c.MaxPollInterval
	if maxInterval <= 0 {
		maxInterval = defaultMaxPollInterval
	}
	start := time.Now()

	for {
		phase, err := c.Phase(ctx, job)
		if err != nil {
			return err
		}
		job.Phase = phase
		job.UpdatedAt = time.Now().UTC()

		log.WithFields(log.Fields{"job": job.ID, "phase": phase}).Debug("Polled job phase")

		switch phase {
		case types.PhaseCompleted:
			return nil
		case types.PhaseError:
			job.Error = c.errorSummary(ctx, job)
			return &JobError{JobID: job.ID, Phase: phase, Message: job.Error}
		case types.PhaseAborted:
			return &JobError{JobID: job.ID, Phase: phase, Message: "aborted"}
		case types.PhaseArchived:
			return &JobError{JobID: job.ID, Phase: phase, Message: "results have been archived by the service"}
		}

		wait := interval
		if maxWait > 0 {
			remaining := maxWait - time.Since(start)
			if remaining <= 0 {
				return &JobTimeoutError{JobID: job.ID, URL: job.URL, Phase: phase, Waited: time.Since(start)}
			}
			if wait > remaining {
				wait = remaining
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		interval *= 2
		if interval > maxInterval {
			interval = maxInterval
		}
	}
}

// errorSummary fetches the job's error document. Failures to read it are
// folded into the returned message.
func (c *Client) errorSummary(ctx context.Context, job *types.Job) string {
	body, err := c.getText(ctx, job.URL+"/error")
	if err != nil {
		if desc, derr := c.describe(ctx, job.URL); derr == nil && desc.ErrorSummary != nil {
			return strings.TrimSpace(desc.ErrorSummary.Message)
		}
		return "error details unavailable: " + err.Error()
	}
	if _, err := votable.Decode(strings.NewReader(body)); err != nil {
		var qe *votable.QueryError
		if errors.As(err, &qe) {
			return qe.Message
		}
	}
	return strings.TrimSpace(body)
}

// Results fetches and decodes the result table of a COMPLETED job.
func (c *Client) Results(ctx context.Context, job *types.Job) (*types.Table, error) {
	t, _, err := c.fetchResults(ctx, job)
	return t, err
}

func (c *Client) fetchResults(ctx context.Context, job *types.Job) (*types.Table, []byte, error) {
	target := job.URL + "/results/result"
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching job %s results: %w", job.ID, err)
	}
	defer resp.Body.Close()

	payload, err := c.readPayload(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching job %s results: %w", job.ID, err)
	}
	t, err := votable.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, nil, err
	}
	return t, payload, nil
}

// Delete removes job and its results from the service. Services that
// reject HTTP DELETE are sent the equivalent ACTION=DELETE post.
func (c *Client) Delete(ctx context.Context, job *types.Job) error {
	req, err := c.newRequest(ctx, http.MethodDelete, job.URL, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("deleting job %s: %w", job.ID, err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		req, err = c.newRequest(ctx, http.MethodPost, job.URL, url.Values{"ACTION": {"DELETE"}})
		if err != nil {
			return err
		}
		resp, err = c.do(req)
		if err != nil {
			return fmt.Errorf("deleting job %s: %w", job.ID, err)
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}
	// Following the redirect after a delete lands on the (now missing) job
	// or the job list; both mean the job is gone.
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return c.checkStatus(resp)
}

// JobInfo loads the job description at jobURL.
func (c *Client) JobInfo(ctx context.Context, jobURL string) (*types.Job, error) {
	jobURL = strings.TrimRight(jobURL, "/")
	desc, err := c.describe(ctx, jobURL)
	if err != nil {
		return nil, err
	}
	job := &types.Job{Service: c.label(), URL: jobURL, UpdatedAt: time.Now().UTC()}
	applyJob(job, desc)
	if job.ID == "" {
		job.ID = path.Base(jobURL)
	}
	return job, nil
}

// JobURL returns the job resource URL for a job id on this service.
func (c *Client) JobURL(id string) string {
	return c.endpoint("async", url.PathEscape(id))
}

func (c *Client) describe(ctx context.Context, jobURL string) (*uwsJob, error) {
	req, err := c.newRequest(ctx, http.MethodGet, jobURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("reading job %s: %w", jobURL, err)
	}
	defer resp.Body.Close()

	payload, err := c.readPayload(resp)
	if err != nil {
		return nil, err
	}
	return parseJob(payload)
}

func parseJob(payload []byte) (*uwsJob, error) {
	var desc uwsJob
	if err := xml.Unmarshal(payload, &desc); err != nil {
		return nil, fmt.Errorf("parsing UWS job document: %w", err)
	}
	return &desc, nil
}

func applyJob(job *types.Job, desc *uwsJob) {
	if desc.JobID != "" {
		job.ID = strings.TrimSpace(desc.JobID)
	}
	if desc.RunID != "" {
		job.RunID = strings.TrimSpace(desc.RunID)
	}
	if desc.Phase != "" {
		job.Phase = types.JobPhase(strings.ToUpper(strings.TrimSpace(desc.Phase)))
	}
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(desc.CreationTime)); err == nil {
		job.CreatedAt = t.UTC()
	}
	if desc.ErrorSummary != nil {
		job.Error = strings.TrimSpace(desc.ErrorSummary.Message)
	}
	for _, p := range desc.Parameters {
		if strings.EqualFold(p.ID, "query") {
			job.Query = strings.TrimSpace(p.Value)
		}
	}
}

func (c *Client) getText(ctx context.Context, target string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	payload, err := c.readPayload(resp)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// checkStatus accepts any 2xx response (redirects have been followed).
func (c *Client) checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		return ErrAccessDenied
	}
	return fmt.Errorf("%s returned HTTP %d: %s", c.label(), resp.StatusCode,
		httputil.ReadErrorBody(resp.Body, errorBodyLimit))
}
