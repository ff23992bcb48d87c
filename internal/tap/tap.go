// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tap is a client for IVOA Table Access Protocol services. It runs
// synchronous ADQL queries, drives asynchronous UWS jobs (submit, run, poll,
// fetch results), and lists the tables a service publishes.
package tap

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/pdiddy/astroquery/internal/httputil"
	"github.com/pdiddy/astroquery/internal/votable"
	"github.com/pdiddy/astroquery/pkg/types"
)

var (
	// ErrUnauthorized is returned on HTTP 401: the service wants a login.
	ErrUnauthorized = errors.New("authentication required: log in to this service first")

	// ErrAccessDenied is returned on HTTP 403, typically for proprietary data.
	ErrAccessDenied = errors.New("access denied: data is proprietary or not visible to this account")
)

const (
	defaultPollInterval    = 1 * time.Second
	defaultMaxPollInterval = 30 * time.Second
	errorBodyLimit         = 2048
)

// ResponseCache stores raw VOTable payloads keyed by CacheKey. The cache
// package provides the SQLite implementation.
type ResponseCache interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Store(ctx context.Context, key, service, query string, payload []byte) error
}

// Client talks to one TAP service.
type Client struct {
	// Name labels the service in cache records and job registries.
	Name string

	// BaseURL is the TAP root (e.g. "https://gea.esac.esa.int/tap-server/tap").
	BaseURL string

	HTTP       *http.Client
	UserAgent  string
	MaxRetries int

	// PollInterval is the first delay between job phase checks; it doubles
	// up to MaxPollInterval.
	PollInterval    time.Duration
	MaxPollInterval time.Duration

	// Cache, when set, serves repeated queries without contacting the service.
	Cache ResponseCache
}

// QueryOptions tunes a single query.
type QueryOptions struct {
	// MaxRec is the MAXREC row limit. Zero keeps the service default.
	MaxRec int

	// Async routes the query through the UWS job interface.
	Async bool

	// MaxWait bounds async polling. Zero waits until the job finishes or the
	// context is cancelled.
	MaxWait time.Duration

	// NoCache skips the response cache for this query.
	NoCache bool

	// OnSubmit is called once an async job has been created, before it runs,
	// so the caller can record the job id for later retrieval.
	OnSubmit func(job *types.Job)
}

// CacheKey identifies a query result in the response cache.
func CacheKey(baseURL, query string, maxRec int) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d", strings.TrimRight(baseURL, "/"), strings.TrimSpace(query), maxRec)
	return hex.EncodeToString(h.Sum(nil))
}

// Query runs query synchronously or, with opts.Async, as a UWS job.
func (c *Client) Query(ctx context.Context, query string, opts QueryOptions) (*types.Table, error) {
	if !opts.Async {
		return c.Sync(ctx, query, opts)
	}

	key := CacheKey(c.BaseURL, query, opts.MaxRec)
	if t, ok := c.cached(ctx, key, opts); ok {
		return t, nil
	}

	job, err := c.Submit(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	if opts.OnSubmit != nil {
		opts.OnSubmit(job)
	}
	if err := c.Run(ctx, job); err != nil {
		return nil, err
	}
	if err := c.Wait(ctx, job, opts.MaxWait); err != nil {
		return nil, err
	}

	t, payload, err := c.fetchResults(ctx, job)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, query, payload, opts)
	return t, nil
}

// Sync runs query through the synchronous endpoint.
func (c *Client) Sync(ctx context.Context, query string, opts QueryOptions) (*types.Table, error) {
	key := CacheKey(c.BaseURL, query, opts.MaxRec)
	if t, ok := c.cached(ctx, key, opts); ok {
		return t, nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.endpoint("sync"), queryForm(query, opts))
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("%s TAP request: %w", c.label(), err)
	}
	defer resp.Body.Close()

	payload, err := c.readPayload(resp)
	if err != nil {
		return nil, err
	}
	t, err := votable.Decode(bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, query, payload, opts)
	return t, nil
}

func queryForm(query string, opts QueryOptions) url.Values {
	form := url.Values{
		"REQUEST": {"doQuery"},
		"LANG":    {"ADQL"},
		"FORMAT":  {"votable"},
		"QUERY":   {query},
	}
	if opts.MaxRec > 0 {
		form.Set("MAXREC", strconv.Itoa(opts.MaxRec))
	}
	return form
}

func (c *Client) cached(ctx context.Context, key string, opts QueryOptions) (*types.Table, bool) {
	if c.Cache == nil || opts.NoCache {
		return nil, false
	}
	payload, ok, err := c.Cache.Lookup(ctx, key)
	if err != nil {
		log.WithError(err).Warn("Response cache lookup failed")
		return nil, false
	}
	if !ok {
		return nil, false
	}
	t, err := votable.Decode(bytes.NewReader(payload))
	if err != nil {
		log.WithError(err).Warn("Discarding unreadable cached response")
		return nil, false
	}
	log.WithField("service", c.label()).Debug("Serving query from cache")
	return t, true
}

func (c *Client) store(ctx context.Context, key, query string, payload []byte, opts QueryOptions) {
	if c.Cache == nil || opts.NoCache {
		return
	}
	if err := c.Cache.Store(ctx, key, c.label(), query, payload); err != nil {
		log.WithError(err).Warn("Response cache store failed")
	}
}

func (c *Client) label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.BaseURL
}

func (c *Client) endpoint(parts ...string) string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Join(parts, "/")
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) newRequest(ctx context.Context, method, target string, form url.Values) (*http.Request, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	return httputil.DoWithRetry(req.Context(), c.httpClient(), req, c.MaxRetries)
}

// readPayload returns the body of a successful response or maps the
// failure to an error. Error bodies that are VOTables yield a QueryError.
func (c *Client) readPayload(resp *http.Response) ([]byte, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		payload, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading %s response: %w", c.label(), err)
		}
		return payload, nil
	case http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case http.StatusForbidden:
		return nil, ErrAccessDenied
	}
	return nil, c.statusError(resp)
}

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
	if _, err := votable.Decode(bytes.NewReader(body)); err != nil {
		var qe *votable.QueryError
		if errors.As(err, &qe) {
			return fmt.Errorf("%s returned HTTP %d: %w", c.label(), resp.StatusCode, qe)
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("%s returned HTTP %d", c.label(), resp.StatusCode)
	}
	return fmt.Errorf("%s returned HTTP %d: %s", c.label(), resp.StatusCode, msg)
}
