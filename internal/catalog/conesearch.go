// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pdiddy/astroquery/internal/httputil"
	"github.com/pdiddy/astroquery/internal/votable"
	"github.com/pdiddy/astroquery/pkg/types"
)

// ConeSearch is an IVOA Simple Cone Search endpoint.
type ConeSearch struct {
	Label      string
	URL        string
	Client     *http.Client
	UserAgent  string
	MaxRetries int

	// Verbosity is the VERB parameter (1 to 3); zero sends 2.
	Verbosity int
}

// Name returns the service label.
func (c *ConeSearch) Name() string { return c.Label }

// QueryRegion issues the cone request. Cone Search has no server-side row
// limit, so cfg.RowLimit is applied to the returned rows.
func (c *ConeSearch) QueryRegion(ctx context.Context, region Region, cfg types.QueryConfig) (*types.Table, error) {
	if err := region.validate(); err != nil {
		return nil, err
	}
	u, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid cone search URL: %w", c.Label, err)
	}
	verb := c.Verbosity
	if verb <= 0 {
		verb = 2
	}
	q := u.Query()
	q.Set("RA", strconv.FormatFloat(region.Center.RA, 'f', -1, 64))
	q.Set("DEC", strconv.FormatFloat(region.Center.Dec, 'f', -1, 64))
	q.Set("SR", strconv.FormatFloat(region.Radius, 'f', -1, 64))
	q.Set("VERB", strconv.Itoa(verb))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating cone search request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Label, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned HTTP %d: %s", c.Label, resp.StatusCode,
			httputil.ReadErrorBody(resp.Body, 512))
	}

	t, err := votable.Decode(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Label, err)
	}
	if cfg.RowLimit > 0 && t.Len() > cfg.RowLimit {
		t.Rows = t.Rows[:cfg.RowLimit]
		t.Truncated = true
		t.Warnings = append(t.Warnings, votable.TruncationWarning)
	}
	return t, nil
}
