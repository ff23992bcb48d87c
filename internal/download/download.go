// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package download retrieves data products (images, spectra, FITS tables)
// listed by query results into a per-service directory tree.
package download

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/pdiddy/astroquery/internal/httputil"
	"github.com/pdiddy/astroquery/pkg/types"
)

// ErrAccessDenied is returned when the archive refuses the file, usually
// because it is still proprietary or needs a login.
var ErrAccessDenied = errors.New("access denied: data is proprietary or requires login")

// BatchResult holds the outcome of a batch download.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int

	// Bytes counts bytes written by this run; skipped files are excluded.
	Bytes int64

	Products []types.DataProduct
}

// Total returns the number of products processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any download failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Fetch downloads p into {cfg.Dir}/{p.Service}/{filename}. An existing file
// is kept and reported as skipped unless cfg.Overwrite is set. On success
// p.LocalPath is set and the number of bytes written is returned.
func Fetch(ctx context.Context, client *http.Client, p *types.DataProduct, cfg types.DownloadConfig) (written int64, skipped bool, err error) {
	if p.URL == "" {
		return 0, false, fmt.Errorf("product %s has no URL", p.ID)
	}
	dir := filepath.Join(cfg.Dir, safeName(p.Service, "default"))

	// A known filename lets us skip without contacting the archive.
	if p.Filename != "" {
		dest := filepath.Join(dir, safeName(p.Filename, hashName(p.URL)))
		if !cfg.Overwrite && exists(dest) {
			p.LocalPath = dest
			return 0, true, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return 0, false, fmt.Errorf("creating request: %w", err)
	}
	if cfg.UserAgent != "" {
		req.Header.Set("User-Agent", cfg.UserAgent)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, cfg.MaxRetries)
	if err != nil {
		return 0, false, fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return 0, false, fmt.Errorf("%s: %w", p.URL, ErrAccessDenied)
	case resp.StatusCode != http.StatusOK:
		return 0, false, fmt.Errorf("HTTP %d from %s", resp.StatusCode, p.URL)
	}

	name := Filename(p, resp.Header.Get("Content-Disposition"))
	dest := filepath.Join(dir, name)
	if !cfg.Overwrite && exists(dest) {
		p.LocalPath = dest
		return 0, true, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, false, fmt.Errorf("creating directory %s: %w", dir, err)
	}

	log.WithFields(log.Fields{"url": p.URL, "dest": dest}).Debug("Downloading product")
	written, err = writeFile(resp.Body, dest, resp.ContentLength)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", p.URL, err)
	}

	p.LocalPath = dest
	return written, false, nil
}

// FetchBatch downloads every product, printing per-item status to w and a
// summary at the end. It continues after individual failures and waits
// cfg.Delay between consecutive requests.
func FetchBatch(ctx context.Context, client *http.Client, products []types.DataProduct, cfg types.DownloadConfig, w io.Writer) (BatchResult, error) {
	limit := rate.Inf
	if cfg.Delay > 0 {
		limit = rate.Every(cfg.Delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	var result BatchResult
	for i := range products {
		p := products[i]
		if err := limiter.Wait(ctx); err != nil {
			return result, err
		}

		n, skipped, err := Fetch(ctx, client, &p, cfg)
		label := p.ID
		if label == "" {
			label = p.URL
		}
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return result, ctx.Err()
			}
			fmt.Fprintf(w, "failed:      %s (%v)\n", label, err)
			result.Failed++
			continue
		case skipped:
			fmt.Fprintf(w, "skipped:     %s (already exists)\n", p.LocalPath)
			result.Skipped++
		default:
			fmt.Fprintf(w, "downloaded:  %s (%s)\n", p.LocalPath, humanize.Bytes(uint64(n)))
			result.Downloaded++
			result.Bytes += n
		}
		result.Products = append(result.Products, p)
	}

	fmt.Fprintf(w, "\nDownload summary: %d downloaded (%s), %d skipped, %d failed (total: %d)\n",
		result.Downloaded, humanize.Bytes(uint64(result.Bytes)), result.Skipped, result.Failed, result.Total())
	return result, nil
}

// Filename picks the local name for p: the product's own Filename, then the
// Content-Disposition header, then the last URL path segment, then a hash of
// the URL.
func Filename(p *types.DataProduct, contentDisposition string) string {
	fallback := hashName(p.URL)
	if p.Filename != "" {
		return safeName(p.Filename, fallback)
	}
	if contentDisposition != "" {
		if _, params, err := mime.ParseMediaType(contentDisposition); err == nil && params["filename"] != "" {
			return safeName(params["filename"], fallback)
		}
	}
	if u, err := url.Parse(p.URL); err == nil {
		base := path.Base(u.Path)
		if base != "." && base != "/" && strings.Contains(base, ".") {
			return safeName(base, fallback)
		}
	}
	return fallback
}

// safeName reduces name to a single path element.
func safeName(name, fallback string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = strings.TrimSpace(path.Base(name))
	if name == "" || name == "." || name == ".." || name == "/" {
		return fallback
	}
	return name
}

func hashName(rawURL string) string {
	h := sha256.Sum256([]byte(rawURL))
	return fmt.Sprintf("product-%x", h[:8])
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// writeFile copies r to dest through a temporary file renamed on success.
func writeFile(r io.Reader, dest string, expected int64) (int64, error) {
	tmpFile, err := os.CreateTemp(filepath.Dir(dest), ".download-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	n, copyErr := io.Copy(tmpFile, r)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("closing temp file: %w", closeErr)
	}
	if expected > 0 && n != expected {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("incomplete download: got %d of %d bytes", n, expected)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("renaming temp file: %w", err)
	}
	return n, nil
}
