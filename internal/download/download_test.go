// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/astroquery/pkg/types"
)

func archive(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/files/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprintf(w, "SIMPLE  = T %s", r.URL.Path)
	})
	mux.HandleFunc("/retrieve", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Disposition", `attachment; filename="ADP.2026-10-19.fits"`)
		fmt.Fprint(w, "SIMPLE  = T")
	})
	mux.HandleFunc("/proprietary", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/truncated", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Length", "100")
		fmt.Fprint(w, "SIMPLE")
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		http.NotFound(w, nil)
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts, &hits
}

func TestFetch(t *testing.T) {
	ts, hits := archive(t)
	dir := t.TempDir()
	p := &types.DataProduct{ID: "obs1", Service: "eso", URL: ts.URL + "/files/spec1.fits"}

	n, skipped, err := Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: dir})
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, filepath.Join(dir, "eso", "spec1.fits"), p.LocalPath)

	data, err := os.ReadFile(p.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, "SIMPLE  = T /files/spec1.fits", string(data))
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, int32(1), hits.Load())

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(dir, "eso"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchSkipsExisting(t *testing.T) {
	ts, hits := archive(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "eso"), 0o755))
	existing := filepath.Join(dir, "eso", "known.fits")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	p := &types.DataProduct{Service: "eso", URL: ts.URL + "/files/whatever", Filename: "known.fits"}
	_, skipped, err := Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: dir})
	require.NoError(t, err)
	assert.True(t, skipped)
	assert.Equal(t, existing, p.LocalPath)
	assert.Equal(t, int32(0), hits.Load(), "known filename should skip without a request")

	_, skipped, err = Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: dir, Overwrite: true})
	require.NoError(t, err)
	assert.False(t, skipped)
	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.NotEqual(t, "old", string(data))
}

func TestFetchUsesContentDisposition(t *testing.T) {
	ts, _ := archive(t)
	dir := t.TempDir()
	p := &types.DataProduct{Service: "eso", URL: ts.URL + "/retrieve?id=42"}

	_, skipped, err := Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: dir})
	require.NoError(t, err)
	assert.False(t, skipped)
	assert.Equal(t, filepath.Join(dir, "eso", "ADP.2026-10-19.fits"), p.LocalPath)

	// Second fetch learns the name from the header and finds the file.
	p.LocalPath = ""
	_, skipped, err = Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: dir})
	require.NoError(t, err)
	assert.True(t, skipped)
}

func TestFetchAccessDenied(t *testing.T) {
	ts, _ := archive(t)
	p := &types.DataProduct{Service: "eso", URL: ts.URL + "/proprietary"}
	_, _, err := Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: t.TempDir()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAccessDenied))
	assert.Empty(t, p.LocalPath)
}

func TestFetchErrors(t *testing.T) {
	ts, _ := archive(t)
	dir := t.TempDir()

	_, _, err := Fetch(context.Background(), ts.Client(), &types.DataProduct{Service: "eso", URL: ts.URL + "/missing"}, types.DownloadConfig{Dir: dir})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, _, err = Fetch(context.Background(), ts.Client(), &types.DataProduct{ID: "x"}, types.DownloadConfig{Dir: dir})
	assert.ErrorContains(t, err, "no URL")
}

func TestFetchTruncatedKeepsExisting(t *testing.T) {
	ts, _ := archive(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "eso"), 0o755))
	existing := filepath.Join(dir, "eso", "good.fits")
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	p := &types.DataProduct{Service: "eso", URL: ts.URL + "/truncated", Filename: "good.fits"}
	_, _, err := Fetch(context.Background(), ts.Client(), p, types.DownloadConfig{Dir: dir, Overwrite: true})
	require.Error(t, err)
	assert.Empty(t, p.LocalPath)

	data, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	entries, err := os.ReadDir(filepath.Join(dir, "eso"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestWriteFileLengthMismatch(t *testing.T) {
	dir := t.TempDir()
	dest := filepath.Join(dir, "short.fits")
	require.NoError(t, os.WriteFile(dest, []byte("old"), 0o644))

	_, err := writeFile(bytes.NewReader([]byte("SIMPLE")), dest, 100)
	assert.ErrorContains(t, err, "got 6 of 100 bytes")
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	n, err := writeFile(bytes.NewReader([]byte("SIMPLE")), dest, 6)
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	n, err = writeFile(bytes.NewReader([]byte("SIMPLE = T")), dest, -1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestFilename(t *testing.T) {
	tests := []struct {
		name string
		p    types.DataProduct
		cd   string
		want string
	}{
		{"product name wins", types.DataProduct{URL: "https://a/x.fits", Filename: "mine.fits"}, `attachment; filename="cd.fits"`, "mine.fits"},
		{"content disposition", types.DataProduct{URL: "https://a/x.fits"}, `attachment; filename="cd.fits"`, "cd.fits"},
		{"url path", types.DataProduct{URL: "https://a/data/x.fits?version=2"}, "", "x.fits"},
		{"path traversal", types.DataProduct{URL: "https://a/x", Filename: "../../etc/passwd"}, "", "passwd"},
		{"windows separators", types.DataProduct{URL: "https://a/x"}, `attachment; filename="..\\dir\\y.fits"`, "y.fits"},
		{"bad disposition", types.DataProduct{URL: "https://a/z.fits"}, `attachment; filename=`, "z.fits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Filename(&tt.p, tt.cd))
		})
	}

	hashed := Filename(&types.DataProduct{URL: "https://a/getData?id=1"}, "")
	assert.Regexp(t, `^product-[0-9a-f]{16}$`, hashed)
	assert.Equal(t, hashed, Filename(&types.DataProduct{URL: "https://a/getData?id=1"}, ""))
	assert.NotEqual(t, hashed, Filename(&types.DataProduct{URL: "https://a/getData?id=2"}, ""))
}

func TestFetchBatch(t *testing.T) {
	ts, _ := archive(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "eso"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eso", "b.fits"), []byte("old"), 0o644))

	products := []types.DataProduct{
		{ID: "a", Service: "eso", URL: ts.URL + "/files/a.fits"},
		{ID: "b", Service: "eso", URL: ts.URL + "/files/b.fits"},
		{ID: "p", Service: "eso", URL: ts.URL + "/proprietary"},
		{ID: "c", Service: "eso", URL: ts.URL + "/files/c.fits"},
	}

	var w bytes.Buffer
	result, err := FetchBatch(context.Background(), ts.Client(), products, types.DownloadConfig{Dir: dir}, &w)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 4, result.Total())
	assert.True(t, result.HasFailures())
	assert.Len(t, result.Products, 3)
	assert.Positive(t, result.Bytes)

	out := w.String()
	assert.Contains(t, out, "skipped:")
	assert.Contains(t, out, "failed:      p")
	assert.Contains(t, out, "Download summary: 2 downloaded")
	assert.Contains(t, out, "1 skipped, 1 failed (total: 4)")

	// Input slice is not modified.
	assert.Empty(t, products[0].LocalPath)
}

func TestFetchBatchDelay(t *testing.T) {
	ts, _ := archive(t)
	products := []types.DataProduct{
		{Service: "eso", URL: ts.URL + "/files/1.fits"},
		{Service: "eso", URL: ts.URL + "/files/2.fits"},
		{Service: "eso", URL: ts.URL + "/files/3.fits"},
	}
	start := time.Now()
	result, err := FetchBatch(context.Background(), ts.Client(), products,
		types.DownloadConfig{Dir: t.TempDir(), Delay: 30 * time.Millisecond}, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Downloaded)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestFetchBatchCancelled(t *testing.T) {
	ts, _ := archive(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FetchBatch(ctx, ts.Client(), []types.DataProduct{{Service: "eso", URL: ts.URL + "/files/1.fits"}},
		types.DownloadConfig{Dir: t.TempDir()}, &bytes.Buffer{})
	assert.ErrorIs(t, err, context.Canceled)
}
