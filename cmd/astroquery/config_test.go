// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T, yamlText string) *viper.Viper {
	t.Helper()
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ASTROQUERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if yamlText != "" {
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(strings.NewReader(yamlText)))
	}
	return v
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)

	assert.Equal(t, defaultTimeout, c.HTTP.Timeout)
	assert.Equal(t, defaultUserAgent, c.HTTP.UserAgent)
	assert.Equal(t, defaultRowLimit, c.Query.RowLimit)
	assert.Equal(t, defaultTimeout, c.Query.Timeout)
	assert.InDelta(t, 2.0/3600, c.Query.DefaultRadius, 1e-12)
	assert.InDelta(t, 1.0/3600, c.Query.MatchRadius, 1e-12)
	assert.Equal(t, defaultMaxWait, c.Query.MaxWait)
	assert.Equal(t, defaultDataDir, c.Download.Dir)
	assert.Equal(t, defaultDelay, c.Download.Delay)
	assert.Equal(t, 7*24*time.Hour, c.Cache.TTL)
	assert.NotEmpty(t, c.Cache.Dir)
	assert.Empty(t, c.Services)
}

func TestLoadConfigFile(t *testing.T) {
	v := newTestViper(t, `
http:
  timeout: 30s
  user_agent: test-agent
query:
  row_limit: 200
  async: true
download:
  dir: /tmp/products
services:
  mytap:
    url: https://example.org/tap
    table: cat.sources
    ra_column: ra
    dec_column: dec
    id_column: source_id
`)
	c, err := loadConfig(v)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, c.HTTP.Timeout)
	assert.Equal(t, 30*time.Second, c.Download.Timeout)
	assert.Equal(t, "test-agent", c.Query.UserAgent)
	assert.Equal(t, 200, c.Query.RowLimit)
	assert.True(t, c.Query.Async)
	assert.Equal(t, "/tmp/products", c.Download.Dir)

	require.Contains(t, c.Services, "mytap")
	svc := c.Services["mytap"]
	assert.Equal(t, "https://example.org/tap", svc.URL)
	assert.Equal(t, "cat.sources", svc.Table)
	assert.Equal(t, "ra", svc.RAColumn)
	assert.Equal(t, "dec", svc.DecColumn)
	assert.Equal(t, "source_id", svc.IDColumn)
}

func TestLoadConfigEnv(t *testing.T) {
	t.Setenv("ASTROQUERY_QUERY_ROW_LIMIT", "50")
	t.Setenv("ASTROQUERY_DOWNLOAD_DELAY", "250ms")

	c, err := loadConfig(newTestViper(t, ""))
	require.NoError(t, err)
	assert.Equal(t, 50, c.Query.RowLimit)
	assert.Equal(t, 250*time.Millisecond, c.Download.Delay)
}

func TestLoadConfigRejectsNegativeRowLimit(t *testing.T) {
	_, err := loadConfig(newTestViper(t, "query:\n  row_limit: -1\n"))
	assert.Error(t, err)
}

func TestQueryConfigFlags(t *testing.T) {
	saved := cfg
	t.Cleanup(func() { cfg = saved })
	cfg.Query.RowLimit = 1000
	cfg.Query.MaxWait = time.Minute

	cmd := &cobra.Command{Use: "test"}
	addQueryFlags(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--row-limit", "25", "--async", "--max-wait", "5m"}))

	qc := queryConfig(cmd)
	assert.Equal(t, 25, qc.RowLimit)
	assert.True(t, qc.Async)
	assert.Equal(t, 5*time.Minute, qc.MaxWait)

	plain := &cobra.Command{Use: "plain"}
	addQueryFlags(plain)
	require.NoError(t, plain.ParseFlags(nil))
	qc = queryConfig(plain)
	assert.Equal(t, 1000, qc.RowLimit)
	assert.False(t, qc.Async)
	assert.Equal(t, time.Minute, qc.MaxWait)
}

func TestParseAge(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"72h", 72 * time.Hour},
		{"30m", 30 * time.Minute},
		{"30d", 30 * 24 * time.Hour},
		{"1.5d", 36 * time.Hour},
	}
	for _, tt := range tests {
		got, err := parseAge(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "d", "xd", "3x", "-2d"} {
		_, err := parseAge(bad)
		assert.Error(t, err, bad)
	}
}
