// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/astroquery/pkg/types"
)

const (
	defaultTimeout    = 60 * time.Second
	defaultUserAgent  = "astroquery-go/0.1"
	defaultRowLimit   = 1000
	defaultDelay      = 1 * time.Second
	defaultMaxWait    = 10 * time.Minute
	defaultSecretsDir = ".secrets/"
	defaultDataDir    = "data"
)

// setDefaults registers every config key so environment variables
// (ASTROQUERY_QUERY_ROW_LIMIT, ...) are honoured without a config file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.timeout", defaultTimeout)
	v.SetDefault("http.user_agent", defaultUserAgent)
	v.SetDefault("http.max_retries", 5)

	v.SetDefault("query.row_limit", defaultRowLimit)
	v.SetDefault("query.default_radius", 2.0/3600)
	v.SetDefault("query.match_radius", 1.0/3600)
	v.SetDefault("query.async", false)
	v.SetDefault("query.max_wait", defaultMaxWait)

	v.SetDefault("tap.poll_interval", time.Second)
	v.SetDefault("tap.max_poll_interval", 30*time.Second)

	v.SetDefault("download.dir", defaultDataDir)
	v.SetDefault("download.delay", defaultDelay)
	v.SetDefault("download.overwrite", false)

	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("cache.disabled", false)
}

func defaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "astroquery")
	}
	return ".astroquery-cache"
}

// loadConfig assembles a Config from v. The shared http section is copied
// into the query and download sections.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var c types.Config

	c.HTTP = types.HTTPConfig{
		Timeout:    v.GetDuration("http.timeout"),
		UserAgent:  v.GetString("http.user_agent"),
		MaxRetries: v.GetInt("http.max_retries"),
	}
	c.Query = types.QueryConfig{
		HTTPConfig:    c.HTTP,
		RowLimit:      v.GetInt("query.row_limit"),
		DefaultRadius: v.GetFloat64("query.default_radius"),
		MatchRadius:   v.GetFloat64("query.match_radius"),
		Async:         v.GetBool("query.async"),
		MaxWait:       v.GetDuration("query.max_wait"),
	}
	c.TAP = types.TAPConfig{
		PollInterval:    v.GetDuration("tap.poll_interval"),
		MaxPollInterval: v.GetDuration("tap.max_poll_interval"),
	}
	c.Download = types.DownloadConfig{
		HTTPConfig: c.HTTP,
		Dir:        v.GetString("download.dir"),
		Delay:      v.GetDuration("download.delay"),
		Overwrite:  v.GetBool("download.overwrite"),
	}
	c.Cache = types.CacheConfig{
		Dir:      v.GetString("cache.dir"),
		TTL:      v.GetDuration("cache.ttl"),
		Disabled: v.GetBool("cache.disabled"),
	}

	if v.IsSet("services") {
		err := v.UnmarshalKey("services", &c.Services, func(dc *mapstructure.DecoderConfig) {
			dc.TagName = "yaml"
		})
		if err != nil {
			return types.Config{}, fmt.Errorf("reading services from config: %w", err)
		}
	}
	if c.Query.RowLimit < 0 {
		return types.Config{}, fmt.Errorf("query.row_limit must not be negative")
	}
	return c, nil
}

// applyFlags overrides config values with root flags the user set.
func applyFlags(cmd *cobra.Command, c *types.Config) {
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		d, _ := flags.GetDuration("timeout")
		c.HTTP.Timeout = d
		c.Query.Timeout = d
		c.Download.Timeout = d
	}
	if flags.Changed("cache-dir") {
		c.Cache.Dir, _ = flags.GetString("cache-dir")
	}
	if noCache, _ := flags.GetBool("no-cache"); noCache {
		c.Cache.Disabled = true
	}
}

// addQueryFlags registers the output and row-limit flags shared by the
// query commands.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "table", "output format: table, json, csv, votable")
	cmd.Flags().String("save", "", "save the query and its result to a YAML file")
	cmd.Flags().Int("row-limit", 0, "maximum rows to request (default from config, 1000)")
	cmd.Flags().Bool("async", false, "run the query as an asynchronous TAP job")
	cmd.Flags().Duration("max-wait", 0, "how long to wait for an async job before giving up")
}

// queryConfig returns cfg.Query adjusted by the command's query flags.
func queryConfig(cmd *cobra.Command) types.QueryConfig {
	qc := cfg.Query
	if n, _ := cmd.Flags().GetInt("row-limit"); n > 0 {
		qc.RowLimit = n
	}
	if async, _ := cmd.Flags().GetBool("async"); async {
		qc.Async = true
	}
	if d, _ := cmd.Flags().GetDuration("max-wait"); d > 0 {
		qc.MaxWait = d
	}
	return qc
}
