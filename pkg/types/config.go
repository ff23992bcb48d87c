// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every archive client.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "astroquery-go/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`

	// MaxRetries is the number of retries on HTTP 429/503 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// QueryConfig holds settings for catalog queries.
type QueryConfig struct {
	HTTPConfig `yaml:",inline"`

	// RowLimit caps the number of rows requested from a service (MAXREC / TOP).
	// Zero leaves the service default in place.
	RowLimit int `json:"row_limit" yaml:"row_limit"`

	// DefaultRadius is the cone radius in degrees used by object queries
	// against services without an identifier index (default 2 arcsec).
	DefaultRadius float64 `json:"default_radius" yaml:"default_radius"`

	// MatchRadius is the merge radius in degrees used when combining results
	// from several services (default 1 arcsec).
	MatchRadius float64 `json:"match_radius" yaml:"match_radius"`

	// Async forces TAP queries through the UWS job interface.
	Async bool `json:"async" yaml:"async"`

	// MaxWait bounds how long an async job is polled before giving up.
	MaxWait time.Duration `json:"max_wait" yaml:"max_wait"`
}

// TAPConfig holds polling settings for asynchronous TAP jobs.
type TAPConfig struct {
	// PollInterval is the initial delay between phase checks (default 1s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// MaxPollInterval caps the doubling poll delay (default 30s).
	MaxPollInterval time.Duration `json:"max_poll_interval" yaml:"max_poll_interval"`
}

// DownloadConfig holds settings for data product retrieval.
type DownloadConfig struct {
	HTTPConfig `yaml:",inline"`

	// Dir is the base directory for downloaded files; each service gets a
	// subdirectory.
	Dir string `json:"dir" yaml:"dir"`

	// Delay is the pause between consecutive downloads (default 1s).
	Delay time.Duration `json:"delay" yaml:"delay"`

	// Overwrite re-downloads files that already exist locally.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`
}

// CacheConfig holds settings for the local response cache.
type CacheConfig struct {
	// Dir contains the SQLite database.
	Dir string `json:"dir" yaml:"dir"`

	// TTL is how long a cached response stays valid. Zero means forever.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	// Disabled bypasses the response cache entirely.
	Disabled bool `json:"disabled" yaml:"disabled"`
}

// ServiceConfig describes a user-defined TAP service from the config file.
type ServiceConfig struct {
	// URL is the TAP base URL (without /sync or /async).
	URL string `json:"url" yaml:"url"`

	// Table is the default table for region and criteria queries.
	Table string `json:"table" yaml:"table"`

	// RAColumn and DecColumn name the position columns (degrees, ICRS).
	RAColumn  string `json:"ra_column" yaml:"ra_column"`
	DecColumn string `json:"dec_column" yaml:"dec_column"`

	// IDColumn names the main identifier column.
	IDColumn string `json:"id_column,omitempty" yaml:"id_column,omitempty"`

	// LoginURL and LogoutURL enable authenticated sessions.
	LoginURL  string `json:"login_url,omitempty" yaml:"login_url,omitempty"`
	LogoutURL string `json:"logout_url,omitempty" yaml:"logout_url,omitempty"`
}

// Config groups all settings loaded from astroquery.yaml.
type Config struct {
	HTTP     HTTPConfig               `json:"http" yaml:"http"`
	Query    QueryConfig              `json:"query" yaml:"query"`
	TAP      TAPConfig                `json:"tap" yaml:"tap"`
	Download DownloadConfig           `json:"download" yaml:"download"`
	Cache    CacheConfig              `json:"cache" yaml:"cache"`
	Services map[string]ServiceConfig `json:"services" yaml:"services"`
}
