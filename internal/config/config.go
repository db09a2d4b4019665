// Package config defines the gridiron run configuration and its loader.
//
// Values are layered defaults -> optional YAML file -> GRIDIRON_* env vars;
// the CLI applies flags on top of the loaded Config.
package config

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Default values.
const (
	DefaultAPIBaseURL   = "https://api.collegefootballdata.com"
	DefaultStartSeason  = 2019
	DefaultEndSeason    = 2020
	DefaultFirstWeek    = 1
	DefaultEndWeek      = 16
	DefaultOutputPrefix = "cfb"

	defaultRequestTimeout    = 30 * time.Second
	defaultRequestsPerSecond = 5.0
	defaultRequestBurst      = 5
	defaultCacheTTL          = 24 * time.Hour
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// APIBaseURL is the CollegeFootballData API root.
	APIBaseURL string `koanf:"api_base_url"`

	// APIKey is sent as a bearer token when set.
	APIKey string `koanf:"api_key"`

	// StartSeason and EndSeason bound the seasons fetched, [start, end).
	StartSeason int `koanf:"start_season"`
	EndSeason   int `koanf:"end_season"`

	// FirstWeek and EndWeek bound the weeks fetched per season, [first, end).
	FirstWeek int `koanf:"first_week"`
	EndWeek   int `koanf:"end_week"`

	// OutputPrefix is the path prefix for the three CSV files.
	OutputPrefix string `koanf:"output_prefix"`

	RequestTimeout    time.Duration `koanf:"request_timeout"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	RequestBurst      int           `koanf:"request_burst"`

	// FetchConcurrency bounds in-flight fetch units. 1 means sequential.
	FetchConcurrency int `koanf:"fetch_concurrency"`

	// CollapseHomeNonFBS also rewrites home_team for non-FBS home sides.
	CollapseHomeNonFBS bool `koanf:"collapse_home_non_fbs"`

	// RedisURL enables the API response cache when set.
	RedisURL string        `koanf:"redis_url"`
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// NotifyStream is the Redis stream that receives a completion event.
	// Requires RedisURL.
	NotifyStream string `koanf:"notify_stream"`

	// PushgatewayURL receives run metrics when set.
	PushgatewayURL string `koanf:"pushgateway_url"`
}

// New returns a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		APIBaseURL:        DefaultAPIBaseURL,
		StartSeason:       DefaultStartSeason,
		EndSeason:         DefaultEndSeason,
		FirstWeek:         DefaultFirstWeek,
		EndWeek:           DefaultEndWeek,
		OutputPrefix:      DefaultOutputPrefix,
		RequestTimeout:    defaultRequestTimeout,
		RequestsPerSecond: defaultRequestsPerSecond,
		RequestBurst:      defaultRequestBurst,
		FetchConcurrency:  1,
		CacheTTL:          defaultCacheTTL,
	}
}

// Validate checks the configuration for values the pipeline cannot run with.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case strings.TrimSpace(c.APIBaseURL) == "":
		return invalid("api_base_url must not be empty")
	case strings.TrimSpace(c.OutputPrefix) == "":
		return invalid("output_prefix must not be empty")
	case c.EndSeason <= c.StartSeason:
		return invalid(fmt.Sprintf("end_season (%d) must be greater than start_season (%d)", c.EndSeason, c.StartSeason))
	case c.FirstWeek < 0 || c.EndWeek <= c.FirstWeek:
		return invalid(fmt.Sprintf("week range [%d, %d) is empty", c.FirstWeek, c.EndWeek))
	case c.FetchConcurrency < 1:
		return invalid("fetch_concurrency must be at least 1")
	case c.RequestsPerSecond < 0:
		return invalid("requests_per_second must not be negative")
	case c.NotifyStream != "" && c.RedisURL == "":
		return invalid("notify_stream requires redis_url")
	}
	return nil
}

// Seasons returns the configured seasons in ascending order.
func (c *Config) Seasons() []int {
	out := make([]int, 0, c.EndSeason-c.StartSeason)
	for y := c.StartSeason; y < c.EndSeason; y++ {
		out = append(out, y)
	}
	return out
}
