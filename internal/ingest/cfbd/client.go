// Package cfbd is a client for the CollegeFootballData API endpoints the
// export pipeline reads: /games and /games/teams.
package cfbd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/fortuna/gridiron/internal/cache"
	"github.com/fortuna/gridiron/pkg/logger"
)

const (
	BaseURL = "https://api.collegefootballdata.com"

	EndpointGames     = "/games"
	EndpointTeamStats = "/games/teams"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 64 << 20
)

// Observer receives request and cache outcomes, typically for metrics.
type Observer interface {
	ObserveRequest(endpoint string, status int, elapsed time.Duration)
	ObserveCache(endpoint string, hit bool)
}

// Client handles CollegeFootballData API requests.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Cache
	cacheTTL   time.Duration
	observer   Observer
	log        logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = strings.TrimSpace(key) }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit bounds outgoing requests to rps with the given burst.
// A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCache serves repeated requests from store.
func WithCache(store cache.Cache, ttl time.Duration) Option {
	return func(c *Client) {
		c.cache = store
		c.cacheTTL = ttl
	}
}

// WithObserver reports request outcomes to o.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// New creates a client for baseURL. An empty baseURL selects BaseURL.
func New(baseURL string, opts ...Option) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = BaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchGames fetches every game of a season.
func (c *Client) FetchGames(ctx context.Context, season int) ([]Game, error) {
	params := url.Values{"year": {strconv.Itoa(season)}}
	var games []Game
	err := c.get(ctx, EndpointGames, params, func(body []byte) (err error) {
		games, err = ParseGames(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return games, nil
}

// FetchTeamStats fetches the per-team box score stats of one week.
func (c *Client) FetchTeamStats(ctx context.Context, season, week int) ([]RawStatEntry, error) {
	params := url.Values{
		"year": {strconv.Itoa(season)},
		"week": {strconv.Itoa(week)},
	}
	var entries []RawStatEntry
	err := c.get(ctx, EndpointTeamStats, params, func(body []byte) (err error) {
		entries, err = ParseTeamStats(body)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// get fetches endpoint and hands the body to decode. Only bodies that
// decode are cached; a cached body that no longer decodes is refetched.
func (c *Client) get(ctx context.Context, endpoint string, params url.Values, decode func([]byte) error) error {
	// Encode sorts by key, so the cache key is stable.
	query := params.Encode()
	key := endpoint + "?" + query

	if body, ok := c.cached(ctx, endpoint, key); ok {
		err := decode(body)
		if err == nil {
			return nil
		}
		c.log.Warn(ctx, "cached body does not decode, refetching", logger.String("key", key), logger.Error(err))
	}

	body, err := c.fetch(ctx, endpoint, key)
	if err != nil {
		return err
	}
	if err := decode(body); err != nil {
		return err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, body, c.cacheTTL); err != nil {
			c.log.Warn(ctx, "cache store failed", logger.String("key", key), logger.Error(err))
		}
	}
	return nil
}

func (c *Client) fetch(ctx context.Context, endpoint, key string) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	reqURL := c.baseURL + key
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debug(ctx, "requesting", logger.String("url", reqURL))
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, 0, time.Since(start))
		return nil, fmt.Errorf("GET %s: %w", key, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	c.observe(endpoint, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: GET %s returned %d: %s", ErrUnexpectedStatus, key, resp.StatusCode, snippet(body))
	}
	return body, nil
}

func (c *Client) cached(ctx context.Context, endpoint, key string) ([]byte, bool) {
	if c.cache == nil {
		return nil, false
	}
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn(ctx, "cache lookup failed", logger.String("key", key), logger.Error(err))
		return nil, false
	}
	if c.observer != nil {
		c.observer.ObserveCache(endpoint, ok)
	}
	return body, ok
}

func (c *Client) observe(endpoint string, status int, elapsed time.Duration) {
	if c.observer != nil {
		c.observer.ObserveRequest(endpoint, status, elapsed)
	}
}
