// Package lastfm looks up similar artists through the Last.fm API.
package lastfm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/cache"
)

const (
	baseURL   = "https://ws.audioscrobbler.com"
	apiPath   = "/2.0/"
	userAgent = "spotify-taste-mixer/1.0"

	requestTimeout = 10 * time.Second
	similarTTL     = time.Hour

	retryCount   = 3
	retryWait    = 1 * time.Second
	retryMaxWait = 4 * time.Second
)

// Last.fm API error codes.
const (
	errCodeInvalidParams = 6
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")

	// ErrArtistNotFound is returned when Last.fm does not know the artist.
	ErrArtistNotFound = errors.New("artist not found")
)

// Client is a Last.fm API client with caching and rate-limit retries.
type Client struct {
	apiKey string
	http   *resty.Client
	cache  *cache.Cache[[]string]
	logger *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another endpoint. Used by tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.http.SetBaseURL(u) }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCache replaces the similar-artist cache.
func WithCache(store *cache.Cache[[]string]) Option {
	return func(c *Client) {
		if store != nil {
			c.cache = store
		}
	}
}

// WithRetryWait bounds the backoff between rate-limited attempts.
func WithRetryWait(minWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.http.SetRetryWaitTime(minWait).SetRetryMaxWaitTime(maxWait)
	}
}

// NewClient creates a Last.fm API client authenticated with apiKey.
// Rate-limited requests are retried up to retryCount times with
// exponential backoff between retryWait and retryMaxWait.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey: apiKey,
		cache:  cache.New[[]string](cache.WithTTL(similarTTL)),
		logger: zap.NewNop(),
	}
	c.http = resty.New().
		SetBaseURL(baseURL).
		SetTimeout(requestTimeout).
		SetHeader("User-Agent", userAgent).
		SetRetryCount(retryCount).
		SetRetryWaitTime(retryWait).
		SetRetryMaxWaitTime(retryMaxWait).
		AddRetryCondition(rateLimited).
		AddRetryHook(func(resp *resty.Response, _ error) {
			if resp == nil || resp.Request == nil {
				return
			}
			c.logger.Debug("last.fm rate limited, retrying",
				zap.Int("attempt", resp.Request.Attempt),
			)
		})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run sweeps expired cache entries until ctx is done.
func (c *Client) Run(ctx context.Context) {
	c.cache.Run(ctx)
}

// SimilarArtists returns up to limit artist names similar to artist, most
// similar first. Results are cached. An unknown artist yields ErrArtistNotFound.
func (c *Client) SimilarArtists(ctx context.Context, artist string, limit int) ([]string, error) {
	artist = strings.TrimSpace(artist)
	if artist == "" {
		return nil, nil
	}

	cacheKey := cache.Key("similar", strings.ToLower(artist), strconv.Itoa(limit))
	if cached, ok := c.cache.Get(cacheKey); ok {
		return cached, nil
	}

	params := map[string]string{
		"method":      "artist.getSimilar",
		"artist":      artist,
		"autocorrect": "1",
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}

	body, err := c.doRequest(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("fetching similar artists: %w", err)
	}

	var resp similarArtistsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing similar artists response: %w", err)
	}

	names := make([]string, 0, len(resp.SimilarArtists.Artist))
	for _, a := range resp.SimilarArtists.Artist {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if limit > 0 && len(names) > limit {
		names = names[:limit]
	}

	c.cache.Set(cacheKey, names)
	c.logger.Debug("similar artists",
		zap.String("artist", artist),
		zap.Int("count", len(names)),
	)
	return names, nil
}

// doRequest performs a GET request. Rate-limit retries happen inside resty;
// a response still rate limited after the last retry yields ErrRateLimited.
func (c *Client) doRequest(ctx context.Context, params map[string]string) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetQueryParam("api_key", c.apiKey).
		SetQueryParam("format", "json").
		Get(apiPath)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}

	body := resp.Body()

	// Last.fm reports errors in the body, sometimes with a 200 status.
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		case errCodeInvalidParams:
			return nil, fmt.Errorf("%w: %s", ErrArtistNotFound, apiErr.Message)
		default:
			return nil, fmt.Errorf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}

	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode())
	}

	return body, nil
}

// rateLimited reports whether Last.fm answered with error 29. Transport
// errors are not retried.
func rateLimited(resp *resty.Response, err error) bool {
	if err != nil || resp == nil {
		return false
	}
	var apiErr apiError
	return json.Unmarshal(resp.Body(), &apiErr) == nil && apiErr.Error == errCodeRateLimited
}
