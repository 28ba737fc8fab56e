// Package gateway wraps every catalog request with bearer-token injection
// and bounded retries.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultMaxRetries bounds retries per request; total attempts are at most DefaultMaxRetries+1.
	DefaultMaxRetries = 3

	defaultRetryAfter = 1 * time.Second
	transientBackoff  = 1 * time.Second
)

var (
	// ErrNoToken is returned when no access token can be obtained.
	ErrNoToken = errors.New("no access token available")

	// ErrAuthFailed is returned on 401. It is never retried.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited is returned when 429 responses exhaust the retry budget.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound is returned on 404. It is never retried.
	ErrNotFound = errors.New("not found")
)

// HTTPError is a non-2xx response that survived the retry budget.
type HTTPError struct {
	StatusCode int
	Method     string
	URL        string
	Body       string
	RetryAfter time.Duration // set on 429
}

func (e *HTTPError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is maps well-known statuses onto the package sentinels.
func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrAuthFailed:
		return e.StatusCode == http.StatusUnauthorized
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// TokenSource yields the access token for the next attempt.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) AccessToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Transport is an http.RoundTripper that authenticates and retries requests.
type Transport struct {
	base       http.RoundTripper
	tokens     TokenSource
	maxRetries int
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *zap.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithBase sets the underlying transport. Defaults to http.DefaultTransport.
func WithBase(rt http.RoundTripper) Option {
	return func(t *Transport) {
		if rt != nil {
			t.base = rt
		}
	}
}

// WithMaxRetries overrides DefaultMaxRetries.
func WithMaxRetries(n int) Option {
	return func(t *Transport) {
		if n >= 0 {
			t.maxRetries = n
		}
	}
}

// WithSleep replaces the wait between attempts. Used by tests.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(t *Transport) {
		if sleep != nil {
			t.sleep = sleep
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Transport) {
		if l != nil {
			t.logger = l
		}
	}
}

// New creates a Transport that authenticates with tokens.
func New(tokens TokenSource, opts ...Option) *Transport {
	t := &Transport{
		base:       http.DefaultTransport,
		tokens:     tokens,
		maxRetries: DefaultMaxRetries,
		sleep:      sleepContext,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns an http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip sends req, retrying on 429, 5xx and network errors.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("buffering request body: %w", err)
		}
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			wait := transientBackoff
			var herr *HTTPError
			if errors.As(lastErr, &herr) && herr.StatusCode == http.StatusTooManyRequests {
				wait = herr.RetryAfter
			}
			t.logger.Debug("retrying request",
				zap.String("url", req.URL.Redacted()),
				zap.Int("attempt", attempt),
				zap.Duration("wait", wait),
				zap.Error(lastErr),
			)
			if err := t.sleep(ctx, wait); err != nil {
				return nil, err
			}
		}

		token, err := t.tokens.AccessToken(ctx)
		if err != nil {
			return nil, errors.Join(ErrNoToken, err)
		}

		attemptReq := req.Clone(ctx)
		attemptReq.Header.Set("Authorization", "Bearer "+token)
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
			attemptReq.ContentLength = int64(len(body))
			attemptReq.GetBody = func() (io.ReadCloser, error) {
				return io.NopCloser(bytes.NewReader(body)), nil
			}
		}

		resp, err := t.base.RoundTrip(attemptReq)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		if resp.StatusCode < 300 {
			return resp, nil
		}

		herr := newHTTPError(attemptReq, resp)
		switch resp.StatusCode {
		case http.StatusUnauthorized:
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, herr)
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %w", ErrNotFound, herr)
		}
		lastErr = herr
	}

	var herr *HTTPError
	if errors.As(lastErr, &herr) && herr.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%w: %w", ErrRateLimited, herr)
	}
	return nil, lastErr
}

func newHTTPError(req *http.Request, resp *http.Response) *HTTPError {
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
	e := &HTTPError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		URL:        req.URL.Redacted(),
		Body:       string(bytes.TrimSpace(data)),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		e.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
	}
	return e
}

// parseRetryAfter reads a delay in seconds, defaulting to one second.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return defaultRetryAfter
	}
	return time.Duration(secs) * time.Second
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
