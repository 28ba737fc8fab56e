package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// DefaultRefreshMargin is how long before expiry a token is proactively refreshed.
const DefaultRefreshMargin = 5 * time.Minute

const refreshKey = "refresh"

// Refresher hands out a valid access token, refreshing it through the
// intermediary when it is about to expire. Concurrent callers that need a
// refresh share a single exchange.
type Refresher struct {
	store     Store
	exchanger Exchanger
	margin    time.Duration
	now       func() time.Time
	logger    *zap.Logger
	group     singleflight.Group
}

// RefresherOption configures a Refresher.
type RefresherOption func(*Refresher)

// WithRefreshMargin overrides DefaultRefreshMargin.
func WithRefreshMargin(d time.Duration) RefresherOption {
	return func(r *Refresher) {
		r.margin = d
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) RefresherOption {
	return func(r *Refresher) {
		if now != nil {
			r.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) RefresherOption {
	return func(r *Refresher) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRefresher creates a Refresher over store using exchanger for refreshes.
func NewRefresher(store Store, exchanger Exchanger, opts ...RefresherOption) *Refresher {
	r := &Refresher{
		store:     store,
		exchanger: exchanger,
		margin:    DefaultRefreshMargin,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AccessToken returns a token valid for at least the refresh margin.
//
// A caller whose ctx is cancelled stops waiting, but an exchange already in
// flight runs to completion for the other callers.
func (r *Refresher) AccessToken(ctx context.Context) (string, error) {
	cred, err := r.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("loading credential: %w", err)
	}
	if cred == nil {
		return "", ErrNoCredential
	}
	if r.fresh(cred) {
		return cred.AccessToken, nil
	}

	ch := r.group.DoChan(refreshKey, func() (any, error) {
		return r.refresh(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (r *Refresher) fresh(cred *Credential) bool {
	return cred.AccessToken != "" && !cred.ExpiresWithin(r.margin, r.now())
}

// refresh runs inside the single flight.
func (r *Refresher) refresh(ctx context.Context) (string, error) {
	// Another flight may have finished between our check and this one starting.
	cred, err := r.store.Load(ctx)
	if err != nil {
		return "", fmt.Errorf("loading credential: %w", err)
	}
	if cred == nil {
		return "", ErrNoCredential
	}
	if r.fresh(cred) {
		return cred.AccessToken, nil
	}

	if cred.RefreshToken == "" {
		return "", r.fail(ctx, errors.New("no refresh token stored"))
	}

	r.logger.Debug("refreshing access token", zap.Time("expires_at", cred.ExpiresAt))

	resp, err := r.exchanger.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return "", r.fail(ctx, err)
	}
	if resp == nil || resp.AccessToken == "" {
		return "", r.fail(ctx, errors.New("empty access token"))
	}

	refreshToken := resp.RefreshToken
	if refreshToken == "" {
		refreshToken = cred.RefreshToken
	}
	next := NewCredential(resp.AccessToken, refreshToken, resp.ExpiresIn, r.now())

	if err := r.store.Save(ctx, next); err != nil {
		return "", fmt.Errorf("saving refreshed credential: %w", err)
	}

	r.logger.Info("access token refreshed", zap.Time("expires_at", next.ExpiresAt))
	return next.AccessToken, nil
}

// fail clears the stored credential, forcing a new login.
func (r *Refresher) fail(ctx context.Context, cause error) error {
	r.logger.Warn("token refresh failed, clearing credential", zap.Error(cause))
	if err := r.store.Clear(ctx); err != nil {
		r.logger.Error("clearing credential", zap.Error(err))
	}
	return fmt.Errorf("%w: %w", ErrRefreshFailed, cause)
}
