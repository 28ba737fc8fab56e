// Package spotify adapts the Spotify Web API to the playlist generator's
// catalog and persistence interfaces.
package spotify

import (
	"context"
	"fmt"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/cache"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

const userCacheKey = "current_user"

// Client wraps the Spotify API client with convenience methods.
type Client struct {
	api     *spotify.Client
	users   *cache.Cache[*playlist.User]
	artists *cache.Cache[[]playlist.Artist]
	genres  *cache.Cache[[]string]
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a new Spotify client wrapper.
// The underlying client's transport must already authenticate requests.
func New(api *spotify.Client, opts ...Option) *Client {
	c := &Client{
		api:     api,
		users:   cache.New[*playlist.User](),
		artists: cache.New[[]playlist.Artist](),
		genres:  cache.New[[]string](),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CurrentUser returns the authenticated user's profile. It is cached.
func (c *Client) CurrentUser(ctx context.Context) (*playlist.User, error) {
	if u, ok := c.users.Get(userCacheKey); ok {
		return u, nil
	}

	me, err := c.api.CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting current user: %w", err)
	}

	u := &playlist.User{
		ID:          me.ID,
		DisplayName: me.DisplayName,
		Country:     me.Country,
	}
	c.users.Set(userCacheKey, u)
	return u, nil
}

// UserID returns the current user's Spotify ID.
func (c *Client) UserID(ctx context.Context) (string, error) {
	u, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return u.ID, nil
}

// Market returns the user's country, which selects the catalog partition.
func (c *Client) Market(ctx context.Context) (string, error) {
	u, err := c.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	return u.Country, nil
}
