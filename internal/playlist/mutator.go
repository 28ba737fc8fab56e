package playlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Description is attached to every playlist the mutator creates.
const Description = "Created with Spotify Taste Mixer"

// Remote is the subset of the catalog API used to persist playlists.
type Remote interface {
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*RemotePlaylist, error)
	AddTracks(ctx context.Context, playlistID string, trackIDs []string) error
	UnfollowPlaylist(ctx context.Context, playlistID string) error
}

// Mutator creates playlists on the provider.
type Mutator struct {
	remote   Remote
	rollback bool
	now      func() time.Time
	logger   *zap.Logger
}

// MutatorOption configures a Mutator.
type MutatorOption func(*Mutator)

// WithRollback controls whether a playlist is removed again when attaching
// tracks fails. Enabled by default.
func WithRollback(enabled bool) MutatorOption {
	return func(m *Mutator) {
		m.rollback = enabled
	}
}

// WithMutatorLogger sets the logger.
func WithMutatorLogger(l *zap.Logger) MutatorOption {
	return func(m *Mutator) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMutator creates a Mutator writing through remote.
func NewMutator(remote Remote, opts ...MutatorOption) *Mutator {
	m := &Mutator{
		remote:   remote,
		rollback: true,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DefaultName is the playlist name used when the caller gives none.
func DefaultName(t time.Time) string {
	return "Taste Mixer - " + t.Format("2006-01-02")
}

// CreateRemotePlaylist creates a private playlist for userID holding tracks
// in order. If attaching tracks fails the error is returned and, with
// rollback enabled, the empty playlist is unfollowed.
func (m *Mutator) CreateRemotePlaylist(ctx context.Context, userID string, tracks []Track, name string) (*RemotePlaylist, error) {
	if userID == "" {
		return nil, errors.New("missing user ID")
	}
	if name == "" {
		name = DefaultName(m.now())
	}

	pl, err := m.remote.CreatePlaylist(ctx, userID, name, Description, false)
	if err != nil {
		return nil, fmt.Errorf("creating playlist: %w", err)
	}

	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	if len(ids) == 0 {
		return pl, nil
	}

	if err := m.remote.AddTracks(ctx, pl.ID, ids); err != nil {
		if m.rollback {
			if rbErr := m.remote.UnfollowPlaylist(context.WithoutCancel(ctx), pl.ID); rbErr != nil {
				m.logger.Warn("rolling back playlist", zap.String("playlist", pl.ID), zap.Error(rbErr))
			}
		}
		return nil, fmt.Errorf("adding tracks to playlist %s: %w", pl.ID, err)
	}

	m.logger.Info("created playlist",
		zap.String("playlist", pl.ID),
		zap.String("name", name),
		zap.Int("tracks", len(ids)),
	)
	return pl, nil
}
