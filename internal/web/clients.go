package web

import (
	"sync"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/cache"
	"github.com/justestif/spotify-taste-mixer/internal/gateway"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
	"github.com/justestif/spotify-taste-mixer/internal/ranking"
	"github.com/justestif/spotify-taste-mixer/internal/spotify"
)

// sessionClientTTL bounds how long an idle session keeps its pipeline.
// Every lookup renews the entry, so the TTL counts idle time only.
const sessionClientTTL = 30 * time.Minute

// sessionClient is the per-session request pipeline. One Refresher per
// session keeps concurrent requests from refreshing twice.
type sessionClient struct {
	catalog   *spotify.Client
	generator *playlist.Generator
	mutator   *playlist.Mutator
	latest    playlist.Latest[[]playlist.Track]
}

// clientPool builds and caches sessionClients.
type clientPool struct {
	mu         sync.Mutex
	clients    *cache.Cache[*sessionClient]
	tracks     *cache.Cache[[]playlist.Track]
	sessions   SessionManager
	exchanger  auth.Exchanger
	similar    playlist.SimilarArtistSource
	rankerKind string
	apiBaseURL string
	logger     *zap.Logger
}

func (p *clientPool) get(sessionID string) (*sessionClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients.Get(sessionID); ok {
		p.clients.Set(sessionID, c)
		return c, nil
	}

	logger := p.logger.With(zap.String("session", shortID(sessionID)))
	store := &sessionCredentials{sessions: p.sessions, id: sessionID}
	refresher := auth.NewRefresher(store, p.exchanger, auth.WithLogger(logger))
	transport := gateway.New(refresher, gateway.WithLogger(logger))

	var apiOpts []spotifyapi.ClientOption
	if p.apiBaseURL != "" {
		apiOpts = append(apiOpts, spotifyapi.WithBaseURL(p.apiBaseURL))
	}
	catalog := spotify.New(spotifyapi.New(transport.Client(), apiOpts...), spotify.WithLogger(logger))

	ranker, err := ranking.New(p.rankerKind, catalog, logger)
	if err != nil {
		return nil, err
	}

	genOpts := []playlist.Option{
		playlist.WithCache(p.tracks),
		playlist.WithRanker(ranker),
		playlist.WithLogger(logger),
	}
	if p.similar != nil {
		genOpts = append(genOpts, playlist.WithSimilarArtists(p.similar))
	}

	c := &sessionClient{
		catalog:   catalog,
		generator: playlist.NewGenerator(catalog, genOpts...),
		mutator:   playlist.NewMutator(catalog, playlist.WithMutatorLogger(logger)),
	}
	p.clients.Set(sessionID, c)
	return c, nil
}

func (p *clientPool) forget(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clients.Delete(sessionID)
}

// shortID keeps session IDs out of logs in full.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
