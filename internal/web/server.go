// Package web serves the token intermediary and the session-backed playlist API.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/cache"
	"github.com/justestif/spotify-taste-mixer/internal/favorites"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
)

// DefaultAddr is the default server address.
const DefaultAddr = "127.0.0.1:8080"

// ServerConfig holds server configuration.
type ServerConfig struct {
	Addr          string
	Provider      OAuthProvider
	SessionSecret []byte

	// Optional. Sessions and Favorites default to in-memory stores.
	Sessions       SessionManager
	Favorites      favorites.Store
	History        PlaylistHistory
	SimilarArtists playlist.SimilarArtistSource
	Ranker         string
	APIBaseURL     string // Spotify Web API base URL, with trailing slash
	Logger         *zap.Logger
}

// Server is the HTTP server.
type Server struct {
	router   chi.Router
	server   *http.Server
	handlers *Handlers
	sweepers []sweeper
	logger   *zap.Logger
}

// sweeper evicts expired entries until ctx is done.
type sweeper interface {
	Run(ctx context.Context)
}

// NewServer creates a new server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Provider == nil {
		return nil, errors.New("missing OAuth provider")
	}
	if len(cfg.SessionSecret) == 0 {
		return nil, errors.New("missing session secret")
	}
	if cfg.Addr == "" {
		cfg.Addr = DefaultAddr
	}
	if cfg.Sessions == nil {
		cfg.Sessions = NewSessionStore()
	}
	if cfg.Favorites == nil {
		cfg.Favorites = favorites.NewMemoryStore()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	exchanger := &providerExchanger{provider: cfg.Provider, now: time.Now}
	tracks := cache.New[[]playlist.Track]()
	clients := cache.New[*sessionClient](cache.WithTTL(sessionClientTTL))

	handlers := &Handlers{
		provider:  cfg.Provider,
		exchanger: exchanger,
		sessions:  cfg.Sessions,
		codec:     &sessionCodec{secret: cfg.SessionSecret, now: time.Now},
		clients: &clientPool{
			clients:    clients,
			tracks:     tracks,
			sessions:   cfg.Sessions,
			exchanger:  exchanger,
			similar:    cfg.SimilarArtists,
			rankerKind: cfg.Ranker,
			apiBaseURL: cfg.APIBaseURL,
			logger:     logger,
		},
		favorites:  cfg.Favorites,
		history:    cfg.History,
		apiBaseURL: cfg.APIBaseURL,
		now:        time.Now,
		logger:     logger,
	}

	s := &Server{
		router:   chi.NewRouter(),
		handlers: handlers,
		sweepers: []sweeper{tracks, clients},
		logger:   logger,
	}
	if sw, ok := cfg.SimilarArtists.(sweeper); ok {
		s.sweepers = append(s.sweepers, sw)
	}

	// Configure middleware
	s.setupMiddleware()

	// Configure routes
	s.setupRoutes()

	// Create HTTP server
	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// setupMiddleware configures middleware for the router.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

// setupRoutes configures routes for the application.
func (s *Server) setupRoutes() {
	h := s.handlers

	s.router.Get("/healthz", h.Health)

	// Token intermediary
	s.router.Post("/token-exchange", h.TokenExchange)
	s.router.Post("/token-refresh", h.TokenRefresh)

	// Browser login
	s.router.Get("/login", h.Login)
	s.router.Get("/callback", h.Callback)
	s.router.Post("/logout", h.Logout)

	// Session API
	s.router.Route("/api", func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Get("/me", h.Me)
		r.Get("/genres", h.Genres)
		r.Get("/artists", h.Artists)
		r.Post("/playlist/generate", h.Generate)
		r.Post("/playlist/more", h.More)
		r.Get("/playlists", h.ListPlaylists)
		r.Post("/playlists", h.CreatePlaylist)
		r.Get("/favorites", h.ListFavorites)
		r.Post("/favorites", h.ToggleFavorite)
		r.Delete("/favorites/{trackID}", h.RemoveFavorite)
	})
}

// Handler returns the server's router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info("starting server", zap.String("addr", "http://"+s.server.Addr))
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Run starts the server and shuts it down gracefully when ctx is done.
// Cache sweepers run for the server's lifetime.
func (s *Server) Run(ctx context.Context) error {
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	for _, sw := range s.sweepers {
		go sw.Run(sweepCtx)
	}

	// Start server in goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := s.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for cancellation or error
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down server")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	s.logger.Info("server stopped")
	return nil
}
