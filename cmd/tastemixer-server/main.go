// Command tastemixer-server runs the token intermediary and the session API.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/config"
	"github.com/justestif/spotify-taste-mixer/internal/db"
	"github.com/justestif/spotify-taste-mixer/internal/favorites"
	"github.com/justestif/spotify-taste-mixer/internal/lastfm"
	"github.com/justestif/spotify-taste-mixer/internal/web"
)

const sessionCleanupInterval = time.Hour

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	debug := flag.Bool("debug", false, "enable debug logging")
	envFile := flag.String("env", ".env", "dotenv file to load")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.LoadServer()
	if err != nil {
		return err
	}

	logger, err := newLogger(*debug)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	secret, err := sessionSecret(cfg.SessionSecret, logger)
	if err != nil {
		return err
	}

	serverCfg := web.ServerConfig{
		Addr:          cfg.Addr,
		Provider:      auth.NewAuthenticator(cfg.ClientID, cfg.ClientSecret, cfg.RedirectURI),
		SessionSecret: secret,
		Ranker:        cfg.Ranker,
		Logger:        logger,
	}

	if cfg.LastFMAPIKey != "" {
		serverCfg.SimilarArtists = lastfm.NewClient(cfg.LastFMAPIKey, lastfm.WithLogger(logger))
	}

	if cfg.DatabaseURL != "" {
		database, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := database.Migrate(ctx); err != nil {
			return fmt.Errorf("migrating database: %w", err)
		}

		serverCfg.Sessions = web.NewDBSessionStore(database)
		serverCfg.Favorites = favorites.NewDBStore(database)
		serverCfg.History = database.Playlists()
		go cleanupSessions(ctx, database.Sessions(), logger)
	} else {
		logger.Info("DATABASE_URL not set, sessions and favorites are kept in memory")
	}

	server, err := web.NewServer(serverCfg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logger.Info("starting server", zap.String("addr", cfg.Addr))
	return server.Run(ctx)
}

// sessionSecret returns the configured secret, or a random one that
// invalidates sessions on restart.
func sessionSecret(configured string, logger *zap.Logger) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}
	logger.Warn("TASTEMIXER_SESSION_SECRET not set, using a random secret")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	return secret, nil
}

func cleanupSessions(ctx context.Context, sessions *db.SessionRepository, logger *zap.Logger) {
	ticker := time.NewTicker(sessionCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.DeleteExpired(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("deleting expired sessions", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("deleted expired sessions", zap.Int64("count", n))
			}
		}
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
