// Command tastemixer generates Spotify playlists from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/config"
)

const usageText = `Usage: tastemixer [-debug] [-env FILE] <command> [flags]

Commands:
  login                 authorize with Spotify
  logout                forget the stored credential
  genres                list selectable genres
  artists QUERY         search artists by name
  generate [flags]      build a playlist (see tastemixer generate -h)
  more [-count N]       add fresh tracks to the last playlist
  save [-name NAME]     save the last playlist to your Spotify account
  favorites [list|toggle N|remove ID]
                        manage starred tracks
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tastemixer", flag.ContinueOnError)
	debug := fs.Bool("debug", false, "enable debug logging")
	envFile := fs.String("env", ".env", "dotenv file to load")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usageText) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}

	if err := config.LoadDotEnv(*envFile); err != nil {
		return err
	}
	cfg, err := config.LoadClient()
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

	a := newApp(cfg, out, logger)
	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return a.login(ctx)
	case "logout":
		return a.logout(ctx)
	case "genres":
		return a.genres(ctx)
	case "artists":
		return a.artists(ctx, cmdArgs)
	case "generate":
		return a.generate(ctx, cmdArgs)
	case "more":
		return a.more(ctx, cmdArgs)
	case "save":
		return a.save(ctx, cmdArgs)
	case "favorites":
		return a.favorites(ctx, cmdArgs)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}
