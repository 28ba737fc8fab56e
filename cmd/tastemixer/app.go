package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"

	"github.com/justestif/spotify-taste-mixer/internal/auth"
	"github.com/justestif/spotify-taste-mixer/internal/cache"
	"github.com/justestif/spotify-taste-mixer/internal/config"
	"github.com/justestif/spotify-taste-mixer/internal/favorites"
	"github.com/justestif/spotify-taste-mixer/internal/gateway"
	"github.com/justestif/spotify-taste-mixer/internal/lastfm"
	"github.com/justestif/spotify-taste-mixer/internal/playlist"
	"github.com/justestif/spotify-taste-mixer/internal/ranking"
	"github.com/justestif/spotify-taste-mixer/internal/spotify"
)

const similarLimit = 5

// app wires the client-side pipeline for one command invocation.
type app struct {
	cfg        *config.Client
	store      *auth.FileStore
	exchanger  auth.Exchanger
	favs       favorites.Store
	last       *lastPlaylistFile
	apiBaseURL string
	out        io.Writer
	logger     *zap.Logger
}

func newApp(cfg *config.Client, out io.Writer, logger *zap.Logger) *app {
	return &app{
		cfg:       cfg,
		store:     auth.NewFileStore(filepath.Join(cfg.StateDir, "session.json")),
		exchanger: auth.NewIntermediaryClient(cfg.IntermediaryURL),
		favs:      favorites.NewFileStore(cfg.StateDir),
		last:      newLastPlaylistFile(cfg.StateDir),
		out:       out,
		logger:    logger,
	}
}

// catalog builds the authenticated Spotify client. Tokens are refreshed
// through the intermediary and persisted back to the session file.
func (a *app) catalog() *spotify.Client {
	refresher := auth.NewRefresher(a.store, a.exchanger, auth.WithLogger(a.logger))
	transport := gateway.New(refresher, gateway.WithLogger(a.logger))

	var opts []spotifyapi.ClientOption
	if a.apiBaseURL != "" {
		opts = append(opts, spotifyapi.WithBaseURL(a.apiBaseURL))
	}
	return spotify.New(spotifyapi.New(transport.Client(), opts...), spotify.WithLogger(a.logger))
}

func (a *app) generator(catalog *spotify.Client, rankerKind string) (*playlist.Generator, error) {
	ranker, err := ranking.New(rankerKind, catalog, a.logger)
	if err != nil {
		return nil, err
	}

	opts := []playlist.Option{
		playlist.WithCache(cache.New[[]playlist.Track]()),
		playlist.WithRanker(ranker),
		playlist.WithLogger(a.logger),
	}
	if a.cfg.LastFMAPIKey != "" {
		opts = append(opts, playlist.WithSimilarArtists(lastfm.NewClient(a.cfg.LastFMAPIKey, lastfm.WithLogger(a.logger))))
	}
	return playlist.NewGenerator(catalog, opts...), nil
}

func (a *app) login(ctx context.Context) error {
	if a.cfg.ClientID == "" {
		return errors.New("SPOTIFY_ID is not set")
	}
	login := auth.NewLogin(a.cfg.ClientID, a.cfg.RedirectURI, a.store, a.exchanger, a.out, a.logger)
	if _, err := login.Run(ctx); err != nil {
		return err
	}

	user, err := a.catalog().CurrentUser(ctx)
	if err != nil {
		return fmt.Errorf("fetching profile: %w", err)
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s)\n", displayName(user), user.ID)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := auth.Logout(ctx, a.store); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func (a *app) genres(ctx context.Context) error {
	for _, g := range a.catalog().AvailableGenres(ctx) {
		fmt.Fprintln(a.out, g)
	}
	return nil
}

func (a *app) artists(ctx context.Context, args []string) error {
	query := strings.Join(args, " ")
	if query == "" {
		return errors.New("usage: tastemixer artists QUERY")
	}
	artists := a.catalog().SearchArtists(ctx, query)
	if len(artists) == 0 {
		fmt.Fprintln(a.out, "No artists found.")
		return nil
	}
	for _, ar := range artists {
		fmt.Fprintf(a.out, "%-24s %s\n", ar.ID, ar.Name)
	}
	return nil
}

func (a *app) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(a.out)
	var (
		artistNames stringList
		genres      stringList
		decades     intList
	)
	fs.Var(&artistNames, "artist", "artist name (repeatable)")
	fs.Var(&genres, "genre", "genre (repeatable)")
	fs.Var(&decades, "decade", "decade start year, e.g. 1990 (repeatable)")
	popularity := fs.Int("popularity", -1, "target popularity 0-100, matched within +-40")
	energy := fs.Float64("energy", -1, "target energy 0-1")
	valence := fs.Float64("valence", -1, "target valence 0-1")
	danceability := fs.Float64("danceability", -1, "target danceability 0-1")
	acousticness := fs.Float64("acousticness", -1, "target acousticness 0-1")
	rankerKind := fs.String("ranker", ranking.KindPopularity, "ranking strategy: popularity, features or mood")
	refresh := fs.Bool("refresh", false, "exclude the tracks of the last playlist")
	if err := fs.Parse(args); err != nil {
		return err
	}

	catalog := a.catalog()
	gen, err := a.generator(catalog, *rankerKind)
	if err != nil {
		return err
	}

	prefs := playlist.Preferences{
		Artists: resolveArtists(ctx, catalog, artistNames),
		Genres:  genres,
		Decades: decades,
	}
	if *popularity >= 0 {
		r := playlist.PopularityAround(*popularity, popularitySpread)
		prefs.Popularity = &r
	}
	prefs.AudioFeatures = featureTargets(map[string]float64{
		"energy":       *energy,
		"valence":      *valence,
		"danceability": *danceability,
		"acousticness": *acousticness,
	})

	var tracks []playlist.Track
	if *refresh {
		last, err := a.last.Load()
		if err != nil {
			return err
		}
		var current []playlist.Track
		if last != nil {
			current = last.Tracks
		}
		tracks, err = gen.Refresh(ctx, prefs, current)
		if err != nil {
			return err
		}
	} else {
		tracks, err = gen.Generate(ctx, prefs, nil)
		if err != nil {
			return err
		}
	}

	if err := a.last.Save(&lastPlaylist{Preferences: prefs, Ranker: *rankerKind, Tracks: tracks}); err != nil {
		return err
	}
	a.printTracks(tracks)
	a.printStats(tracks)
	if len(prefs.AudioFeatures) > 0 {
		mood := ranking.GetMoodCategory(prefs.AudioFeatures)
		fmt.Fprintf(a.out, "Mood: %s. %s\n", ranking.MoodName(prefs.AudioFeatures), mood.Description)
	}
	return nil
}

func (a *app) more(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("more", flag.ContinueOnError)
	fs.SetOutput(a.out)
	count := fs.Int("count", playlist.DefaultMoreCount, "number of tracks to add")
	if err := fs.Parse(args); err != nil {
		return err
	}

	last, err := a.requireLast()
	if err != nil {
		return err
	}

	catalog := a.catalog()
	gen, err := a.generator(catalog, last.Ranker)
	if err != nil {
		return err
	}

	extra, err := gen.GenerateMore(ctx, last.Preferences, last.TrackIDs(), *count)
	if err != nil {
		return err
	}
	if len(extra) == 0 {
		fmt.Fprintln(a.out, "No new tracks found.")
		return nil
	}

	last.Tracks = append(last.Tracks, extra...)
	if err := a.last.Save(last); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %d tracks:\n", len(extra))
	a.printTracks(extra)
	a.printStats(last.Tracks)
	return nil
}

func (a *app) save(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("save", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "playlist name (default \"Taste Mixer - <date>\")")
	if err := fs.Parse(args); err != nil {
		return err
	}

	last, err := a.requireLast()
	if err != nil {
		return err
	}
	if len(last.Tracks) == 0 {
		return errors.New("last playlist has no tracks")
	}

	catalog := a.catalog()
	userID, err := catalog.UserID(ctx)
	if err != nil {
		return fmt.Errorf("fetching profile: %w", err)
	}

	pl, err := playlist.NewMutator(catalog, playlist.WithMutatorLogger(a.logger)).
		CreateRemotePlaylist(ctx, userID, last.Tracks, *name)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Saved %d tracks: %s\n", len(last.Tracks), pl.ExternalURL)
	return nil
}

func (a *app) favorites(ctx context.Context, args []string) error {
	userID, err := a.catalog().UserID(ctx)
	if err != nil {
		return fmt.Errorf("fetching profile: %w", err)
	}

	sub := "list"
	if len(args) > 0 {
		sub = args[0]
	}

	switch sub {
	case "list":
		tracks, err := a.favs.List(ctx, userID)
		if err != nil {
			return err
		}
		if len(tracks) == 0 {
			fmt.Fprintln(a.out, "No favorites yet.")
			return nil
		}
		a.printTracks(tracks)
		return nil

	case "toggle":
		if len(args) != 2 {
			return errors.New("usage: tastemixer favorites toggle N")
		}
		last, err := a.requireLast()
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 || n > len(last.Tracks) {
			return fmt.Errorf("track number must be between 1 and %d", len(last.Tracks))
		}
		track := last.Tracks[n-1]
		on, err := favorites.Toggle(ctx, a.favs, userID, track)
		if err != nil {
			return err
		}
		if on {
			fmt.Fprintf(a.out, "Starred %s\n", track.Name)
		} else {
			fmt.Fprintf(a.out, "Unstarred %s\n", track.Name)
		}
		return nil

	case "remove":
		if len(args) != 2 {
			return errors.New("usage: tastemixer favorites remove ID")
		}
		if err := a.favs.Remove(ctx, userID, args[1]); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Removed.")
		return nil

	default:
		return fmt.Errorf("unknown favorites command %q", sub)
	}
}

func (a *app) requireLast() (*lastPlaylist, error) {
	last, err := a.last.Load()
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, errors.New("no playlist yet, run tastemixer generate first")
	}
	return last, nil
}

// resolveArtists maps names to the best search match, skipping names with
// no match.
func resolveArtists(ctx context.Context, catalog *spotify.Client, names []string) []playlist.Artist {
	var artists []playlist.Artist
	for _, name := range names {
		found := catalog.SearchArtists(ctx, name)
		if len(found) == 0 {
			continue
		}
		artists = append(artists, found[0])
	}
	return artists
}

// featureTargets drops unset (negative) targets.
func featureTargets(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		if v >= 0 {
			out[k] = min(v, 1)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func displayName(u *playlist.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}
