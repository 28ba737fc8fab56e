package playlist

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/spotify-taste-mixer/internal/cache"
)

const (
	// MaxPlaylistSize caps a full generation.
	MaxPlaylistSize = 50

	// DefaultMoreCount is how many tracks GenerateMore returns when count <= 0.
	DefaultMoreCount = 10

	// DefaultMarket is used when the user's country cannot be resolved.
	DefaultMarket = "ES"

	// FallbackQuery finds recent popular tracks when no filter produced candidates.
	FallbackQuery = "year:2020-2024"

	// DefaultConcurrency bounds concurrent catalog calls per branch.
	DefaultConcurrency = 5

	genreSearchLimit   = 50
	moreSearchLimit    = 30
	relatedPerArtist   = 3
	similarPerArtist   = 3
	similarSearchLimit = 10
	artistOffsetRange  = 20
	genreOffsetRange   = 30
)

// ErrGeneration wraps failures that abort a whole generation.
var ErrGeneration = errors.New("playlist generation failed")

// Catalog is the subset of the catalog API the generator reads from.
type Catalog interface {
	Market(ctx context.Context) (string, error)
	ArtistTopTracks(ctx context.Context, artistID, market string) ([]Track, error)
	RelatedArtists(ctx context.Context, artistID string) ([]Artist, error)
	SearchTracks(ctx context.Context, query string, limit, offset int) ([]Track, error)
}

// SimilarArtistSource suggests artist names similar to the given one.
type SimilarArtistSource interface {
	SimilarArtists(ctx context.Context, artistName string, limit int) ([]string, error)
}

// Generator builds track lists from Preferences.
type Generator struct {
	catalog     Catalog
	cache       *cache.Cache[[]Track]
	ranker      Ranker
	similar     SimilarArtistSource
	concurrency int
	logger      *zap.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// Option configures a Generator.
type Option func(*Generator)

// WithCache sets the result cache. Defaults to a fresh cache with the default TTL.
func WithCache(c *cache.Cache[[]Track]) Option {
	return func(g *Generator) {
		if c != nil {
			g.cache = c
		}
	}
}

// WithRanker sets the ranking strategy. Defaults to PopularityRanker.
func WithRanker(r Ranker) Option {
	return func(g *Generator) {
		if r != nil {
			g.ranker = r
		}
	}
}

// WithSimilarArtists adds a secondary source for artist discovery in GenerateMore.
func WithSimilarArtists(s SimilarArtistSource) Option {
	return func(g *Generator) {
		g.similar = s
	}
}

// WithConcurrency sets the maximum number of concurrent catalog calls per branch.
func WithConcurrency(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.concurrency = n
		}
	}
}

// WithRand sets the randomness source for offsets and shuffling.
func WithRand(r *rand.Rand) Option {
	return func(g *Generator) {
		if r != nil {
			g.rng = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGenerator creates a Generator reading from catalog.
func NewGenerator(catalog Catalog, opts ...Option) *Generator {
	g := &Generator{
		catalog:     catalog,
		ranker:      PopularityRanker{},
		concurrency: DefaultConcurrency,
		logger:      zap.NewNop(),
		rng:         rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.cache == nil {
		g.cache = cache.New[[]Track]()
	}
	return g
}

// Generate returns up to MaxPlaylistSize unique tracks matching prefs, ranked,
// with no ID from excludeIDs.
func (g *Generator) Generate(ctx context.Context, prefs Preferences, excludeIDs []string) ([]Track, error) {
	market := g.market(ctx)

	var artistTracks, genreTracks []Track
	var eg errgroup.Group
	if len(prefs.Artists) > 0 {
		eg.Go(func() error {
			artistTracks = g.artistBranch(ctx, prefs.Artists, market)
			return nil
		})
	}
	if len(prefs.Genres) > 0 {
		eg.Go(func() error {
			genreTracks = g.genreBranch(ctx, prefs.Genres)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := slices.Concat(artistTracks, genreTracks)
	if len(candidates) == 0 {
		g.logger.Debug("no candidates from filters, using fallback query")
		fallback, err := g.catalog.SearchTracks(ctx, FallbackQuery, genreSearchLimit, 0)
		if err != nil {
			return nil, fmt.Errorf("%w: fallback search: %w", ErrGeneration, err)
		}
		candidates = fallback
	}

	unique := applyFilters(candidates, prefs, excludeIDs)

	ranked, err := g.ranker.Rank(ctx, unique, prefs.AudioFeatures)
	if err != nil {
		g.logger.Warn("ranker failed, sorting by popularity", zap.Error(err))
		ranked = SortByPopularity(unique)
	}

	if len(ranked) > MaxPlaylistSize {
		ranked = ranked[:MaxPlaylistSize]
	}

	g.logger.Info("generated playlist",
		zap.Int("candidates", len(candidates)),
		zap.Int("tracks", len(ranked)),
		zap.String("market", market),
	)
	return ranked, nil
}

// Refresh regenerates while excluding the tracks currently shown, so the
// result is disjoint from them when the catalog allows.
func (g *Generator) Refresh(ctx context.Context, prefs Preferences, current []Track) ([]Track, error) {
	ids := make([]string, len(current))
	for i, t := range current {
		ids[i] = t.ID
	}
	return g.Generate(ctx, prefs, ids)
}

// GenerateMore returns up to count fresh tracks for extending a playlist,
// discovered through related artists and randomized search pages.
func (g *Generator) GenerateMore(ctx context.Context, prefs Preferences, excludeIDs []string, count int) ([]Track, error) {
	if count <= 0 {
		count = DefaultMoreCount
	}
	market := g.market(ctx)

	artistOffsets := make([]int, len(prefs.Artists))
	for i := range artistOffsets {
		artistOffsets[i] = g.intN(artistOffsetRange)
	}
	genreOffset := g.intN(genreOffsetRange)

	artistResults := make([][]Track, len(prefs.Artists))
	genreResults := make([][]Track, len(prefs.Genres))

	eg := g.group()
	for i, a := range prefs.Artists {
		eg.Go(func() error {
			artistResults[i] = g.moreForArtist(ctx, a, market, artistOffsets[i])
			return nil
		})
	}
	for i, genre := range prefs.Genres {
		eg.Go(func() error {
			genreResults[i] = g.searchGenre(ctx, genre, moreSearchLimit, genreOffset)
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	candidates := slices.Concat(slices.Concat(artistResults...), slices.Concat(genreResults...))
	unique := applyFilters(candidates, prefs, excludeIDs)

	g.shuffle(unique)
	if len(unique) > count {
		unique = unique[:count]
	}

	g.logger.Info("generated more tracks",
		zap.Int("candidates", len(candidates)),
		zap.Int("tracks", len(unique)),
	)
	return unique, nil
}

func (g *Generator) market(ctx context.Context) string {
	market, err := g.catalog.Market(ctx)
	if err != nil || market == "" {
		if err != nil {
			g.logger.Debug("market lookup failed, using default", zap.Error(err))
		}
		return DefaultMarket
	}
	return market
}

// artistBranch fetches top tracks for every artist. Results are cached under
// the sorted artist-ID set; a failing artist contributes nothing.
func (g *Generator) artistBranch(ctx context.Context, artists []Artist, market string) []Track {
	ids := make([]string, len(artists))
	for i, a := range artists {
		ids[i] = a.ID
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	key := cache.Key("artists", strings.Join(sorted, ","), market)

	if tracks, ok := g.cache.Get(key); ok {
		return tracks
	}

	results := make([][]Track, len(ids))
	failed := make([]bool, len(ids))

	eg := g.group()
	for i, id := range ids {
		eg.Go(func() error {
			tracks, err := g.catalog.ArtistTopTracks(ctx, id, market)
			if err != nil {
				g.logger.Warn("artist top tracks failed", zap.String("artist", id), zap.Error(err))
				failed[i] = true
				return nil
			}
			results[i] = tracks
			return nil
		})
	}
	_ = eg.Wait()

	tracks := slices.Concat(results...)
	if !slices.Contains(failed, true) {
		g.cache.Set(key, tracks)
	}
	return tracks
}

// genreBranch searches every genre concurrently, keeping genre order.
func (g *Generator) genreBranch(ctx context.Context, genres []string) []Track {
	results := make([][]Track, len(genres))

	eg := g.group()
	for i, genre := range genres {
		eg.Go(func() error {
			key := cache.Key("genre", genre)
			if tracks, ok := g.cache.Get(key); ok {
				results[i] = tracks
				return nil
			}
			tracks := g.searchGenre(ctx, genre, genreSearchLimit, 0)
			if len(tracks) > 0 {
				g.cache.Set(key, tracks)
			}
			results[i] = tracks
			return nil
		})
	}
	_ = eg.Wait()

	return slices.Concat(results...)
}

// searchGenre runs a genre-scoped search, falling back to a keyword search
// when the scoped one fails or finds nothing.
func (g *Generator) searchGenre(ctx context.Context, genre string, limit, offset int) []Track {
	tracks, err := g.catalog.SearchTracks(ctx, fmt.Sprintf("genre:%q", genre), limit, offset)
	if err != nil {
		g.logger.Warn("genre search failed", zap.String("genre", genre), zap.Error(err))
	}
	if len(tracks) > 0 {
		return tracks
	}

	tracks, err = g.catalog.SearchTracks(ctx, genre, limit, offset)
	if err != nil {
		g.logger.Warn("keyword search failed", zap.String("genre", genre), zap.Error(err))
		return nil
	}
	return tracks
}

// moreForArtist discovers tracks beyond an artist's own top tracks: related
// artists first, then similar artists, then a paged search on the name.
func (g *Generator) moreForArtist(ctx context.Context, artist Artist, market string, offset int) []Track {
	if tracks := g.relatedTopTracks(ctx, artist, market); len(tracks) > 0 {
		return tracks
	}
	if tracks := g.similarTracks(ctx, artist, offset); len(tracks) > 0 {
		return tracks
	}

	tracks, err := g.catalog.SearchTracks(ctx, fmt.Sprintf("artist:%q", artist.Name), moreSearchLimit, offset)
	if err != nil {
		g.logger.Warn("artist search failed", zap.String("artist", artist.Name), zap.Error(err))
		return nil
	}
	return tracks
}

func (g *Generator) relatedTopTracks(ctx context.Context, artist Artist, market string) []Track {
	related, err := g.catalog.RelatedArtists(ctx, artist.ID)
	if err != nil {
		g.logger.Debug("related artists unavailable", zap.String("artist", artist.ID), zap.Error(err))
		return nil
	}
	if len(related) > relatedPerArtist {
		related = related[:relatedPerArtist]
	}

	var out []Track
	for _, r := range related {
		tracks, err := g.catalog.ArtistTopTracks(ctx, r.ID, market)
		if err != nil {
			g.logger.Debug("related artist top tracks failed", zap.String("artist", r.ID), zap.Error(err))
			continue
		}
		out = append(out, tracks...)
	}
	return out
}

func (g *Generator) similarTracks(ctx context.Context, artist Artist, offset int) []Track {
	if g.similar == nil || artist.Name == "" {
		return nil
	}

	names, err := g.similar.SimilarArtists(ctx, artist.Name, similarPerArtist)
	if err != nil {
		g.logger.Debug("similar artists unavailable", zap.String("artist", artist.Name), zap.Error(err))
		return nil
	}

	var out []Track
	for _, name := range names {
		tracks, err := g.catalog.SearchTracks(ctx, fmt.Sprintf("artist:%q", name), similarSearchLimit, offset)
		if err != nil {
			g.logger.Debug("similar artist search failed", zap.String("artist", name), zap.Error(err))
			continue
		}
		out = append(out, tracks...)
	}
	return out
}

func (g *Generator) group() *errgroup.Group {
	eg := new(errgroup.Group)
	eg.SetLimit(g.concurrency)
	return eg
}

func (g *Generator) intN(n int) int {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.rng.IntN(n)
}

func (g *Generator) shuffle(tracks []Track) {
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	g.rng.Shuffle(len(tracks), func(i, j int) {
		tracks[i], tracks[j] = tracks[j], tracks[i]
	})
}
