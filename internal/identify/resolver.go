package identify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"dvrmanager/internal/config"
	"dvrmanager/internal/identify/tmdb"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
	"dvrmanager/internal/services"
	"dvrmanager/internal/stage"
	"dvrmanager/internal/textutil"
)

// Resolver is the workflow stage that attaches a MediaIdentity to stable
// recordings. It only mutates the recording it is handed; persisting the
// result is the workflow's job.
type Resolver struct {
	cfg    *config.Config
	logger *slog.Logger
	search *tmdbSearch
	cache  *IdentityCache
}

// NewResolver creates the resolver stage with a real TMDB client.
func NewResolver(cfg *config.Config, logger *slog.Logger, cache *IdentityCache) *Resolver {
	client, err := tmdb.New(cfg.Identity.TMDB.APIKey, cfg.Identity.TMDB.BaseURL, cfg.Identity.TMDB.Language)
	if err != nil {
		logger.Warn("tmdb client initialization failed", logging.Error(err))
		return NewResolverWithClient(cfg, logger, cache, nil)
	}
	return NewResolverWithClient(cfg, logger, cache, client)
}

// NewResolverWithClient creates the resolver with an injected TMDB searcher
// (used for testing).
func NewResolverWithClient(cfg *config.Config, logger *slog.Logger, cache *IdentityCache, searcher tmdb.Searcher) *Resolver {
	if cache == nil {
		cache = NewIdentityCache()
	}
	rateLimit := time.Duration(cfg.Identity.TMDB.RateLimitMs) * time.Millisecond
	return &Resolver{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "resolver"),
		search: newTMDBSearch(searcher, rateLimit),
		cache:  cache,
	}
}

// Prepare fingerprints the recording and verifies the source still exists.
func (r *Resolver) Prepare(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, r.logger)
	if _, err := os.Stat(rec.SourcePath); err != nil {
		return services.Wrap(services.ErrPermanent, "resolver", "stat source",
			"Recording disappeared before identification", err)
	}
	if rec.Fingerprint == "" {
		rec.Fingerprint = textutil.Fingerprint(rec.FileName)
	}
	logger.Info("starting identification",
		logging.String("file", rec.FileName),
		logging.String("fingerprint", rec.Fingerprint))
	return nil
}

// Execute resolves the recording's identity: local heuristics first, then a
// rate-limited TMDB lookup when local confidence is below the configured
// threshold. Resolved identities are cached by fingerprint.
func (r *Resolver) Execute(ctx context.Context, rec *queue.Recording) error {
	logger := logging.WithContext(ctx, r.logger)

	if rec.Fingerprint == "" {
		rec.Fingerprint = textutil.Fingerprint(rec.FileName)
	}

	if cached, ok := r.cache.Get(rec.Fingerprint); ok {
		logger.Info("identity cache hit", logging.String("identity", cached.Describe()))
		return r.attach(rec, cached)
	}

	local := ParseFilename(rec.FileName)
	if local.Confidence >= r.cfg.Identity.ConfidenceThreshold {
		logger.Info("resolved locally",
			logging.String("identity", local.Describe()),
			logging.Float64("confidence", local.Confidence))
		r.cache.Put(rec.Fingerprint, local)
		return r.attach(rec, local)
	}

	identity, err := r.resolveWithTMDB(ctx, logger, local)
	if err != nil {
		// A structured local parse is still acceptable when the lookup
		// infrastructure is the problem, not the name.
		if errors.Is(err, services.ErrTransient) && local.Confidence > r.cfg.Identity.MinConfidence {
			logger.Warn("tmdb lookup failed, using local parse",
				logging.Error(err),
				logging.Float64("confidence", local.Confidence))
			r.cache.Put(rec.Fingerprint, local)
			return r.attach(rec, local)
		}
		return err
	}

	logger.Info("resolved via tmdb",
		logging.String("identity", identity.Describe()),
		logging.Float64("confidence", identity.Confidence))
	r.cache.Put(rec.Fingerprint, identity)
	return r.attach(rec, identity)
}

// HealthCheck reports resolver readiness.
func (r *Resolver) HealthCheck(ctx context.Context) stage.Health {
	if r.search == nil || r.search.client == nil {
		return stage.Unhealthy("resolver", "tmdb client unavailable")
	}
	return stage.Healthy("resolver")
}

func (r *Resolver) attach(rec *queue.Recording, identity MediaIdentity) error {
	payload, err := identity.Marshal()
	if err != nil {
		return services.Wrap(services.ErrPermanent, "resolver", "marshal identity",
			"Failed to serialize resolved identity", err)
	}
	rec.IdentityJSON = payload
	rec.Confidence = identity.Confidence
	rec.IdentitySource = identity.Source
	return nil
}

func (r *Resolver) resolveWithTMDB(ctx context.Context, logger *slog.Logger, local MediaIdentity) (MediaIdentity, error) {
	if local.Title == "" {
		return MediaIdentity{}, services.Wrap(services.ErrUnresolvable, "resolver", "parse filename",
			"No usable title in recording filename", nil)
	}

	mode := searchModeTV
	if local.Movie {
		mode = searchModeMovie
	}
	opts := tmdb.SearchOptions{Year: local.Year}

	resp, err := r.search.search(ctx, local.Title, opts, mode)
	if err != nil {
		return MediaIdentity{}, services.Wrap(services.ErrTransient, "resolver", "tmdb search",
			fmt.Sprintf("TMDB lookup for %q failed", local.Title), err)
	}

	ranked := rankResults(local.Title, resp)
	if len(ranked) == 0 && opts.Year > 0 {
		// A recording's embedded year is often the broadcast year, not the
		// first-air-date year. Retry unfiltered before giving up.
		resp, err = r.search.search(ctx, local.Title, tmdb.SearchOptions{}, mode)
		if err != nil {
			return MediaIdentity{}, services.Wrap(services.ErrTransient, "resolver", "tmdb search",
				fmt.Sprintf("TMDB lookup for %q failed", local.Title), err)
		}
		ranked = rankResults(local.Title, resp)
	}
	if len(ranked) == 0 || !acceptable(local.Title, ranked[0]) {
		return MediaIdentity{}, services.Wrap(services.ErrUnresolvable, "resolver", "tmdb search",
			fmt.Sprintf("No TMDB match for %q", local.Title), nil)
	}

	best := ranked[0]
	identity := local
	identity.Title = titleCaser.String(pickTitle(best.result))
	identity.TMDBID = best.result.ID
	identity.Source = SourceTMDB
	identity.Confidence = 0.9
	if year := resultYear(best.result); len(year) >= 4 {
		if parsed, perr := time.Parse("2006-01-02", year); perr == nil {
			identity.Year = parsed.Year()
		}
	}
	if len(ranked) > 1 && best.score-ranked[1].score < 0.15 {
		runnerUp := pickTitle(ranked[1].result)
		identity.Ambiguity = fmt.Sprintf("chose %q (%.2f) over %q (%.2f)",
			identity.Title, best.score, runnerUp, ranked[1].score)
		identity.Confidence = 0.75
		logger.Warn("ambiguous tmdb match", logging.String("detail", identity.Ambiguity))
	}

	if identity.Episodic() && identity.Season > 0 && identity.EpisodeTitle == "" {
		r.fillEpisodeTitle(ctx, logger, &identity)
	}
	return identity, nil
}

// fillEpisodeTitle is best-effort: a missing episode title degrades the
// destination filename, not the placement.
func (r *Resolver) fillEpisodeTitle(ctx context.Context, logger *slog.Logger, identity *MediaIdentity) {
	details, err := r.search.client.GetSeasonDetails(ctx, identity.TMDBID, identity.Season)
	if err != nil {
		logger.Warn("season details lookup failed", logging.Error(err))
		return
	}
	for _, episode := range details.Episodes {
		if episode.EpisodeNumber == identity.Episode {
			identity.EpisodeTitle = strings.TrimSpace(episode.Name)
			return
		}
	}
}
