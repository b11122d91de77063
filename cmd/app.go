package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jfmyers9/scrobbledb/internal/cache"
	"github.com/jfmyers9/scrobbledb/internal/config"
	"github.com/jfmyers9/scrobbledb/internal/enrich"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/jfmyers9/scrobbledb/internal/store"
	"github.com/jfmyers9/scrobbledb/pkg/lastfm"
	"github.com/jfmyers9/scrobbledb/pkg/musicbrainz"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app is the wired pipeline shared by the sync, daemon and serve commands.
type app struct {
	cfg      *config.Config
	store    *store.Store
	redis    *redis.Client
	pipeline *ingest.Pipeline
	logger   zerolog.Logger
}

// loadConfig loads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newApp opens the store and builds the pipeline. One limiter is created
// here and shared by every run the process makes.
func newApp(ctx context.Context, cfg *config.Config, dir ingest.Direction, logger zerolog.Logger) (*app, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	st, err := store.Open(cfg.DatabasePath(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	a := &app{cfg: cfg, store: st, logger: logger}

	lastfmClient, err := lastfm.NewClient(lastfm.Config{
		APIKey:  cfg.LastFM.APIKey,
		BaseURL: cfg.LastFM.BaseURL,
		Logger:  debugfLogger{logger: logger.With().Str("component", "lastfm").Logger()},
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create Last.fm client: %w", err)
	}

	mbClient, err := musicbrainz.NewClient(musicbrainz.Config{
		UserAgent: cfg.MusicBrainz.UserAgent,
		BaseURL:   cfg.MusicBrainz.BaseURL,
		Logger:    debugfLogger{logger: logger.With().Str("component", "musicbrainz").Logger()},
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create MusicBrainz client: %w", err)
	}

	var (
		artists enrich.ArtistCache = st
		albums  enrich.AlbumCache  = st
	)
	if cfg.Cache.Backend == config.CacheRedis {
		a.redis = redis.NewClient(&redis.Options{
			Addr: cfg.Redis.Addr,
			DB:   cfg.Redis.DB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}

		rc := cache.NewRedis(a.redis, cfg.Redis.Prefix, logger)
		artists, albums = rc, rc
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("Using Redis metadata cache")
	}

	enricher := enrich.New(
		enrich.NewBreakerProvider(mbClient, logger),
		artists,
		albums,
		enrich.NewLimiter(cfg.MusicBrainz.Interval),
		logger,
	)

	a.pipeline = ingest.New(
		ingest.Config{PageSize: cfg.PageSize, Direction: dir},
		ingest.NewLastFM(lastfmClient.User()),
		st,
		enricher,
		logger,
	)

	return a, nil
}

// Close releases the store and the Redis connection.
func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to close redis client")
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to close store")
	}
}
