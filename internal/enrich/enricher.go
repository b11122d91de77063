package enrich

import (
	"context"
	"errors"
	"fmt"

	"github.com/jfmyers9/scrobbledb/internal/metrics"
	"github.com/jfmyers9/scrobbledb/pkg/musicbrainz"
	"github.com/rs/zerolog"
)

// ErrMalformedResponse marks a provider payload that could not be parsed.
// It aborts the whole enrichment call; no partial results are returned.
var ErrMalformedResponse = errors.New("enrich: malformed provider response")

// Enricher resolves metadata for batches of unique keys. Lookups for
// cache misses run one at a time, each gated by the shared Limiter.
type Enricher struct {
	provider Provider
	artists  ArtistCache
	albums   AlbumCache
	limiter  Limiter
	logger   zerolog.Logger
}

// New creates an Enricher.
func New(provider Provider, artists ArtistCache, albums AlbumCache, limiter Limiter, logger zerolog.Logger) *Enricher {
	return &Enricher{
		provider: provider,
		artists:  artists,
		albums:   albums,
		limiter:  limiter,
		logger:   logger.With().Str("component", "enricher").Logger(),
	}
}

// Artists resolves country and tags for each artist name. Every name is
// present in the result.
func (e *Enricher) Artists(ctx context.Context, names []string) (map[string]ArtistMetadata, error) {
	return resolve(ctx, e, lookup[ArtistMetadata]{
		kind: "artist",
		find: e.artists.FindArtists,
		fromCache: func(md ArtistMetadata) ArtistMetadata {
			return normalizeArtist(md)
		},
		fetch: func(ctx context.Context, name string) (ArtistMetadata, bool, error) {
			res, err := e.provider.SearchArtists(ctx, name)
			if err != nil {
				return ArtistMetadata{}, false, err
			}
			return ResolveArtist(name, res), true, nil
		},
		save: e.artists.InsertArtists,
	}, names)
}

// Albums resolves the release year for each album id. Ids the provider
// does not know (404) are left out of the result and not cached.
func (e *Enricher) Albums(ctx context.Context, ids []string) (map[string]AlbumMetadata, error) {
	return resolve(ctx, e, lookup[AlbumMetadata]{
		kind: "album",
		find: e.albums.FindAlbums,
		fromCache: func(md AlbumMetadata) AlbumMetadata {
			return md
		},
		fetch: func(ctx context.Context, id string) (AlbumMetadata, bool, error) {
			res, err := e.provider.ReleaseGroupsByRelease(ctx, id)
			if errors.Is(err, musicbrainz.ErrNotFound) {
				e.logger.Info().Str("album", id).Msg("Album not found")
				return AlbumMetadata{}, false, nil
			}
			if err != nil {
				return AlbumMetadata{}, false, err
			}
			return ResolveAlbum(id, res), true, nil
		},
		save: e.albums.InsertAlbums,
	}, ids)
}

// lookup describes one enrichment channel.
type lookup[T any] struct {
	kind      string
	find      func(ctx context.Context, keys []string) (map[string]T, error)
	fromCache func(T) T
	fetch     func(ctx context.Context, key string) (T, bool, error)
	save      func(ctx context.Context, values []T) error
}

// resolve runs the cache-first, sequential, rate-limited lookup shared by
// both channels.
func resolve[T any](ctx context.Context, e *Enricher, l lookup[T], keys []string) (map[string]T, error) {
	result := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return result, nil
	}

	cached, err := l.find(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s cache: %w", l.kind, err)
	}

	var fetched []T
	hits := 0

	for _, key := range keys {
		if md, ok := cached[key]; ok {
			result[key] = l.fromCache(md)
			hits++
			metrics.EnrichCacheLookups.WithLabelValues(l.kind, "hit").Inc()
			continue
		}
		metrics.EnrichCacheLookups.WithLabelValues(l.kind, "miss").Inc()

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		md, found, err := l.fetch(ctx, key)
		if err != nil {
			metrics.EnrichExternalCalls.WithLabelValues(l.kind, "error").Inc()
			if errors.Is(err, musicbrainz.ErrMalformedResponse) {
				err = fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			return nil, fmt.Errorf("failed to look up %s %q: %w", l.kind, key, err)
		}
		if !found {
			metrics.EnrichExternalCalls.WithLabelValues(l.kind, "not_found").Inc()
			continue
		}
		metrics.EnrichExternalCalls.WithLabelValues(l.kind, "ok").Inc()

		result[key] = md
		fetched = append(fetched, md)
	}

	if len(fetched) > 0 {
		if err := l.save(ctx, fetched); err != nil {
			metrics.EnrichCacheWriteErrors.WithLabelValues(l.kind).Inc()
			e.logger.Warn().Err(err).Str("kind", l.kind).Msg("Failed to write metadata cache")
		}
	}

	e.logger.Info().
		Str("kind", l.kind).
		Int("requested", len(keys)).
		Int("from_provider", len(fetched)).
		Int("from_cache", hits).
		Msg("Resolved metadata")

	return result, nil
}
