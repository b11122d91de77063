// Package cache provides a Redis-backed metadata cache for deployments
// that share enrichment results across several ingest processes.
package cache

import (
	"context"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/enrich"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultPrefix namespaces every key written by Redis.
const DefaultPrefix = "scrobbledb:"

var (
	_ enrich.ArtistCache = (*Redis)(nil)
	_ enrich.AlbumCache  = (*Redis)(nil)
)

// Redis stores artist and album metadata as JSON strings. Entries never
// expire and are written with SETNX, so the first writer wins when two
// processes resolve the same key.
type Redis struct {
	client redis.Cmdable
	prefix string
	logger zerolog.Logger
}

// NewRedis creates a Redis cache on top of an existing client.
func NewRedis(client redis.Cmdable, prefix string, logger zerolog.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Redis{
		client: client,
		prefix: prefix,
		logger: logger.With().Str("component", "redis_cache").Logger(),
	}
}

func (r *Redis) artistKey(name string) string { return r.prefix + "artist:" + name }

func (r *Redis) albumKey(id string) string { return r.prefix + "album:" + id }

// FindArtists returns the cached metadata for each known name.
func (r *Redis) FindArtists(ctx context.Context, names []string) (map[string]enrich.ArtistMetadata, error) {
	return find[enrich.ArtistMetadata](ctx, r, names, r.artistKey)
}

// InsertArtists caches artist metadata, keeping existing entries.
func (r *Redis) InsertArtists(ctx context.Context, artists []enrich.ArtistMetadata) error {
	return insert(ctx, r, artists, func(a enrich.ArtistMetadata) string { return r.artistKey(a.Artist) })
}

// FindAlbums returns the cached metadata for each known album id.
func (r *Redis) FindAlbums(ctx context.Context, ids []string) (map[string]enrich.AlbumMetadata, error) {
	return find[enrich.AlbumMetadata](ctx, r, ids, r.albumKey)
}

// InsertAlbums caches album metadata, keeping existing entries.
func (r *Redis) InsertAlbums(ctx context.Context, albums []enrich.AlbumMetadata) error {
	return insert(ctx, r, albums, func(a enrich.AlbumMetadata) string { return r.albumKey(a.Album) })
}

func find[T any](ctx context.Context, r *Redis, keys []string, keyFn func(string) string) (map[string]T, error) {
	out := make(map[string]T, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	redisKeys := make([]string, len(keys))
	for i, k := range keys {
		redisKeys[i] = keyFn(k)
	}

	vals, err := r.client.MGet(ctx, redisKeys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var md T
		if err := json.Unmarshal([]byte(s), &md); err != nil {
			return nil, fmt.Errorf("failed to decode cache entry %s: %w", redisKeys[i], err)
		}
		out[keys[i]] = md
	}

	return out, nil
}

func insert[T any](ctx context.Context, r *Redis, values []T, keyFn func(T) string) error {
	if len(values) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	cmds := make([]*redis.BoolCmd, 0, len(values))
	for _, v := range values {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode cache entry: %w", err)
		}
		cmds = append(cmds, pipe.SetNX(ctx, keyFn(v), data, 0))
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis pipeline: %w", err)
	}

	existing := 0
	for _, cmd := range cmds {
		if ok, err := cmd.Result(); err == nil && !ok {
			existing++
		}
	}
	if existing > 0 {
		r.logger.Debug().Int("existing", existing).Msg("Ignored existing cache entries")
	}

	return nil
}
