package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/enrich"
)

var (
	_ enrich.ArtistCache = (*Store)(nil)
	_ enrich.AlbumCache  = (*Store)(nil)
)

// FindArtists returns the cached metadata for each known name.
func (s *Store) FindArtists(ctx context.Context, names []string) (map[string]enrich.ArtistMetadata, error) {
	out := make(map[string]enrich.ArtistMetadata, len(names))

	for _, chunk := range chunks(names, maxInArgs) {
		args := make([]any, len(chunk))
		for i, n := range chunk {
			args[i] = n
		}

		rows, err := s.db.QueryContext(ctx,
			"SELECT artist, country, tags FROM artist WHERE artist IN ("+placeholders(len(chunk))+")",
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query artists: %w", err)
		}

		for rows.Next() {
			var md enrich.ArtistMetadata
			var tags string
			if err := rows.Scan(&md.Artist, &md.Country, &tags); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan artist: %w", err)
			}
			if err := json.Unmarshal([]byte(tags), &md.Tags); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to decode tags for %q: %w", md.Artist, err)
			}
			out[md.Artist] = md
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating artists: %w", err)
		}
	}

	return out, nil
}

// InsertArtists caches artist metadata. Names that are already cached
// keep their existing entry.
func (s *Store) InsertArtists(ctx context.Context, artists []enrich.ArtistMetadata) error {
	if len(artists) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(artists))
	for _, a := range artists {
		tags := a.Tags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags for %q: %w", a.Artist, err)
		}
		rows = append(rows, []any{a.Artist, a.Country, string(tagsJSON)})
	}

	return s.insertUnordered(ctx, "INSERT INTO artist (artist, country, tags) VALUES (?, ?, ?)", rows)
}

// FindAlbums returns the cached metadata for each known album id.
func (s *Store) FindAlbums(ctx context.Context, ids []string) (map[string]enrich.AlbumMetadata, error) {
	out := make(map[string]enrich.AlbumMetadata, len(ids))

	for _, chunk := range chunks(ids, maxInArgs) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(ctx,
			"SELECT album, year FROM album WHERE album IN ("+placeholders(len(chunk))+")",
			args...,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to query albums: %w", err)
		}

		for rows.Next() {
			var md enrich.AlbumMetadata
			var year sql.NullInt64
			if err := rows.Scan(&md.Album, &year); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan album: %w", err)
			}
			if year.Valid {
				y := int(year.Int64)
				md.Year = &y
			}
			out[md.Album] = md
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("error iterating albums: %w", err)
		}
	}

	return out, nil
}

// InsertAlbums caches album metadata. Ids that are already cached keep
// their existing entry.
func (s *Store) InsertAlbums(ctx context.Context, albums []enrich.AlbumMetadata) error {
	if len(albums) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(albums))
	for _, a := range albums {
		var year sql.NullInt64
		if a.Year != nil {
			year = sql.NullInt64{Int64: int64(*a.Year), Valid: true}
		}
		rows = append(rows, []any{a.Album, year})
	}

	return s.insertUnordered(ctx, "INSERT INTO album (album, year) VALUES (?, ?)", rows)
}

// insertUnordered executes query once per row in a single transaction.
// Unique violations are absorbed; other row errors are collected and
// returned together after every row was attempted.
func (s *Store) insertUnordered(ctx context.Context, query string, rows [][]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var errs []error
	duplicates := 0
	for _, args := range rows {
		_, err := stmt.ExecContext(ctx, args...)
		switch {
		case err == nil:
		case IsUniqueViolation(err):
			duplicates++
		default:
			errs = append(errs, fmt.Errorf("insert %v: %w", args[0], err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	if duplicates > 0 {
		s.logger.Debug().Int("duplicates", duplicates).Msg("Ignored existing cache entries")
	}

	return errors.Join(errs...)
}
