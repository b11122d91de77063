// Package store persists enriched scrobbles and the artist/album
// metadata cache in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Store is the SQLite-backed persistence sink and metadata cache.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

const schema = `
	CREATE TABLE IF NOT EXISTS scrobbles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		username TEXT NOT NULL,
		artist TEXT NOT NULL,
		artist_mbid TEXT NOT NULL DEFAULT '',
		album TEXT NOT NULL DEFAULT '',
		album_mbid TEXT NOT NULL DEFAULT '',
		track TEXT NOT NULL,
		track_mbid TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		uts INTEGER NOT NULL,
		artist_country TEXT NOT NULL,
		artist_tags TEXT NOT NULL DEFAULT '[]',
		album_year INTEGER,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE (username, artist, track, uts)
	);

	CREATE INDEX IF NOT EXISTS idx_scrobbles_user_uts ON scrobbles(username, uts);

	CREATE TABLE IF NOT EXISTS artist (
		artist TEXT PRIMARY KEY,
		country TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]'
	);

	CREATE TABLE IF NOT EXISTS album (
		album TEXT PRIMARY KEY,
		year INTEGER
	);

	CREATE TABLE IF NOT EXISTS cursors (
		username TEXT PRIMARY KEY,
		forward_floor INTEGER NOT NULL
	);

	-- album_year is NULL when no year was resolved; reports read it as 'Unknown'.
	CREATE VIEW IF NOT EXISTS scrobbles_report AS
		SELECT username, artist, album, track, uts, artist_country, artist_tags,
			COALESCE(CAST(album_year AS TEXT), 'Unknown') AS album_year
		FROM scrobbles;
`

// Open opens (or creates) the database at path. Use ":memory:" for tests.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One connection keeps ":memory:" databases consistent and serializes
	// writers from the daemon and the HTTP trigger.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA cache_size = -64000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
	}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// IsUniqueViolation reports whether err is a SQLite uniqueness or
// primary key conflict.
func IsUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	switch sqliteErr.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return true
	case sqlite3.SQLITE_CONSTRAINT:
		return strings.Contains(sqliteErr.Error(), "UNIQUE constraint failed")
	default:
		return false
	}
}

// placeholders returns "?, ?, ..." with n entries.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// maxInArgs bounds the number of bound variables per IN query.
const maxInArgs = 500

// chunks splits keys into slices of at most size entries.
func chunks(keys []string, size int) [][]string {
	var out [][]string
	for len(keys) > size {
		out = append(out, keys[:size])
		keys = keys[size:]
	}
	if len(keys) > 0 {
		out = append(out, keys)
	}
	return out
}
