package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/jfmyers9/scrobbledb/internal/metrics"
)

var _ ingest.Sink = (*Store)(nil)

// UserStats summarizes what is stored for one user.
type UserStats struct {
	User   string
	Count  int
	Oldest int64
	Newest int64
}

// InsertScrobbles stores a batch of enriched events. Each row is inserted
// on its own so a failing row does not block the rest. Rows that already
// exist are counted as duplicates; other row failures are logged and
// counted as failed. The returned error is reserved for failures of the
// batch as a whole.
func (s *Store) InsertScrobbles(ctx context.Context, events []ingest.EnrichedEvent) (ingest.InsertResult, error) {
	var res ingest.InsertResult
	if len(events) == 0 {
		return res, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO scrobbles (
			username, artist, artist_mbid, album, album_mbid, track, track_mbid, url,
			uts, artist_country, artist_tags, album_year
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return res, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, ev := range events {
		if ev.Timestamp == nil {
			res.Failed++
			s.logger.Warn().Str("artist", ev.Artist).Str("track", ev.Track).Msg("Skipping scrobble without timestamp")
			continue
		}

		tags := ev.ArtistTags
		if tags == nil {
			tags = []string{}
		}
		tagsJSON, err := json.Marshal(tags)
		if err != nil {
			res.Failed++
			s.logger.Warn().Err(err).Str("artist", ev.Artist).Msg("Failed to encode tags")
			continue
		}

		var year sql.NullInt64
		if ev.AlbumYear != nil {
			year = sql.NullInt64{Int64: int64(*ev.AlbumYear), Valid: true}
		}

		_, err = stmt.ExecContext(ctx,
			ev.User, ev.Artist, ev.ArtistMBID, ev.Album, ev.AlbumMBID, ev.Track, ev.TrackMBID, ev.URL,
			*ev.Timestamp, ev.ArtistCountry, string(tagsJSON), year,
		)
		switch {
		case err == nil:
			res.Inserted++
		case IsUniqueViolation(err):
			res.Duplicates++
		default:
			res.Failed++
			s.logger.Warn().Err(err).
				Str("user", ev.User).
				Str("artist", ev.Artist).
				Str("track", ev.Track).
				Int64("uts", *ev.Timestamp).
				Msg("Failed to insert scrobble")
		}
	}

	if err := tx.Commit(); err != nil {
		return ingest.InsertResult{Failed: len(events)}, fmt.Errorf("failed to commit transaction: %w", err)
	}

	metrics.ScrobblesWritten.WithLabelValues("inserted").Add(float64(res.Inserted))
	metrics.ScrobblesWritten.WithLabelValues("duplicate").Add(float64(res.Duplicates))
	metrics.ScrobblesWritten.WithLabelValues("failed").Add(float64(res.Failed))

	return res, nil
}

// Newest returns the largest stored timestamp for user, or 0 when the
// user has no scrobbles.
func (s *Store) Newest(ctx context.Context, user string) (int64, error) {
	var uts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(uts) FROM scrobbles WHERE username = ?", user,
	).Scan(&uts)
	if err != nil {
		return 0, fmt.Errorf("failed to query newest scrobble: %w", err)
	}
	return uts.Int64, nil
}

// OldestAfter returns the smallest stored timestamp for user that is
// strictly greater than floor, or 0 when there is none.
func (s *Store) OldestAfter(ctx context.Context, user string, floor int64) (int64, error) {
	var uts sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MIN(uts) FROM scrobbles WHERE username = ? AND uts > ?", user, floor,
	).Scan(&uts)
	if err != nil {
		return 0, fmt.Errorf("failed to query oldest scrobble: %w", err)
	}
	return uts.Int64, nil
}

// ForwardFloor returns the forward floor recorded for user, or 0 when
// no forward run has completed yet.
func (s *Store) ForwardFloor(ctx context.Context, user string) (int64, error) {
	var floor int64
	err := s.db.QueryRowContext(ctx,
		"SELECT forward_floor FROM cursors WHERE username = ?", user,
	).Scan(&floor)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to query forward floor: %w", err)
	}
	return floor, nil
}

// SetForwardFloor records uts as user's forward floor. A lower value than
// the one already recorded is ignored.
func (s *Store) SetForwardFloor(ctx context.Context, user string, uts int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (username, forward_floor) VALUES (?, ?)
		ON CONFLICT (username) DO UPDATE SET forward_floor = MAX(forward_floor, excluded.forward_floor)
	`, user, uts)
	if err != nil {
		return fmt.Errorf("failed to record forward floor: %w", err)
	}
	return nil
}

// Stats returns the scrobble count and time range stored for user.
func (s *Store) Stats(ctx context.Context, user string) (UserStats, error) {
	stats := UserStats{User: user}
	var oldest, newest sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), MIN(uts), MAX(uts) FROM scrobbles WHERE username = ?", user,
	).Scan(&stats.Count, &oldest, &newest)
	if err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.Oldest = oldest.Int64
	stats.Newest = newest.Int64
	return stats, nil
}

// Users returns every user with at least one stored scrobble.
func (s *Store) Users(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT username FROM scrobbles ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Count returns the total number of stored scrobbles.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM scrobbles").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count scrobbles: %w", err)
	}
	return count, nil
}

// Scrobbles returns every stored scrobble of user, oldest first.
func (s *Store) Scrobbles(ctx context.Context, user string) ([]ingest.EnrichedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, artist, artist_mbid, album, album_mbid, track, track_mbid, url,
			uts, artist_country, artist_tags, album_year
		FROM scrobbles
		WHERE username = ?
		ORDER BY uts ASC, id ASC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("failed to query scrobbles: %w", err)
	}
	defer rows.Close()

	var out []ingest.EnrichedEvent
	for rows.Next() {
		var (
			ev   ingest.EnrichedEvent
			uts  int64
			tags string
			year sql.NullInt64
		)
		err := rows.Scan(
			&ev.User, &ev.Artist, &ev.ArtistMBID, &ev.Album, &ev.AlbumMBID, &ev.Track, &ev.TrackMBID, &ev.URL,
			&uts, &ev.ArtistCountry, &tags, &year,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan scrobble: %w", err)
		}

		ev.Timestamp = &uts
		if err := json.Unmarshal([]byte(tags), &ev.ArtistTags); err != nil {
			return nil, fmt.Errorf("failed to decode tags for %q: %w", ev.Artist, err)
		}
		if year.Valid {
			y := int(year.Int64)
			ev.AlbumYear = &y
		}

		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scrobbles: %w", err)
	}

	return out, nil
}
