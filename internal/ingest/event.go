// Package ingest pulls a user's listening history from Last.fm in
// batches, groups and enriches each batch, and hands it to a sink.
package ingest

import "strconv"

// UndefinedAlbum is the grouping key for events whose album has no
// MusicBrainz id. Distinct albums without an id share this bucket.
const UndefinedAlbum = "Undefined"

// UnknownYear is how a missing album year is rendered for reporting.
const UnknownYear = "Unknown"

// Event is one scrobble as fetched from upstream.
type Event struct {
	User       string
	Artist     string
	ArtistMBID string
	Album      string
	AlbumMBID  string
	Track      string
	TrackMBID  string
	URL        string

	// Timestamp is the play time in Unix seconds. Nil marks the
	// currently playing track.
	Timestamp *int64
}

// AlbumKey returns the key the event is grouped and enriched under.
func (e Event) AlbumKey() string {
	if e.AlbumMBID == "" {
		return UndefinedAlbum
	}
	return e.AlbumMBID
}

// EnrichedEvent is an Event with artist and album metadata merged in.
type EnrichedEvent struct {
	Event

	ArtistCountry string
	ArtistTags    []string
	AlbumYear     *int
}

// AlbumYearLabel returns the album year, or UnknownYear when none was
// resolved. Stores keep a missing year as NULL; anything reporting on
// stored scrobbles must render it with this label (the SQLite store's
// scrobbles_report view does).
func (e EnrichedEvent) AlbumYearLabel() string {
	if e.AlbumYear == nil {
		return UnknownYear
	}
	return strconv.Itoa(*e.AlbumYear)
}

// InsertResult tallies the outcome of persisting one batch.
type InsertResult struct {
	Inserted   int
	Duplicates int
	Failed     int
}
