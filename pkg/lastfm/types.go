package lastfm

import (
	"bytes"
	"strconv"

	json "github.com/goccy/go-json"
)

// Entity is a named Last.fm object with an optional MusicBrainz id,
// as used for the artist and album of a recent track.
type Entity struct {
	MBID string `json:"mbid"`
	Name string `json:"#text"`
}

// Date is the play time of a recent track.
type Date struct {
	UTS  string `json:"uts"`  // Unix seconds, as a string
	Text string `json:"#text"` // Human readable form
}

// TrackAttr carries per-track flags.
type TrackAttr struct {
	NowPlaying string `json:"nowplaying"`
}

// RecentTrack is one entry of user.getRecentTracks.
type RecentTrack struct {
	Artist Entity     `json:"artist"`
	Album  Entity     `json:"album"`
	Name   string     `json:"name"`
	MBID   string     `json:"mbid"`
	URL    string     `json:"url"`
	Date   *Date      `json:"date,omitempty"`
	Attr   *TrackAttr `json:"@attr,omitempty"`
}

// Timestamp returns the play time in Unix seconds.
// The second return value is false for the currently playing track,
// which Last.fm sends without a date.
func (t RecentTrack) Timestamp() (int64, bool) {
	if t.Date == nil || t.Date.UTS == "" {
		return 0, false
	}
	uts, err := strconv.ParseInt(t.Date.UTS, 10, 64)
	if err != nil {
		return 0, false
	}
	return uts, true
}

// NowPlaying reports whether the track is flagged as currently playing.
func (t RecentTrack) NowPlaying() bool {
	return t.Attr != nil && t.Attr.NowPlaying == "true"
}

// PageAttr describes the page returned by a paginated call.
type PageAttr struct {
	User       string `json:"user"`
	Page       string `json:"page"`
	PerPage    string `json:"perPage"`
	TotalPages string `json:"totalPages"`
	Total      string `json:"total"`
}

// RecentTracks is one page of a user's listening history.
type RecentTracks struct {
	// Tracks in the order Last.fm returned them (newest first).
	Tracks []RecentTrack
	// HasTrackList is false when the response had no track list at all,
	// which Last.fm does for some failures instead of an error envelope.
	HasTrackList bool
	Attr         PageAttr
}

// trackList decodes the "track" field, which Last.fm sends as a single
// object instead of an array when the page has exactly one entry.
type trackList []RecentTrack

func (l *trackList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var single RecentTrack
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		*l = trackList{single}
		return nil
	}
	var many []RecentTrack
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// recentTracksResponse is the JSON body of user.getRecentTracks.
type recentTracksResponse struct {
	RecentTracks *struct {
		Track *trackList `json:"track"`
		Attr  PageAttr   `json:"@attr"`
	} `json:"recenttracks"`
}
