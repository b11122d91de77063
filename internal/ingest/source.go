package ingest

import (
	"context"

	"github.com/jfmyers9/scrobbledb/internal/metrics"
	"github.com/jfmyers9/scrobbledb/pkg/lastfm"
)

// Request bounds one page of a user's history. Zero bounds are omitted.
type Request struct {
	User  string
	From  int64 // inclusive lower bound in Unix seconds
	To    int64 // inclusive upper bound in Unix seconds
	Limit int
}

// Page is one batch of upstream events.
type Page struct {
	Events []Event

	// HasTrackList is false when upstream sent no track list at all.
	HasTrackList bool
}

// Source fetches pages of listening history.
type Source interface {
	Fetch(ctx context.Context, req Request) (Page, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context, req Request) (Page, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context, req Request) (Page, error) {
	return f(ctx, req)
}

// RecentTracksFetcher is the part of the Last.fm client LastFM needs.
// *lastfm.UserService satisfies it.
type RecentTracksFetcher interface {
	RecentTracks(ctx context.Context, p lastfm.RecentTracksParams) (*lastfm.RecentTracks, error)
}

// LastFM is a Source backed by user.getRecentTracks.
type LastFM struct {
	fetcher RecentTracksFetcher
}

// NewLastFM creates a Last.fm source.
func NewLastFM(fetcher RecentTracksFetcher) *LastFM {
	return &LastFM{fetcher: fetcher}
}

// Fetch requests the newest page inside the bounds.
func (s *LastFM) Fetch(ctx context.Context, req Request) (Page, error) {
	res, err := s.fetcher.RecentTracks(ctx, lastfm.RecentTracksParams{
		User:  req.User,
		From:  req.From,
		To:    req.To,
		Limit: req.Limit,
	})
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("error").Inc()
		return Page{}, err
	}

	page := Page{
		HasTrackList: res.HasTrackList,
		Events:       make([]Event, 0, len(res.Tracks)),
	}
	for _, t := range res.Tracks {
		page.Events = append(page.Events, eventFromTrack(req.User, t))
	}

	switch {
	case !res.HasTrackList:
		metrics.UpstreamRequests.WithLabelValues("missing_tracks").Inc()
	case len(page.Events) == 0:
		metrics.UpstreamRequests.WithLabelValues("empty").Inc()
	default:
		metrics.UpstreamRequests.WithLabelValues("ok").Inc()
	}

	return page, nil
}

func eventFromTrack(user string, t lastfm.RecentTrack) Event {
	ev := Event{
		User:       user,
		Artist:     t.Artist.Name,
		ArtistMBID: t.Artist.MBID,
		Album:      t.Album.Name,
		AlbumMBID:  t.Album.MBID,
		Track:      t.Name,
		TrackMBID:  t.MBID,
		URL:        t.URL,
	}
	if uts, ok := t.Timestamp(); ok {
		ev.Timestamp = &uts
	}
	return ev
}
