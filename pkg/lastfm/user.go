package lastfm

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	json "github.com/goccy/go-json"
)

// UserService provides user-scoped read operations for the Last.fm API.
type UserService struct {
	client *Client
}

const (
	// MaxRecentTracksLimit is the largest page size user.getRecentTracks accepts.
	MaxRecentTracksLimit = 200
)

// RecentTracksParams selects a page of a user's listening history.
type RecentTracksParams struct {
	User  string // Required: Last.fm user name
	From  int64  // Optional: only scrobbles at or after this Unix time
	To    int64  // Optional: only scrobbles at or before this Unix time
	Limit int    // Optional: page size, 1..200 (defaults to 50 upstream)
	Page  int    // Optional: 1-based page number
}

// RecentTracks fetches one page of user.getRecentTracks.
//
// Tracks come back newest first. When no To bound is given the first
// entry may be the currently playing track, which has no Date.
//
// Example:
//
//	page, err := client.User().RecentTracks(ctx, lastfm.RecentTracksParams{
//	    User:  "rj",
//	    To:    1700000000,
//	    Limit: 200,
//	})
//	if err != nil {
//	    log.Printf("Failed to fetch recent tracks: %v", err)
//	}
//	for _, t := range page.Tracks {
//	    fmt.Println(t.Artist.Name, "-", t.Name)
//	}
func (s *UserService) RecentTracks(ctx context.Context, p RecentTracksParams) (*RecentTracks, error) {
	if p.User == "" {
		return nil, ErrMissingUser
	}

	params := url.Values{}
	params.Set("user", p.User)

	if p.From > 0 {
		params.Set("from", strconv.FormatInt(p.From, 10))
	}
	if p.To > 0 {
		params.Set("to", strconv.FormatInt(p.To, 10))
	}
	if p.Limit > 0 {
		limit := p.Limit
		if limit > MaxRecentTracksLimit {
			limit = MaxRecentTracksLimit
		}
		params.Set("limit", strconv.Itoa(limit))
	}
	if p.Page > 0 {
		params.Set("page", strconv.Itoa(p.Page))
	}

	body, err := s.client.call(ctx, "user.getrecenttracks", params)
	if err != nil {
		return nil, err
	}

	return unmarshalRecentTracks(body)
}

// unmarshalRecentTracks parses the JSON response from user.getRecentTracks.
func unmarshalRecentTracks(data []byte) (*RecentTracks, error) {
	var resp recentTracksResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	result := &RecentTracks{}
	if resp.RecentTracks == nil {
		return result, nil
	}

	result.Attr = resp.RecentTracks.Attr
	if resp.RecentTracks.Track != nil {
		result.HasTrackList = true
		result.Tracks = []RecentTrack(*resp.RecentTracks.Track)
	}

	return result, nil
}
