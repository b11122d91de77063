package musicbrainz

import (
	"context"
	"net/url"
)

// SearchArtists runs a free-text artist search. Results are ordered by
// MusicBrainz relevance score, best match first.
func (c *Client) SearchArtists(ctx context.Context, name string) (*ArtistSearch, error) {
	query := url.Values{}
	query.Set("query", name)

	var res ArtistSearch
	if err := c.get(ctx, "artist", query, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReleaseGroupsByRelease browses the release groups that contain the
// release with the given MBID. Returns ErrNotFound when MusicBrainz does
// not know the release.
func (c *Client) ReleaseGroupsByRelease(ctx context.Context, releaseMBID string) (*ReleaseGroupList, error) {
	query := url.Values{}
	query.Set("release", releaseMBID)

	var res ReleaseGroupList
	if err := c.get(ctx, "release-group", query, &res); err != nil {
		return nil, err
	}
	return &res, nil
}
