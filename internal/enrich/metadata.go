// Package enrich resolves artist and album metadata for scrobbles,
// consulting a persistent cache first and falling back to rate-limited,
// strictly sequential MusicBrainz lookups.
package enrich

import (
	"context"
	"strconv"
	"strings"

	"github.com/jfmyers9/scrobbledb/pkg/musicbrainz"
)

const (
	// UnknownCountry is stored when no country could be determined.
	UnknownCountry = "Unknown"

	// MinTagCount is the lowest vote count a MusicBrainz tag needs to be kept.
	MinTagCount = 2

	countryAreaType = "Country"
	compilationType = "Compilation"
)

// ArtistMetadata is the cached origin and genre information of an artist,
// keyed by the exact artist name as Last.fm reports it.
type ArtistMetadata struct {
	Artist  string   `json:"artist"`
	Country string   `json:"country"`
	Tags    []string `json:"tags"`
}

// AlbumMetadata is the cached release year of an album, keyed by the
// album's MusicBrainz release id. Year is nil for compilations and
// releases without a usable first-release date.
type AlbumMetadata struct {
	Album string `json:"album"`
	Year  *int   `json:"year,omitempty"`
}

// ArtistCache stores ArtistMetadata. Implementations must absorb
// duplicate-key conflicts on insert.
type ArtistCache interface {
	FindArtists(ctx context.Context, names []string) (map[string]ArtistMetadata, error)
	InsertArtists(ctx context.Context, artists []ArtistMetadata) error
}

// AlbumCache stores AlbumMetadata. Implementations must absorb
// duplicate-key conflicts on insert.
type AlbumCache interface {
	FindAlbums(ctx context.Context, ids []string) (map[string]AlbumMetadata, error)
	InsertAlbums(ctx context.Context, albums []AlbumMetadata) error
}

// ResolveArtist picks the best artist candidate from a search result and
// derives its country and tags. The country comes from the candidate's
// area when that is a country, otherwise from its begin area, otherwise
// UnknownCountry.
func ResolveArtist(name string, res *musicbrainz.ArtistSearch) ArtistMetadata {
	md := ArtistMetadata{
		Artist:  name,
		Country: UnknownCountry,
		Tags:    []string{},
	}

	if res == nil || len(res.Artists) == 0 {
		return md
	}
	candidate := res.Artists[0]

	switch {
	case candidate.Area != nil && candidate.Area.Type == countryAreaType:
		md.Country = candidate.Area.Name
	case candidate.BeginArea != nil && candidate.BeginArea.Type == countryAreaType:
		md.Country = candidate.BeginArea.Name
	}

	for _, tag := range candidate.Tags {
		if tag.Count >= MinTagCount {
			md.Tags = append(md.Tags, tag.Name)
		}
	}

	return md
}

// ResolveAlbum picks the first release group and takes the year of its
// first release, unless it is a compilation.
func ResolveAlbum(id string, res *musicbrainz.ReleaseGroupList) AlbumMetadata {
	md := AlbumMetadata{Album: id}

	if res == nil || len(res.ReleaseGroups) == 0 {
		return md
	}
	group := res.ReleaseGroups[0]

	if isCompilation(group) {
		return md
	}
	if year, ok := parseYear(group.FirstReleaseDate); ok {
		md.Year = &year
	}

	return md
}

func isCompilation(group musicbrainz.ReleaseGroup) bool {
	if group.PrimaryType == compilationType {
		return true
	}
	for _, t := range group.SecondaryTypes {
		if t == compilationType {
			return true
		}
	}
	return false
}

// parseYear extracts the year from a partial ISO date ("1997", "1997-05",
// "1997-05-21").
func parseYear(date string) (int, bool) {
	yearPart, _, _ := strings.Cut(date, "-")
	if len(yearPart) != 4 {
		return 0, false
	}
	year, err := strconv.Atoi(yearPart)
	if err != nil {
		return 0, false
	}
	return year, true
}

// normalizeArtist fills the sentinels for fields a cache entry may lack.
func normalizeArtist(md ArtistMetadata) ArtistMetadata {
	if md.Country == "" {
		md.Country = UnknownCountry
	}
	if md.Tags == nil {
		md.Tags = []string{}
	}
	return md
}
