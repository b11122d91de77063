package ingest

import "github.com/jfmyers9/scrobbledb/internal/enrich"

// Merge copies resolved metadata onto every event of every bucket.
// Artists without metadata get enrich.UnknownCountry and no tags;
// albums without metadata get no year.
func Merge(g Grouped, artists map[string]enrich.ArtistMetadata, albums map[string]enrich.AlbumMetadata) []EnrichedEvent {
	out := make([]EnrichedEvent, 0, g.Len())

	for _, b := range g.Buckets {
		country := enrich.UnknownCountry
		tags := []string{}
		if md, ok := artists[b.Artist]; ok {
			if md.Country != "" {
				country = md.Country
			}
			if md.Tags != nil {
				tags = md.Tags
			}
		}

		var year *int
		if md, ok := albums[b.AlbumKey]; ok && b.AlbumKey != UndefinedAlbum {
			year = md.Year
		}

		for _, ev := range b.Events {
			out = append(out, EnrichedEvent{
				Event:         ev,
				ArtistCountry: country,
				ArtistTags:    tags,
				AlbumYear:     year,
			})
		}
	}

	return out
}
