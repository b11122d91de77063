package ingest

import "sort"

// Bucket is the chronologically ordered events of one (artist, album) pair.
type Bucket struct {
	Artist   string
	AlbumKey string
	Events   []Event
}

// Grouped is the result of Transform.
type Grouped struct {
	// Buckets in the order their (artist, album) pair was first seen.
	Buckets []Bucket

	// Artists and Albums hold the distinct non-empty artist names and
	// album ids in first-seen order. UndefinedAlbum is never included.
	Artists []string
	Albums  []string

	index map[string]map[string]int
}

// Lookup returns the events grouped under artist and albumKey.
func (g Grouped) Lookup(artist, albumKey string) ([]Event, bool) {
	albums, ok := g.index[artist]
	if !ok {
		return nil, false
	}
	i, ok := albums[albumKey]
	if !ok {
		return nil, false
	}
	return g.Buckets[i].Events, true
}

// Len returns the number of events across all buckets.
func (g Grouped) Len() int {
	n := 0
	for _, b := range g.Buckets {
		n += len(b.Events)
	}
	return n
}

// Transform drops events without a timestamp, groups the rest by artist
// and album key, and sorts each group by ascending timestamp.
func Transform(events []Event) Grouped {
	g := Grouped{index: make(map[string]map[string]int)}
	seenArtist := make(map[string]bool)
	seenAlbum := make(map[string]bool)

	for _, ev := range events {
		if ev.Timestamp == nil {
			continue
		}

		key := ev.AlbumKey()
		albums, ok := g.index[ev.Artist]
		if !ok {
			albums = make(map[string]int)
			g.index[ev.Artist] = albums
		}
		i, ok := albums[key]
		if !ok {
			i = len(g.Buckets)
			albums[key] = i
			g.Buckets = append(g.Buckets, Bucket{Artist: ev.Artist, AlbumKey: key})
		}
		g.Buckets[i].Events = append(g.Buckets[i].Events, ev)

		if ev.Artist != "" && !seenArtist[ev.Artist] {
			seenArtist[ev.Artist] = true
			g.Artists = append(g.Artists, ev.Artist)
		}
		if ev.AlbumMBID != "" && !seenAlbum[ev.AlbumMBID] {
			seenAlbum[ev.AlbumMBID] = true
			g.Albums = append(g.Albums, ev.AlbumMBID)
		}
	}

	for _, b := range g.Buckets {
		SortEvents(b.Events)
	}

	return g
}

// SortEvents orders events by ascending timestamp in place. Events
// without a timestamp go last; ties keep their relative order.
func SortEvents(events []Event) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i].Timestamp, events[j].Timestamp
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}
