package musicbrainz

// Area is a geographic area (country, subdivision, city).
type Area struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Tag is a folksonomy tag with its vote count.
type Tag struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// Artist is an entry of an artist search result.
type Artist struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Score     int    `json:"score"`
	Country   string `json:"country"`
	Area      *Area  `json:"area,omitempty"`
	BeginArea *Area  `json:"begin-area,omitempty"`
	Tags      []Tag  `json:"tags,omitempty"`
}

// ArtistSearch is the body of /ws/2/artist?query=.
type ArtistSearch struct {
	Count   int      `json:"count"`
	Offset  int      `json:"offset"`
	Artists []Artist `json:"artists"`
}

// ReleaseGroup groups the releases of one album across editions.
type ReleaseGroup struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	PrimaryType      string   `json:"primary-type"`
	SecondaryTypes   []string `json:"secondary-types"`
	FirstReleaseDate string   `json:"first-release-date"`
}

// ReleaseGroupList is the body of /ws/2/release-group?release=.
type ReleaseGroupList struct {
	Count         int            `json:"release-group-count"`
	Offset        int            `json:"release-group-offset"`
	ReleaseGroups []ReleaseGroup `json:"release-groups"`
}
