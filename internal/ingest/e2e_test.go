package ingest_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sort"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/enrich"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/jfmyers9/scrobbledb/internal/store"
	"github.com/jfmyers9/scrobbledb/pkg/lastfm"
	"github.com/jfmyers9/scrobbledb/pkg/musicbrainz"
	"github.com/rs/zerolog"
)

type play struct {
	artist string
	album  string
	track  string
	uts    int64
}

// fakeLastFM serves plays newest first with from/to/limit applied.
func fakeLastFM(t *testing.T, plays []play) *httptest.Server {
	t.Helper()
	sort.Slice(plays, func(i, j int) bool { return plays[i].uts > plays[j].uts })

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		from, _ := strconv.ParseInt(q.Get("from"), 10, 64)
		to, _ := strconv.ParseInt(q.Get("to"), 10, 64)
		limit, _ := strconv.Atoi(q.Get("limit"))

		tracks := []map[string]any{}
		for _, p := range plays {
			if (from > 0 && p.uts < from) || (to > 0 && p.uts > to) {
				continue
			}
			if len(tracks) == limit {
				break
			}
			tracks = append(tracks, map[string]any{
				"artist": map[string]string{"mbid": "", "#text": p.artist},
				"album":  map[string]string{"mbid": p.album, "#text": "Album " + p.album},
				"name":   p.track,
				"url":    "https://www.last.fm/music/" + p.track,
				"date":   map[string]string{"uts": strconv.FormatInt(p.uts, 10), "#text": ""},
			})
		}

		body, err := json.Marshal(map[string]any{"recenttracks": map[string]any{"track": tracks}})
		if err != nil {
			t.Errorf("marshal: %v", err)
		}
		_, _ = w.Write(body)
	}))
}

// fakeMusicBrainz answers artist searches with a Swedish artist tagged
// "pop" and release-group lookups with a 1999 album, except for the
// release "missing" which is a 404.
func fakeMusicBrainz(t *testing.T, calls *int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/artist/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected user agent")
		}
		_, _ = fmt.Fprintf(w, `{"count":1,"artists":[{"name":%q,"area":{"type":"Country","name":"Sweden"},"tags":[{"count":3,"name":"pop"},{"count":1,"name":"noise"}]}]}`,
			r.URL.Query().Get("query"))
	})
	mux.HandleFunc("/release-group/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		if r.URL.Query().Get("release") == "missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"release-groups":[{"primary-type":"Album","first-release-date":"1999-03-01"}]}`))
	})

	return httptest.NewServer(mux)
}

func TestPipeline_EndToEndIdempotent(t *testing.T) {
	plays := []play{
		{"ABBA", "gold", "Dancing Queen", 1000},
		{"ABBA", "gold", "Waterloo", 1100},
		{"Robyn", "", "Dancing On My Own", 1200},
		{"Robyn", "missing", "Hang With Me", 1300},
		{"ABBA", "gold", "SOS", 1400},
	}

	lfm := fakeLastFM(t, plays)
	defer lfm.Close()

	var mbCalls int32
	mb := fakeMusicBrainz(t, &mbCalls)
	defer mb.Close()

	lastfmClient, err := lastfm.NewClient(lastfm.Config{APIKey: "key", BaseURL: lfm.URL})
	if err != nil {
		t.Fatalf("lastfm client: %v", err)
	}
	mbClient, err := musicbrainz.NewClient(musicbrainz.Config{UserAgent: "scrobbledb-test/1.0", BaseURL: mb.URL})
	if err != nil {
		t.Fatalf("musicbrainz client: %v", err)
	}

	st, err := store.Open(":memory:", zerolog.Nop())
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = st.Close() }()

	enricher := enrich.New(mbClient, st, st, enrich.NewLimiter(time.Millisecond), zerolog.Nop())
	p := ingest.New(ingest.Config{PageSize: 2}, ingest.NewLastFM(lastfmClient.User()), st, enricher, zerolog.Nop())
	ctx := context.Background()

	first, err := p.Run(ctx, "rj")
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Inserted != len(plays) {
		t.Errorf("expected %d inserted, got %+v", len(plays), first)
	}

	stored, err := st.Scrobbles(ctx, "rj")
	if err != nil {
		t.Fatalf("Scrobbles: %v", err)
	}
	if len(stored) != len(plays) {
		t.Fatalf("expected %d rows, got %d", len(plays), len(stored))
	}
	for _, ev := range stored {
		if ev.ArtistCountry != "Sweden" || !reflect.DeepEqual(ev.ArtistTags, []string{"pop"}) {
			t.Errorf("artist metadata not merged: %+v", ev)
		}
		switch ev.AlbumMBID {
		case "gold":
			if ev.AlbumYearLabel() != "1999" {
				t.Errorf("expected 1999 for %s, got %s", ev.Track, ev.AlbumYearLabel())
			}
		default:
			if ev.AlbumYear != nil {
				t.Errorf("expected no year for %s, got %d", ev.Track, *ev.AlbumYear)
			}
		}
	}

	// Each artist and the one resolvable album are cached after their first miss.
	artists, err := st.FindArtists(ctx, []string{"ABBA", "Robyn"})
	if err != nil {
		t.Fatalf("FindArtists: %v", err)
	}
	if len(artists) != 2 {
		t.Errorf("expected both artists cached, got %v", artists)
	}
	albums, err := st.FindAlbums(ctx, []string{"gold", "missing"})
	if err != nil {
		t.Fatalf("FindAlbums: %v", err)
	}
	if _, ok := albums["missing"]; ok || len(albums) != 1 {
		t.Errorf("expected only gold cached, got %v", albums)
	}

	callsAfterFirst := atomic.LoadInt32(&mbCalls)

	second, err := p.Run(ctx, "rj")
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Inserted != 0 {
		t.Errorf("expected nothing new on the second run, got %+v", second)
	}
	again, err := st.Scrobbles(ctx, "rj")
	if err != nil {
		t.Fatalf("Scrobbles: %v", err)
	}
	if !reflect.DeepEqual(again, stored) {
		t.Error("second run changed the stored records")
	}
	if atomic.LoadInt32(&mbCalls) != callsAfterFirst {
		t.Error("second run should not reach the metadata provider")
	}
}
