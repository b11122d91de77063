package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/jfmyers9/scrobbledb/pkg/musicbrainz"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

func TestBreakerProvider_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeProvider{artistErr: errors.New("connection reset")}
	b := NewBreakerProvider(inner, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := b.SearchArtists(ctx, "A"); err == nil {
			t.Fatal("expected error from failing provider")
		}
	}

	_, err := b.SearchArtists(ctx, "A")
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if len(inner.artistCalls) != 5 {
		t.Errorf("expected open circuit to short-circuit the provider, got %d calls", len(inner.artistCalls))
	}
}

func TestBreakerProvider_NotFoundDoesNotTrip(t *testing.T) {
	inner := &fakeProvider{albumErr: map[string]error{"x": musicbrainz.ErrNotFound}}
	b := NewBreakerProvider(inner, zerolog.Nop())
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := b.ReleaseGroupsByRelease(ctx, "x")
		if !errors.Is(err, musicbrainz.ErrNotFound) {
			t.Fatalf("attempt %d: expected ErrNotFound, got %v", i, err)
		}
	}
}

func TestBreakerProvider_PassesResults(t *testing.T) {
	inner := &fakeProvider{
		artists: map[string]*musicbrainz.ArtistSearch{
			"A": {Count: 1, Artists: []musicbrainz.Artist{{Name: "A"}}},
		},
	}
	b := NewBreakerProvider(inner, zerolog.Nop())

	res, err := b.SearchArtists(context.Background(), "A")
	if err != nil {
		t.Fatalf("SearchArtists: %v", err)
	}
	if res.Count != 1 || res.Artists[0].Name != "A" {
		t.Errorf("unexpected result %+v", res)
	}
}
