package lastfm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	client, err := NewClient(Config{
		APIKey:  "test-api-key",
		BaseURL: serverURL,
	})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	client.retryBackoff = time.Millisecond

	return client
}

func TestNewClient(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		_, err := NewClient(Config{})
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		client, err := NewClient(Config{APIKey: "key"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if client.baseURL != DefaultBaseURL {
			t.Errorf("expected base URL %s, got %s", DefaultBaseURL, client.baseURL)
		}
		if client.userAgent != DefaultUserAgent {
			t.Errorf("expected user agent %s, got %s", DefaultUserAgent, client.userAgent)
		}
		if client.User() == nil {
			t.Error("expected non-nil user service")
		}
	})
}

// TestUserService_RecentTracks tests the RecentTracks method.
func TestUserService_RecentTracks(t *testing.T) {
	tests := []struct {
		name         string
		response     string
		statusCode   int
		params       RecentTracksParams
		wantQuery    map[string]string
		wantAbsent   []string
		wantTracks   int
		wantTrackSet bool
		wantErr      bool
		errContains  string
	}{
		{
			name: "success with now playing entry",
			response: `{"recenttracks":{"track":[
				{"artist":{"mbid":"","#text":"Radiohead"},"album":{"mbid":"a1","#text":"OK Computer"},"name":"Airbag","url":"https://last.fm/1","@attr":{"nowplaying":"true"}},
				{"artist":{"mbid":"m1","#text":"Radiohead"},"album":{"mbid":"a1","#text":"OK Computer"},"name":"Lucky","url":"https://last.fm/2","date":{"uts":"1700000000","#text":"14 Nov 2023, 22:13"}}
			],"@attr":{"user":"rj","page":"1","perPage":"200","totalPages":"1","total":"1"}}}`,
			statusCode:   http.StatusOK,
			params:       RecentTracksParams{User: "rj", Limit: 200},
			wantQuery:    map[string]string{"user": "rj", "limit": "200", "format": "json", "method": "user.getrecenttracks", "api_key": "test-api-key"},
			wantAbsent:   []string{"from", "to", "page"},
			wantTracks:   2,
			wantTrackSet: true,
		},
		{
			name:         "bounds are forwarded",
			response:     `{"recenttracks":{"track":[],"@attr":{"user":"rj"}}}`,
			statusCode:   http.StatusOK,
			params:       RecentTracksParams{User: "rj", From: 100, To: 200, Limit: 500, Page: 2},
			wantQuery:    map[string]string{"from": "100", "to": "200", "limit": "200", "page": "2"},
			wantTracks:   0,
			wantTrackSet: true,
		},
		{
			name: "single track object",
			response: `{"recenttracks":{"track":
				{"artist":{"mbid":"","#text":"Björk"},"album":{"mbid":"","#text":"Post"},"name":"Army of Me","url":"u","date":{"uts":"42","#text":""}}
			}}`,
			statusCode:   http.StatusOK,
			params:       RecentTracksParams{User: "rj"},
			wantTracks:   1,
			wantTrackSet: true,
		},
		{
			name:         "missing track list",
			response:     `{"recenttracks":{"@attr":{"user":"rj"}}}`,
			statusCode:   http.StatusOK,
			params:       RecentTracksParams{User: "rj"},
			wantTracks:   0,
			wantTrackSet: false,
		},
		{
			name:        "api error envelope",
			response:    `{"error":6,"message":"User not found"}`,
			statusCode:  http.StatusNotFound,
			params:      RecentTracksParams{User: "nobody"},
			wantErr:     true,
			errContains: "error 6",
		},
		{
			name:        "malformed body",
			response:    `<html>bad gateway</html>`,
			statusCode:  http.StatusOK,
			params:      RecentTracksParams{User: "rj"},
			wantErr:     true,
			errContains: "malformed response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodGet {
					t.Errorf("expected GET request, got %s", r.Method)
				}

				query := r.URL.Query()
				for k, v := range tt.wantQuery {
					if got := query.Get(k); got != v {
						t.Errorf("expected %s=%s, got %s", k, v, got)
					}
				}
				for _, k := range tt.wantAbsent {
					if query.Has(k) {
						t.Errorf("expected %s to be absent, got %s", k, query.Get(k))
					}
				}

				w.WriteHeader(tt.statusCode)
				if _, err := w.Write([]byte(tt.response)); err != nil {
					t.Fatalf("failed to write response body: %v", err)
				}
			}))
			defer server.Close()

			client := newTestClient(t, server.URL)
			page, err := client.User().RecentTracks(context.Background(), tt.params)

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tt.errContains) {
					t.Errorf("expected error to contain %q, got %v", tt.errContains, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(page.Tracks) != tt.wantTracks {
				t.Errorf("expected %d tracks, got %d", tt.wantTracks, len(page.Tracks))
			}
			if page.HasTrackList != tt.wantTrackSet {
				t.Errorf("expected HasTrackList %v, got %v", tt.wantTrackSet, page.HasTrackList)
			}
		})
	}
}

func TestUserService_RecentTracks_MissingUser(t *testing.T) {
	client, err := NewClient(Config{APIKey: "key"})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	_, err = client.User().RecentTracks(context.Background(), RecentTracksParams{})
	if !errors.Is(err, ErrMissingUser) {
		t.Fatalf("expected ErrMissingUser, got %v", err)
	}
}

func TestRecentTrack_Timestamp(t *testing.T) {
	tests := []struct {
		name   string
		track  RecentTrack
		want   int64
		wantOK bool
	}{
		{name: "no date", track: RecentTrack{}, wantOK: false},
		{name: "empty uts", track: RecentTrack{Date: &Date{}}, wantOK: false},
		{name: "garbage uts", track: RecentTrack{Date: &Date{UTS: "soon"}}, wantOK: false},
		{name: "valid", track: RecentTrack{Date: &Date{UTS: "1700000000"}}, want: 1700000000, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.track.Timestamp()
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("Timestamp() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// TestUserService_Retry tests retrying of temporary API errors.
func TestUserService_Retry(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusOK)
			if _, err := w.Write([]byte(`{"error":16,"message":"Service Temporarily Unavailable"}`)); err != nil {
				t.Fatalf("failed to write response body: %v", err)
			}
			return
		}
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"recenttracks":{"track":[]}}`)); err != nil {
			t.Fatalf("failed to write response body: %v", err)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	page, err := client.User().RecentTracks(context.Background(), RecentTracksParams{User: "rj"})
	if err != nil {
		t.Fatalf("expected success after retries, got error: %v", err)
	}
	if !page.HasTrackList {
		t.Error("expected track list to be present")
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

// TestUserService_ServerError tests handling of HTTP 5xx errors.
func TestUserService_ServerError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
		if _, err := w.Write([]byte("Service Unavailable")); err != nil {
			t.Fatalf("failed to write response body: %v", err)
		}
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	_, err := client.User().RecentTracks(context.Background(), RecentTracksParams{User: "rj"})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("expected error to mention 503, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

// TestUserService_ContextCancellation tests that a cancelled context aborts the call.
func TestUserService_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.User().RecentTracks(ctx, RecentTracksParams{User: "rj"})
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}

func TestError_Temporary(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{ErrCodeServiceOffline, true},
		{ErrCodeTempUnavailable, true},
		{ErrCodeRateLimitExceeded, true},
		{ErrCodeInvalidParameters, false},
		{ErrCodeInvalidAPIKey, false},
	}

	for _, tt := range tests {
		err := &Error{Code: tt.code}
		if got := err.Temporary(); got != tt.want {
			t.Errorf("code %d: Temporary() = %v, want %v", tt.code, got, tt.want)
		}
	}

	if !errors.Is(&Error{Code: 6, Message: "a"}, &Error{Code: 6}) {
		t.Error("expected errors with the same code to match")
	}
}
