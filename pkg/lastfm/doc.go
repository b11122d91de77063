// Package lastfm provides a client library for the Last.fm API 2.0.
//
// # Overview
//
// This package implements a Go client for the read side of the Last.fm
// API, focused on pulling a user's listening history. It provides a clean,
// type-safe API with context support, proper error handling, and retry logic.
//
// # Installation
//
//	go get github.com/jfmyers9/scrobbledb/pkg/lastfm
//
// # Quick Start
//
// Create a client with your API key. No secret or session is needed for
// public listening history:
//
//	import "github.com/jfmyers9/scrobbledb/pkg/lastfm"
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey: "your-api-key",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Recent Tracks
//
// user.getRecentTracks is paginated newest first. Walk backwards through
// history by passing the oldest timestamp you have seen, minus one, as To:
//
//	page, err := client.User().RecentTracks(ctx, lastfm.RecentTracksParams{
//	    User:  "rj",
//	    To:    oldest - 1,
//	    Limit: lastfm.MaxRecentTracksLimit,
//	})
//
// Each RecentTrack exposes Timestamp(), which reports false for the
// currently playing track.
//
// # Error Handling
//
// The package provides structured errors with retry information:
//
//	page, err := client.User().RecentTracks(ctx, params)
//	if err != nil {
//	    var lastfmErr *lastfm.Error
//	    if errors.As(err, &lastfmErr) {
//	        if lastfmErr.Temporary() {
//	            // Retry later
//	        }
//	    }
//	}
//
// Temporary errors (service offline, rate limit) and 5xx responses are
// retried internally with exponential backoff before being returned.
//
// # Context Support
//
// All API methods accept a context.Context for cancellation and timeouts:
//
//	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
//	defer cancel()
//
//	page, err := client.User().RecentTracks(ctx, params)
//
// # Configuration
//
// The client can be configured with custom HTTP clients, base URLs (for testing),
// and optional loggers:
//
//	client, err := lastfm.NewClient(lastfm.Config{
//	    APIKey:     "your-api-key",
//	    HTTPClient: &http.Client{Timeout: 30 * time.Second},
//	    Logger:     myLogger, // Implements lastfm.Logger interface
//	})
//
// # API Coverage
//
// Currently implemented:
//   - User history (user.getRecentTracks)
//
// # Last.fm API Documentation
//
// For more information about the Last.fm API:
// https://www.last.fm/api/show/user.getRecentTracks
package lastfm
