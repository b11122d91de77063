// Package musicbrainz provides a minimal client for the MusicBrainz web
// service (ws/2), covering artist search and release-group lookup.
//
// MusicBrainz requires every client to send a descriptive User-Agent
// ("Application/Version (contact)") and to stay at or below one request
// per second. This client enforces the former; callers own the latter.
//
// Example usage:
//
//	client, err := musicbrainz.NewClient(musicbrainz.Config{
//	    UserAgent: "scrobbledb/1.0 (me@example.com)",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	res, err := client.SearchArtists(ctx, "Radiohead")
package musicbrainz

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Config holds client configuration.
type Config struct {
	UserAgent  string       // Required: descriptive client identifier
	HTTPClient *http.Client // Optional: HTTP client (defaults to a client with a 30s timeout)
	BaseURL    string       // Optional: Base URL for API (defaults to MusicBrainz, used for testing)
	Logger     Logger       // Optional: Logger interface for debug logging
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client talks to the MusicBrainz web service.
type Client struct {
	userAgent  string
	httpClient *http.Client
	baseURL    string
	logger     Logger

	retryBackoff time.Duration
}

const (
	// DefaultBaseURL is the default MusicBrainz web service endpoint.
	DefaultBaseURL = "https://musicbrainz.org/ws/2/"
)

var (
	// ErrInvalidConfig is returned when client configuration is invalid.
	ErrInvalidConfig = errors.New("musicbrainz: invalid configuration")

	// ErrNotFound is returned when MusicBrainz answers 404 for a lookup.
	ErrNotFound = errors.New("musicbrainz: not found")

	// ErrMalformedResponse is returned when a response body cannot be decoded.
	ErrMalformedResponse = errors.New("musicbrainz: malformed response")
)

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("musicbrainz: unexpected status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a new MusicBrainz client.
//
// Returns an error if the UserAgent is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("%w: UserAgent is required", ErrInvalidConfig)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		userAgent:    cfg.UserAgent,
		httpClient:   httpClient,
		baseURL:      baseURL,
		logger:       cfg.Logger,
		retryBackoff: 1 * time.Second,
	}, nil
}

func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
