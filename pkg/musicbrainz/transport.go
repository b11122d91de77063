package musicbrainz

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// get performs a GET against path with the given query and decodes the
// JSON body into out. 5xx responses (MusicBrainz answers 503 when rate
// limited) and network errors are retried with backoff.
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	query.Set("fmt", "json")
	endpoint := strings.TrimRight(c.baseURL, "/") + "/" + path + "/?" + query.Encode()

	var lastErr error
	backoff := c.retryBackoff
	maxRetries := 3

	for i := 0; i < maxRetries; i++ {
		c.logDebugf("musicbrainz: GET %s (attempt %d/%d)", path, i+1, maxRetries)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", c.userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var netErr net.Error
			if errors.As(err, &netErr) && i < maxRetries-1 {
				c.logDebugf("musicbrainz: network error, retrying: %v", err)
				if !sleep(ctx, backoff) {
					return ctx.Err()
				}
				backoff *= 2
				continue
			}
			return fmt.Errorf("http request failed: %w", err)
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			return nil
		case resp.StatusCode == http.StatusNotFound:
			return ErrNotFound
		case resp.StatusCode >= 500:
			lastErr = &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
			if i < maxRetries-1 {
				c.logDebugf("musicbrainz: server error, retrying: %v", lastErr)
				if !sleep(ctx, backoff) {
					return ctx.Err()
				}
				backoff *= 2
				continue
			}
			return lastErr
		default:
			return &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// sleep waits for the specified duration or until context is cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
