package enrich

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the spacing MusicBrainz asks clients to keep
// between requests.
const DefaultInterval = time.Second

// Limiter gates calls to the metadata provider. Wait blocks until the
// next call may start.
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter returns a token bucket holding a single permit that refills
// once per interval. Share one instance across every Enricher (and every
// user being processed) so the provider sees one global request rate.
func NewLimiter(interval time.Duration) *rate.Limiter {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return rate.NewLimiter(rate.Every(interval), 1)
}
