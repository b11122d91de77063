package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jfmyers9/scrobbledb/internal/metrics"
	"github.com/jfmyers9/scrobbledb/pkg/musicbrainz"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Provider is the external metadata service. *musicbrainz.Client
// satisfies it.
type Provider interface {
	SearchArtists(ctx context.Context, name string) (*musicbrainz.ArtistSearch, error)
	ReleaseGroupsByRelease(ctx context.Context, releaseMBID string) (*musicbrainz.ReleaseGroupList, error)
}

// BreakerProvider wraps a Provider with a circuit breaker so a provider
// outage fails runs fast instead of stalling each one on retries.
// A 404 counts as a successful call.
type BreakerProvider struct {
	next Provider
	cb   *gobreaker.CircuitBreaker[interface{}]
}

// NewBreakerProvider creates a BreakerProvider.
// The circuit opens after 5 consecutive failures and probes again after a minute.
func NewBreakerProvider(next Provider, logger zerolog.Logger) *BreakerProvider {
	name := "musicbrainz"
	log := logger.With().Str("component", "breaker").Str("name", name).Logger()

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, musicbrainz.ErrNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerProvider{next: next, cb: cb}
}

func (b *BreakerProvider) SearchArtists(ctx context.Context, name string) (*musicbrainz.ArtistSearch, error) {
	return castResult[musicbrainz.ArtistSearch](b.cb.Execute(func() (interface{}, error) {
		return b.next.SearchArtists(ctx, name)
	}))
}

func (b *BreakerProvider) ReleaseGroupsByRelease(ctx context.Context, releaseMBID string) (*musicbrainz.ReleaseGroupList, error) {
	return castResult[musicbrainz.ReleaseGroupList](b.cb.Execute(func() (interface{}, error) {
		return b.next.ReleaseGroupsByRelease(ctx, releaseMBID)
	}))
}

// castResult type-asserts a breaker result back to the wrapped call's type.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
