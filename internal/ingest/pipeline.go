package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jfmyers9/scrobbledb/internal/enrich"
	"github.com/jfmyers9/scrobbledb/internal/metrics"
	"github.com/rs/zerolog"
)

var (
	// ErrMissingUser is returned when a run is requested without a user.
	ErrMissingUser = errors.New("ingest: user is required")

	// ErrCursorStalled is returned when a non-empty batch did not move
	// the cursor, which would otherwise request the same page forever.
	// This is how a batch whose rows all failed to persist ends the run:
	// nothing below the old ceiling was stored, so the next request would
	// be identical.
	ErrCursorStalled = errors.New("ingest: cursor did not advance")
)

// DefaultPageSize is the largest page user.getRecentTracks serves.
const DefaultPageSize = 200

// Direction selects which part of a user's history a run covers.
type Direction string

const (
	// Backfill walks back from the present to the first scrobble,
	// filling every gap below the oldest stored event.
	Backfill Direction = "backfill"

	// Forward fetches events newer than the user's forward floor, the
	// newest stored event as of the last forward run that completed.
	Forward Direction = "forward"
)

// ParseDirection parses a Direction, defaulting to Backfill when s is empty.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", Backfill:
		return Backfill, nil
	case Forward:
		return Forward, nil
	default:
		return "", fmt.Errorf("unknown direction %q (want %s or %s)", s, Backfill, Forward)
	}
}

// State is a step of the per-user ingestion loop.
type State int

const (
	StateFetchCursor State = iota
	StateRequestBatch
	StateTransform
	StateEnrich
	StateMerge
	StatePersist
	StateStop
)

func (s State) String() string {
	switch s {
	case StateFetchCursor:
		return "FETCH_CURSOR"
	case StateRequestBatch:
		return "REQUEST_BATCH"
	case StateTransform:
		return "TRANSFORM"
	case StateEnrich:
		return "ENRICH"
	case StateMerge:
		return "MERGE"
	case StatePersist:
		return "PERSIST"
	case StateStop:
		return "STOP"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Sink stores enriched events and answers the cursor queries.
//
// ForwardFloor returns the floor recorded by SetForwardFloor, or 0 when
// none was recorded. SetForwardFloor must never lower a recorded floor.
type Sink interface {
	Newest(ctx context.Context, user string) (int64, error)
	OldestAfter(ctx context.Context, user string, floor int64) (int64, error)
	InsertScrobbles(ctx context.Context, events []EnrichedEvent) (InsertResult, error)
	ForwardFloor(ctx context.Context, user string) (int64, error)
	SetForwardFloor(ctx context.Context, user string, uts int64) error
}

// Enricher resolves metadata for the keys of a batch. *enrich.Enricher
// satisfies it.
type Enricher interface {
	Artists(ctx context.Context, names []string) (map[string]enrich.ArtistMetadata, error)
	Albums(ctx context.Context, ids []string) (map[string]enrich.AlbumMetadata, error)
}

// Config holds pipeline configuration.
type Config struct {
	PageSize  int              // Events per upstream request (defaults to DefaultPageSize)
	Direction Direction        // Defaults to Backfill
	Now       func() time.Time // Clock for run timing (defaults to time.Now)
}

// RunSummary describes a finished run.
type RunSummary struct {
	RunID      string
	User       string
	Direction  Direction
	Batches    int
	Fetched    int
	Inserted   int
	Duplicates int
	Failed     int
	Started    time.Time
	Finished   time.Time
}

// Pipeline runs the fetch, transform, enrich, merge and persist loop for
// one user at a time.
type Pipeline struct {
	source   Source
	sink     Sink
	enricher Enricher
	pageSize int
	dir      Direction
	now      func() time.Time
	logger   zerolog.Logger
}

// New creates a Pipeline.
func New(cfg Config, source Source, sink Sink, enricher Enricher, logger zerolog.Logger) *Pipeline {
	pageSize := cfg.PageSize
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}
	dir := cfg.Direction
	if dir == "" {
		dir = Backfill
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Pipeline{
		source:   source,
		sink:     sink,
		enricher: enricher,
		pageSize: pageSize,
		dir:      dir,
		now:      now,
		logger:   logger.With().Str("component", "pipeline").Logger(),
	}
}

// run is the mutable state of one Run call.
type run struct {
	user        string
	floor       int64
	ceiling     int64
	prevCeiling int64

	page    Page
	grouped Grouped
	artists map[string]enrich.ArtistMetadata
	albums  map[string]enrich.AlbumMetadata
	merged  []EnrichedEvent

	summary RunSummary
	logger  zerolog.Logger
}

// Run ingests user's history until upstream returns an empty batch.
//
// Every request is bounded strictly inside (floor, ceiling), where floor
// is 0 for Backfill or the recorded forward floor for Forward, and
// ceiling is the oldest stored timestamp above floor. Upstream pages
// newest first, so each persisted batch lowers the ceiling and the next
// request continues below it. A provider that never returns an empty
// page keeps the loop running.
//
// A Forward run that completes moves the forward floor up to the newest
// stored timestamp. A run that fails leaves it in place, so the retry
// fills whatever the failed run left between the floor and the events
// it had already stored.
func (p *Pipeline) Run(ctx context.Context, user string) (RunSummary, error) {
	if user == "" {
		return RunSummary{}, ErrMissingUser
	}

	r := &run{
		user: user,
		summary: RunSummary{
			RunID:     uuid.NewString(),
			User:      user,
			Direction: p.dir,
			Started:   p.now(),
		},
	}
	r.logger = p.logger.With().
		Str("run_id", r.summary.RunID).
		Str("user", user).
		Str("direction", string(p.dir)).
		Logger()

	err := p.loop(ctx, r)

	r.summary.Finished = p.now()
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PipelineRunDuration.WithLabelValues(outcome).Observe(r.summary.Finished.Sub(r.summary.Started).Seconds())

	if err != nil {
		r.logger.Error().Err(err).Int("batches", r.summary.Batches).Msg("Run failed")
		return r.summary, err
	}

	r.logger.Info().
		Int("batches", r.summary.Batches).
		Int("inserted", r.summary.Inserted).
		Int("duplicates", r.summary.Duplicates).
		Int("failed", r.summary.Failed).
		Dur("elapsed", r.summary.Finished.Sub(r.summary.Started)).
		Msg("Run complete")

	return r.summary, nil
}

func (p *Pipeline) loop(ctx context.Context, r *run) error {
	if p.dir == Forward {
		floor, err := p.sink.ForwardFloor(ctx, r.user)
		if err != nil {
			return fmt.Errorf("failed to read forward floor: %w", err)
		}
		r.floor = floor
	}
	r.logger.Debug().Int64("floor", r.floor).Msg("Starting run")

	state := StateFetchCursor
	for state != StateStop {
		if err := ctx.Err(); err != nil {
			return err
		}

		next, err := p.step(ctx, r, state)
		if err != nil {
			return fmt.Errorf("%s: %w", state, err)
		}
		r.logger.Trace().Stringer("from", state).Stringer("to", next).Msg("Transition")
		state = next
	}

	if p.dir == Forward {
		return p.advanceFloor(ctx, r)
	}
	return nil
}

// advanceFloor records the newest stored timestamp as the next forward
// floor. Everything between the old floor and it is stored once the walk
// down from the ceiling has reached an empty page.
func (p *Pipeline) advanceFloor(ctx context.Context, r *run) error {
	newest, err := p.sink.Newest(ctx, r.user)
	if err != nil {
		return fmt.Errorf("failed to read newest scrobble: %w", err)
	}
	if newest <= r.floor {
		return nil
	}
	if err := p.sink.SetForwardFloor(ctx, r.user, newest); err != nil {
		return fmt.Errorf("failed to record forward floor: %w", err)
	}
	r.logger.Debug().Int64("from", r.floor).Int64("to", newest).Msg("Advanced forward floor")
	return nil
}

func (p *Pipeline) step(ctx context.Context, r *run, state State) (State, error) {
	switch state {
	case StateFetchCursor:
		ceiling, err := p.sink.OldestAfter(ctx, r.user, r.floor)
		if err != nil {
			return StateStop, fmt.Errorf("failed to read cursor: %w", err)
		}
		if r.summary.Batches > 0 && (ceiling == 0 || (r.prevCeiling != 0 && ceiling >= r.prevCeiling)) {
			return StateStop, ErrCursorStalled
		}
		r.ceiling = ceiling
		return StateRequestBatch, nil

	case StateRequestBatch:
		// Nothing can lie strictly between floor and floor+1.
		if r.ceiling != 0 && r.ceiling-1 <= r.floor {
			return StateStop, nil
		}

		req := Request{User: r.user, Limit: p.pageSize}
		if r.floor > 0 {
			req.From = r.floor + 1
		}
		if r.ceiling > 0 {
			req.To = r.ceiling - 1
		}

		page, err := p.source.Fetch(ctx, req)
		if err != nil {
			return StateStop, fmt.Errorf("failed to fetch recent tracks: %w", err)
		}
		if !page.HasTrackList {
			r.logger.Warn().Int64("from", req.From).Int64("to", req.To).Msg("Response had no track list, treating as empty")
		}
		r.page = page
		return StateTransform, nil

	case StateTransform:
		r.grouped = Transform(r.page.Events)
		r.page = Page{}
		if r.grouped.Len() == 0 {
			return StateStop, nil
		}
		return StateEnrich, nil

	case StateEnrich:
		artists, err := p.enricher.Artists(ctx, r.grouped.Artists)
		if err != nil {
			return StateStop, fmt.Errorf("artist enrichment: %w", err)
		}
		albums, err := p.enricher.Albums(ctx, r.grouped.Albums)
		if err != nil {
			return StateStop, fmt.Errorf("album enrichment: %w", err)
		}
		r.artists, r.albums = artists, albums
		return StateMerge, nil

	case StateMerge:
		r.merged = Merge(r.grouped, r.artists, r.albums)
		r.artists, r.albums = nil, nil
		return StatePersist, nil

	case StatePersist:
		res, err := p.sink.InsertScrobbles(ctx, r.merged)
		if err != nil {
			r.logger.Error().Err(err).Int("events", len(r.merged)).Msg("Failed to persist batch")
			res.Failed = len(r.merged)
		}

		r.summary.Batches++
		r.summary.Fetched += len(r.merged)
		r.summary.Inserted += res.Inserted
		r.summary.Duplicates += res.Duplicates
		r.summary.Failed += res.Failed
		metrics.PipelineBatches.Inc()

		r.logger.Info().
			Int("events", len(r.merged)).
			Int("inserted", res.Inserted).
			Int("duplicates", res.Duplicates).
			Int("failed", res.Failed).
			Int64("ceiling", r.ceiling).
			Msg("Persisted batch")

		r.prevCeiling = r.ceiling
		r.merged = nil
		r.grouped = Grouped{}
		return StateFetchCursor, nil

	default:
		return StateStop, fmt.Errorf("unknown state %d", int(state))
	}
}
