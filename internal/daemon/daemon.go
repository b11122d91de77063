// Package daemon runs the ingestion pipeline for every configured user
// on a fixed interval.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/rs/zerolog"
)

// Config holds daemon configuration
type Config struct {
	Users     []string      // Users to ingest, processed in order
	Interval  time.Duration // Time between the start of consecutive rounds
	StateFile string        // Path to state persistence file
}

// Runner runs one pipeline pass for a user. *ingest.Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, user string) (ingest.RunSummary, error)
}

// Daemon runs every configured user through the pipeline once per
// interval. Users are processed one after another.
type Daemon struct {
	config Config
	runner Runner
	state  *State
	logger zerolog.Logger
}

// New creates a new Daemon instance
func New(cfg Config, runner Runner, logger zerolog.Logger) (*Daemon, error) {
	if len(cfg.Users) == 0 {
		return nil, errors.New("no users configured")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("invalid interval %s", cfg.Interval)
	}

	log := logger.With().Str("component", "daemon").Logger()

	state, err := NewState(cfg.StateFile)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.StateFile).Msg("Failed to restore state, starting fresh")
	}

	return &Daemon{
		config: cfg,
		runner: runner,
		state:  state,
		logger: log,
	}, nil
}

// State returns the daemon's run history.
func (d *Daemon) State() *State {
	return d.state
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		select {
		case <-sigChan:
		case <-ctx.Done():
			return
		}
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	if err := d.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// Loop runs a round immediately and then once per interval until ctx is
// cancelled.
func (d *Daemon) Loop(ctx context.Context) error {
	d.logger.Info().
		Strs("users", d.config.Users).
		Dur("interval", d.config.Interval).
		Msg("Starting daemon")

	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	d.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("Daemon stopped")
			return ctx.Err()
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce runs the pipeline for each user in turn. A failing user is
// logged and recorded; the round continues with the next one.
func (d *Daemon) RunOnce(ctx context.Context) {
	for _, user := range d.config.Users {
		if ctx.Err() != nil {
			return
		}

		summary, err := d.runner.Run(ctx, user)
		if summary.User == "" {
			summary.User = user
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Error().Err(err).Str("user", user).Msg("Run failed")
		}

		if recErr := d.state.Record(summary, err); recErr != nil {
			d.logger.Warn().Err(recErr).Msg("Failed to persist state")
		}
	}
}
