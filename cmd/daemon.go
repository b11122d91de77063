package cmd

import (
	"context"
	"fmt"

	"github.com/jfmyers9/scrobbledb/internal/daemon"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/spf13/cobra"
)

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep configured users up to date",
	Long: `Run the ingestion daemon for every user in the config file.

The daemon will:
- Fetch each user's new scrobbles once per daemon.interval (default 1h)
- Process users one after another, sharing the MusicBrainz rate limit
- Record the outcome of each user's last run in state.json
- Handle graceful shutdown on SIGINT/SIGTERM (a second signal forces exit)

The daemon runs in the foreground and logs to stderr by default.
Use the --log-file flag to log to a file.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(logFile, logLevel)

	logger.Info().
		Str("version", version).
		Str("data_dir", cfg.DataDir).
		Msg("Starting scrobbledb daemon")

	a, err := newApp(context.Background(), cfg, ingest.Forward, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	d, err := daemon.New(daemon.Config{
		Users:     cfg.Users,
		Interval:  cfg.Daemon.Interval,
		StateFile: cfg.StateFile(),
	}, a.pipeline, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	// Run daemon (blocks until shutdown signal)
	if err := d.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	logger.Info().Msg("Daemon stopped")
	return nil
}
