package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/spf13/cobra"
)

var (
	syncUsers     []string
	syncDirection string
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Import scrobbles for one or more users",
	Long: `Import a user's Last.fm scrobbles into the local database.

By default sync walks backwards from the present and fills everything
older than the oldest stored scrobble (--direction backfill). Use
--direction forward to fetch only scrobbles newer than the newest one.

Users default to the "users" list from the config file.`,
	Example: `  scrobbledb sync --user rj
  scrobbledb sync --user rj --direction forward`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().StringSliceVarP(&syncUsers, "user", "u", nil, "Last.fm user to import (repeatable)")
	syncCmd.Flags().StringVar(&syncDirection, "direction", "", "backfill or forward (default: config direction)")
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	users := syncUsers
	if len(users) == 0 {
		users = cfg.Users
	}
	if len(users) == 0 {
		return ingest.ErrMissingUser
	}

	direction := cfg.Direction
	if syncDirection != "" {
		direction = syncDirection
	}
	dir, err := ingest.ParseDirection(direction)
	if err != nil {
		return err
	}

	logger := setupLogger(logFile, logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, dir, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var failed []error
	for _, user := range users {
		summary, err := a.pipeline.Run(ctx, user)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			failed = append(failed, fmt.Errorf("%s: %w", user, err))
			continue
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d new, %d already stored, %d failed (%d batches)\n",
			user, summary.Inserted, summary.Duplicates, summary.Failed, summary.Batches)
	}

	return errors.Join(failed...)
}
