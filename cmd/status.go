package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jfmyers9/scrobbledb/internal/config"
	"github.com/jfmyers9/scrobbledb/internal/daemon"
	"github.com/jfmyers9/scrobbledb/internal/store"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored scrobbles and the last run per user",
	Long: `Show how much history is stored for each user and how the
daemon's last run for that user went.

Users come from the config file and from the database itself.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// statusRow is one line of the status table.
type statusRow struct {
	Stats store.UserStats
	Run   *daemon.RunRecord
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if _, err := os.Stat(cfg.DatabasePath()); os.IsNotExist(err) {
		fmt.Fprintf(cmd.OutOrStdout(), "No database at %s yet. Run 'scrobbledb sync' first.\n", cfg.DatabasePath())
		return nil
	}

	st, err := store.Open(cfg.DatabasePath(), zerolog.Nop())
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	state, err := daemon.NewState(cfg.StateFile())
	if err != nil {
		return fmt.Errorf("failed to read daemon state: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stored, err := st.Users(ctx)
	if err != nil {
		return err
	}

	users := mergeUsers(cfg.Users, stored)
	rows := make([]statusRow, 0, len(users))
	for _, user := range users {
		stats, err := st.Stats(ctx, user)
		if err != nil {
			return err
		}
		row := statusRow{Stats: stats}
		if rec, ok := state.Get(user); ok {
			row.Run = &rec
		}
		rows = append(rows, row)
	}

	renderStatus(cmd.OutOrStdout(), rows)
	return nil
}

// mergeUsers returns the sorted union of both lists.
func mergeUsers(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	var users []string
	for _, list := range [][]string{a, b} {
		for _, u := range list {
			if _, ok := seen[u]; ok {
				continue
			}
			seen[u] = struct{}{}
			users = append(users, u)
		}
	}
	sort.Strings(users)
	return users
}

const (
	userColWidth  = 20
	countColWidth = 10
	dateColWidth  = 16
)

// renderStatus writes rows as a fixed-width table.
func renderStatus(w io.Writer, rows []statusRow) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No users configured or stored.")
		return
	}

	header := padToWidth("USER", userColWidth) + "  " +
		padToWidth("SCROBBLES", countColWidth) + "  " +
		padToWidth("OLDEST", dateColWidth) + "  " +
		padToWidth("NEWEST", dateColWidth) + "  LAST RUN"
	fmt.Fprintln(w, header)

	for _, row := range rows {
		line := padToWidth(row.Stats.User, userColWidth) + "  " +
			padToWidth(fmt.Sprintf("%d", row.Stats.Count), countColWidth) + "  " +
			padToWidth(formatUnix(row.Stats.Oldest), dateColWidth) + "  " +
			padToWidth(formatUnix(row.Stats.Newest), dateColWidth) + "  " +
			describeRun(row.Run)
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

func formatUnix(uts int64) string {
	if uts == 0 {
		return "-"
	}
	return time.Unix(uts, 0).UTC().Format("2006-01-02 15:04")
}

func describeRun(rec *daemon.RunRecord) string {
	if rec == nil {
		return "never"
	}
	when := rec.Finished.UTC().Format("2006-01-02 15:04")
	if rec.Error != "" {
		return fmt.Sprintf("%s failed: %s", when, rec.Error)
	}
	return fmt.Sprintf("%s +%d (%d dup, %d failed)", when, rec.Inserted, rec.Duplicates, rec.Failed)
}

// padToWidth truncates or pads text to exactly width display columns.
// Wide characters (CJK, emoji) count as two columns.
func padToWidth(text string, width int) string {
	if runewidth.StringWidth(text) > width {
		text = runewidth.Truncate(text, width, "…")
	}
	return runewidth.FillRight(text, width)
}
