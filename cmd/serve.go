package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jfmyers9/scrobbledb/internal/ingest"
	"github.com/jfmyers9/scrobbledb/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Trigger imports over HTTP",
	Long: `Serve an HTTP endpoint that runs one import per request.

Routes:
  POST /sync?user=NAME   run the pipeline for NAME and return a JSON summary
  GET  /healthz          liveness probe
  GET  /metrics          Prometheus metrics

Requests are processed one at a time.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: config server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	dir, err := ingest.ParseDirection(cfg.Direction)
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

	return server.New(cfg.Server.Addr, a.pipeline, logger).ListenAndServe(ctx)
}
