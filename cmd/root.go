/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>

*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

// Global flags
var (
	configFile string
	logFile    string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "scrobbledb",
	Short: "Archive Last.fm listening history with artist and album metadata",
	Long: `scrobbledb copies a Last.fm user's scrobbles into a local SQLite
database and enriches every play with the artist's country and genre
tags and the album's release year, looked up on MusicBrainz.

Lookups are cached, so each artist and album is resolved once, and
MusicBrainz is never asked more than once per second.

Run 'scrobbledb sync' for a one-off import, 'scrobbledb daemon' to keep
configured users up to date, or 'scrobbledb serve' to trigger imports
over HTTP.`,
	Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ~/.config/scrobbledb/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Log file path (default: stderr)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}
