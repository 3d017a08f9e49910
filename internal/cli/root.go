// Package cli provides the command-line interface for spidersync.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/raphaelgruber/spidersync/internal/config"
	"github.com/raphaelgruber/spidersync/internal/models"
	"github.com/spf13/cobra"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose    bool
	configPath string

	cfg         config.Config
	logger      *slog.Logger
	closeLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "spidersync",
	Short: "Synchronize spider crawl results into the search index",
	Long: `spidersync applies spider change notifications to the search index.

A notification lists the files of one crawl with their change status.
spidersync compares it with what the index already holds, rebuilds the
affected documents from the spider's files and writes them to the index.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		level := cfg.SlogLevel()
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLogger = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file (default $SPIDERSYNC_CONFIG)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(versionCmd)
}

// readNotification decodes a notification from path, or from stdin when path is "-".
func readNotification(path string, stdin io.Reader) (*models.Notification, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open notification: %w", err)
		}
		defer f.Close()
		r = f
	}

	var n models.Notification
	if err := json.NewDecoder(r).Decode(&n); err != nil {
		return nil, fmt.Errorf("decode notification %s: %w", path, err)
	}
	return &n, nil
}
