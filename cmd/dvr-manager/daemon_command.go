package main

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"dvrmanager/internal/config"
	"dvrmanager/internal/daemon"
	"dvrmanager/internal/logging"
	"dvrmanager/internal/queue"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run the recording manager in the foreground",
		Long: "Watches the recording directory, resolves metadata, and moves " +
			"finished recordings into the library until terminated. SIGHUP " +
			"reloads configuration.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			logger, err := buildLogger(cfg)
			if err != nil {
				return fmt.Errorf("configure logging: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue database: %w", err)
			}

			d, err := daemon.New(cfg, ctx.configPath, store, logger)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer d.Close()

			return d.Run(cmd.Context())
		},
	}
}

// buildLogger writes to stderr and to the daemon log file.
func buildLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		OutputPaths: []string{
			"stderr",
			filepath.Join(cfg.Paths.LogDir, "dvr-manager.log"),
		},
	})
}
