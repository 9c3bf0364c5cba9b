package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dvrmanager/internal/config"
	"dvrmanager/internal/queue"
)

// commandContext lazily loads configuration shared by subcommands.
type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// withStore opens the recordings database for a single command invocation.
func (c *commandContext) withStore(fn func(*config.Config, *queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

func newRootCommand() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "dvr-manager",
		Short:         "Watches DVR recordings and files them into a media library",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "Path to configuration file")

	ctx := newCommandContext(&configFlag)
	root.AddCommand(newDaemonCommand(ctx))
	root.AddCommand(newStatusCommand(ctx))
	root.AddCommand(newQueueCommand(ctx))
	root.AddCommand(newHistoryCommand(ctx))
	root.AddCommand(newResolveCommand(ctx))
	root.AddCommand(newConfigCommand())
	root.AddCommand(newTestNotifyCommand(ctx))

	return root
}
