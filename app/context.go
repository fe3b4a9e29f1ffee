package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/htol/shelf/catalog"
	"github.com/htol/shelf/config"
	"github.com/htol/shelf/logger"
	"github.com/htol/shelf/repo"
)

type commandContext struct {
	configPath string
	storePath  string
	driver     string
	logLevel   string

	config *config.Config
}

// loadConfig resolves the configuration and applies persistent flags on top.
func (c *commandContext) loadConfig(cmd *cobra.Command) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("store") {
		cfg.Store.Path = c.storePath
	}
	if flags.Changed("driver") {
		cfg.Store.Driver = c.driver
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return usageError{err}
	}

	logger.Init(cfg.LogLevel)
	c.config = cfg
	return nil
}

// withCatalog opens the configured store, hydrates a catalog and closes the
// store once fn returns.
func (c *commandContext) withCatalog(ctx context.Context, fn func(*catalog.Catalog) error) error {
	store, err := repo.Open(c.config.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("Error closing storage", "error", err)
		}
	}()

	cat, err := catalog.Open(ctx, store)
	if err != nil {
		return err
	}
	return fn(cat)
}
