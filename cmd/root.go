// Package cmd holds the CLI commands of the specbook binary.
package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/specbook/internal/config"
	"github.com/specbook/internal/logging"
)

// loadConfig loads and validates the configuration named by the global
// --config flag, then applies its logging settings.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Pretty)
	return cfg, nil
}

// firstNonEmpty returns the first non-empty value, letting command flags
// override configuration file entries.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
