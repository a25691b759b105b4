package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/specbook/internal/history"
	"github.com/specbook/internal/migrate"
	"github.com/specbook/internal/notify"
)

// Config represents the application configuration
type Config struct {
	Generate struct {
		Description string `koanf:"description"`
		Output      string `koanf:"output"`
	} `koanf:"generate"`

	Migrate struct {
		ProbeRows       int  `koanf:"probe_rows"`
		OverflowEnabled bool `koanf:"overflow_enabled"`
		ScanSecrets     bool `koanf:"scan_secrets"`
	} `koanf:"migrate"`

	Log struct {
		Level  string `koanf:"level"`
		Pretty bool   `koanf:"pretty"`
		Dir    string `koanf:"dir"`
	} `koanf:"log"`

	History struct {
		Enabled bool   `koanf:"enabled"`
		Path    string `koanf:"path"`
	} `koanf:"history"`

	Notify notify.Config `koanf:"notify"`
}

// LoadConfig loads the configuration from a file
func LoadConfig(configPath string) (*Config, error) {
	var k = koanf.New(".")

	// Set up default configuration
	k.Load(confmap.Provider(map[string]interface{}{
		"migrate.probe_rows":       migrate.DefaultProbeRows,
		"migrate.overflow_enabled": true,
		"migrate.scan_secrets":     true,
		"log.level":                "info",
		"history.enabled":          true,
		"history.path":             history.DefaultPath,
	}, "."), nil)

	// Load from TOML file if it exists
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	} else {
		// Try to load from default locations
		defaultPaths := []string{"./specbook.toml", "$HOME/.specbook.toml"}
		for _, path := range defaultPaths {
			path = os.ExpandEnv(path)
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err == nil {
					break
				}
			}
		}
	}

	// Load from environment variables with prefix SPECBOOK_. Double
	// underscores nest, single underscores stay part of the key, so
	// SPECBOOK_MIGRATE__PROBE_ROWS maps to migrate.probe_rows.
	k.Load(env.Provider("SPECBOOK_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "SPECBOOK_")
		return strings.Replace(strings.ToLower(s), "__", ".", -1)
	}), nil)

	// Unmarshal into Config struct
	var config Config
	if err := k.Unmarshal("", &config); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	return &config, nil
}

// InitConfig initializes a new configuration file
func InitConfig(configPath string) error {
	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	// Create sample configuration
	sampleConfig := `# Specbook Configuration

[generate]
description = "openapi.yaml"
output = "apibook.xlsx"

[migrate]
probe_rows = 5
overflow_enabled = true
scan_secrets = true

[log]
level = "info"
pretty = false

[history]
enabled = true
path = "specbook_history.db"

# Posts a summary of lost discussions to the merge request that changed
# the API description. Uncomment and fill in token, project, and
# merge_request_iid to enable it; url defaults to gitlab.com.
#[notify]
#url = "https://gitlab.example.com"
#token = "your-gitlab-token"
#project = "group/project"
#merge_request_iid = 1
`

	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}

// Validate validates the configuration
func Validate(config *Config) error {
	if config.Migrate.ProbeRows < 0 {
		return fmt.Errorf("migrate.probe_rows must not be negative")
	}

	if config.Log.Level != "" {
		switch config.Log.Level {
		case "trace", "debug", "info", "warn", "error", "fatal", "panic":
		default:
			return fmt.Errorf("unknown log level %q", config.Log.Level)
		}
	}

	if config.History.Enabled && config.History.Path == "" {
		return fmt.Errorf("history.path is required when history is enabled")
	}

	n := config.Notify
	partial := n.URL != "" || n.Token != "" || n.Project != "" || n.MergeRequestIID != 0
	if partial && !n.Enabled() {
		return fmt.Errorf("gitlab notification settings are incomplete: token, project, and merge_request_iid are all required")
	}

	return nil
}
