// Package config provides configuration loading from YAML files.
package config

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/swingdeck/internal/domain/catalog"
)

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Catalog  CatalogConfig  `yaml:"catalog"`
	Playback PlaybackConfig `yaml:"playback"`
}

// ServerConfig represents server configuration.
type ServerConfig struct {
	Addr  string            `yaml:"addr" default:":8080"`
	Token string            `yaml:"token"` // Optional access token for API clients
	Hooks ServerHooksConfig `yaml:"hooks"`
}

// ServerHooksConfig represents commands run around the server lifecycle.
type ServerHooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// CatalogConfig represents remote catalog configuration.
type CatalogConfig struct {
	PageSize  int           `yaml:"page_size" default:"25" validate:"gte=1,lte=500"`
	SortBy    string        `yaml:"sort_by" default:"name" validate:"required"`
	SortOrder string        `yaml:"sort_order" default:"asc" validate:"oneof=asc desc"`
	Backend   BackendConfig `yaml:"backend"`
}

// BackendConfig selects the remote catalog implementation.
type BackendConfig struct {
	Type     string         `yaml:"type" default:"swing" validate:"oneof=swing spotify"`
	Settings map[string]any `yaml:"settings"`
}

// PlaybackConfig represents playback collaborator configuration.
type PlaybackConfig struct {
	Hooks           HooksConfig `yaml:"hooks"`
	HookTimeoutSec  int         `yaml:"hook_timeout_sec" default:"30" validate:"gte=1,lte=600"`
	GapCorrectionMs int         `yaml:"gap_correction_ms" default:"0" validate:"gte=0,lte=10000"`
	HistorySize     int         `yaml:"history_size" default:"100" validate:"gte=1,lte=10000"`
}

// HooksConfig represents commands run on queue changes.
type HooksConfig struct {
	OnCommitted []string `yaml:"on_committed"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SWINGDECK_TOKEN"); v != "" {
		c.Server.Token = v
	}

	var keys map[string]string
	switch c.Catalog.Backend.Type {
	case "swing":
		keys = map[string]string{
			"SWING_BASE_URL":     "base_url",
			"SWING_ACCESS_TOKEN": "access_token",
		}
	case "spotify":
		keys = map[string]string{
			"SPOTIFY_CLIENT_ID":     "client_id",
			"SPOTIFY_CLIENT_SECRET": "client_secret",
			"SPOTIFY_REFRESH_TOKEN": "refresh_token",
		}
	}
	for env, key := range keys {
		if v := os.Getenv(env); v != "" {
			if c.Catalog.Backend.Settings == nil {
				c.Catalog.Backend.Settings = make(map[string]any)
			}
			c.Catalog.Backend.Settings[key] = v
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	if len(c.Catalog.Backend.Settings) == 0 {
		return errors.Newf("catalog backend %q requires settings", c.Catalog.Backend.Type)
	}
	return nil
}

// SortOrder returns the configured sort order.
func (c *Config) SortOrder() catalog.SortOrder {
	// Validated as asc|desc, so parsing cannot fail here.
	o, _ := catalog.ParseSortOrder(c.Catalog.SortOrder)
	return o
}
