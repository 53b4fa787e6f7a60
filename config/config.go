package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Server contains the HTTP listener settings.
type Server struct {
	Bind    string `toml:"bind"`
	Workers int    `toml:"workers"`
}

// TMDB contains configuration for The Movie Database API.
type TMDB struct {
	APIKey   string `toml:"api_key"`
	Language string `toml:"language"`
}

// Trakt contains configuration for the Trakt API.
type Trakt struct {
	ClientID    string `toml:"client_id"`
	AccessToken string `toml:"access_token"`
}

// Fanart contains configuration for the fanart.tv API.
type Fanart struct {
	APIKey string `toml:"api_key"`
}

// Cache points at the response cache database.
type Cache struct {
	Path string `toml:"path"`
}

// Library points at the local library index database.
type Library struct {
	Path string `toml:"path"`
}

// Logging contains log file rotation settings. An empty File logs to stderr.
type Logging struct {
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
}

// Config encapsulates all configuration values.
type Config struct {
	Server  Server  `toml:"server"`
	TMDB    TMDB    `toml:"tmdb"`
	Trakt   Trakt   `toml:"trakt"`
	Fanart  Fanart  `toml:"fanart"`
	Cache   Cache   `toml:"cache"`
	Library Library `toml:"library"`
	Logging Logging `toml:"logging"`
}

// Default returns a config with every knob at its default. API keys have no
// defaults and come from the file or the environment.
func Default() Config {
	return Config{
		Server: Server{
			Bind:    ":8580",
			Workers: 4,
		},
		TMDB: TMDB{
			Language: "en-US",
		},
		Cache: Cache{
			Path: "mediameld-cache.db",
		},
		Logging: Logging{
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load parses the config file at path, falling back to defaults when the
// file does not exist, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = "mediameld.toml"
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		// Run on defaults plus environment.
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv overrides credentials and the bind address from the environment,
// which wins over the file.
func (c *Config) applyEnv() {
	overrides := []struct {
		name   string
		target *string
	}{
		{"MEDIAMELD_BIND", &c.Server.Bind},
		{"MEDIAMELD_TMDB_API_KEY", &c.TMDB.APIKey},
		{"MEDIAMELD_TRAKT_CLIENT_ID", &c.Trakt.ClientID},
		{"MEDIAMELD_TRAKT_ACCESS_TOKEN", &c.Trakt.AccessToken},
		{"MEDIAMELD_FANART_API_KEY", &c.Fanart.APIKey},
		{"MEDIAMELD_CACHE_PATH", &c.Cache.Path},
		{"MEDIAMELD_LIBRARY_PATH", &c.Library.Path},
		{"MEDIAMELD_LOG_FILE", &c.Logging.File},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.name); v != "" {
			*o.target = v
		}
	}
}

func (c *Config) normalize() error {
	if c.Server.Workers <= 0 {
		c.Server.Workers = 4
	}
	if c.Cache.Path == "" {
		return errors.New("cache.path must not be empty")
	}
	if dir := filepath.Dir(c.Cache.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}
	return nil
}
