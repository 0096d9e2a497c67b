// Package config loads the application configuration from YAML with
// environment variable overrides.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Database Database `yaml:"database"`
	Server   Server   `yaml:"server"`
	Engine   Engine   `yaml:"engine"`
	Logging  Logging  `yaml:"logging"`
}

type Database struct {
	Path string `yaml:"path" env:"SOCIALPRESS_DB_PATH"`
}

type Server struct {
	Port      int    `yaml:"port" env:"SOCIALPRESS_PORT"`
	AuthToken string `yaml:"auth_token" env:"SOCIALPRESS_AUTH_TOKEN"`
}

type Engine struct {
	ConcurrentCampaigns int64   `yaml:"concurrent_campaigns" env:"SOCIALPRESS_CONCURRENT_CAMPAIGNS"`
	FetchTimeoutSeconds int     `yaml:"fetch_timeout_seconds" env:"SOCIALPRESS_FETCH_TIMEOUT_SECONDS"`
	TickIntervalMinutes int     `yaml:"tick_interval_minutes" env:"SOCIALPRESS_TICK_INTERVAL_MINUTES"`
	RequestsPerSecond   float64 `yaml:"requests_per_second" env:"SOCIALPRESS_REQUESTS_PER_SECOND"`
}

type Logging struct {
	Level         string `yaml:"level" env:"SOCIALPRESS_LOG_LEVEL"`
	RetentionDays int    `yaml:"retention_days" env:"SOCIALPRESS_LOG_RETENTION_DAYS"`
}

// ConfigDir returns the XDG config directory for socialpress.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "socialpress")
}

// DataDir returns the XDG data directory for socialpress.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "socialpress")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/socialpress/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'socialpress init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file, then applies environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults and
// environment overrides.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{Port: 8080},
		Engine: Engine{
			ConcurrentCampaigns: 1,
			FetchTimeoutSeconds: 30,
			TickIntervalMinutes: 5,
		},
		Logging: Logging{
			Level:         "info",
			RetentionDays: 30,
		},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	return cfg, nil
}

// DatabasePath returns the effective database path from config or the
// XDG default.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(DataDir(), "socialpress.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
