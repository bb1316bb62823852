// Package config loads ghusers settings from defaults, an optional YAML file
// and GHUSERS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. GHUSERS_API_TOKEN.
const EnvPrefix = "GHUSERS"

// Config is the full application configuration.
type Config struct {
	API     APIConfig     `mapstructure:"api" yaml:"api"`
	Network NetworkConfig `mapstructure:"network" yaml:"network"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// APIConfig points at the upstream users API.
type APIConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url" yaml:"base_url"`
	// Token is sent as a bearer token to the API host only.
	Token string `mapstructure:"token" yaml:"token,omitempty"`
}

type NetworkConfig struct {
	// ResourceTimeout bounds each request, including time spent waiting for
	// connectivity.
	ResourceTimeout time.Duration `mapstructure:"resource_timeout" validate:"gt=0" yaml:"resource_timeout"`
	// ConnectivityPoll is how often a waiting request retries its dial.
	ConnectivityPoll time.Duration `mapstructure:"connectivity_poll" validate:"gt=0" yaml:"connectivity_poll"`
}

type CacheConfig struct {
	// Root is the cache directory. Empty means the per-user cache dir.
	Root string `mapstructure:"root" yaml:"root,omitempty"`
	// SweepInterval is how often serve clears stale scratch files.
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0" yaml:"sweep_interval"`
	// ScratchMaxAge is how long a scratch file may sit unmodified before
	// it is treated as a leftover.
	ScratchMaxAge time.Duration `mapstructure:"scratch_max_age" validate:"gt=0" yaml:"scratch_max_age"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required,hostname_port" yaml:"addr"`
	// APIToken protects /v1. Empty disables auth.
	APIToken        string        `mapstructure:"api_token" yaml:"api_token,omitempty"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0" yaml:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error DEBUG INFO WARN ERROR" yaml:"level"`
	Format string `mapstructure:"format" validate:"oneof=text json" yaml:"format"`
	// File enables rotated file output instead of stderr.
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0" yaml:"max_backups"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{BaseURL: "https://api.github.com"},
		Network: NetworkConfig{
			ResourceTimeout:  60 * time.Second,
			ConnectivityPoll: time.Second,
		},
		Cache: CacheConfig{
			SweepInterval: 10 * time.Minute,
			ScratchMaxAge: time.Hour,
		},
		Server: ServerConfig{
			Addr:            "127.0.0.1:9090",
			ShutdownTimeout: 30 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// Load reads configuration. path may be empty, in which case
// $XDG_CONFIG_HOME/ghusers/config.yaml is used when present.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	setupViper(v, path)

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Save writes cfg as YAML, creating parent directories. The file is
// owner-only since it may hold tokens.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	b, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(configDir(), "config.yaml")
}

func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ghusers")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config", "ghusers")
	}
	return "."
}

func setupViper(v *viper.Viper, path string) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return
	}
	v.AddConfigPath(configDir())
	v.SetConfigName("config")
	v.SetConfigType("yaml")
}

// setDefaults registers every key so that environment overrides are seen by
// Unmarshal even when no file sets them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.token", d.API.Token)
	v.SetDefault("network.resource_timeout", d.Network.ResourceTimeout)
	v.SetDefault("network.connectivity_poll", d.Network.ConnectivityPoll)
	v.SetDefault("cache.root", d.Cache.Root)
	v.SetDefault("cache.sweep_interval", d.Cache.SweepInterval)
	v.SetDefault("cache.scratch_max_age", d.Cache.ScratchMaxAge)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.api_token", d.Server.APIToken)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
}
