// Package config loads the hearth configuration from file and
// environment. Configuration is returned as a value and injected into the
// components that need it; there is no package-level config instance.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig locates the local record store.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// RemoteConfig addresses the cloud document store for one account.
type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	UID     string `mapstructure:"uid"`
	Token   string `mapstructure:"token"`
}

// LogConfig controls optional file logging.
type LogConfig struct {
	// File receives a copy of all log output when set; rotation keeps it
	// bounded.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// Load reads configuration with the usual precedence: defaults, then the
// config file (the given path, or ~/.hearth.yaml when empty), then
// HEARTH_* environment variables. A missing config file is fine;
// everything has a default or can come from the environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("database.path", defaultDBPath())
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigName(".hearth")
		v.AddConfigPath(home)
		// The default config file is optional.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("HEARTH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "hearth.db"
	}
	return filepath.Join(home, ".hearth", "hearth.db")
}
