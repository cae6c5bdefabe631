// Package config handles configuration loading for querydeck.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for querydeck.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Defaults  DefaultsConfig  `mapstructure:"defaults"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey        string `mapstructure:"api_key"`
	Model         string `mapstructure:"model"`
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// DefaultsConfig holds default values for querydeck runs.
type DefaultsConfig struct {
	// RowLimit caps rows returned by generated SQL when no limit is given.
	RowLimit int `mapstructure:"row_limit"`
	// Database is the SQLite DSN used when no data source is supplied.
	Database string `mapstructure:"database"`
	// DebugLog is an optional path for the step-level debug log.
	DebugLog string `mapstructure:"debug_log"`
}

// RuntimeConfig holds settings for the remote graph runtime service.
type RuntimeConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
}

// TracingConfig holds settings for the trace upload service.
type TracingConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIKey   string `mapstructure:"api_key"`
	Project  string `mapstructure:"project"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, QUERYDECK_*)
// 2. Project config (.querydeck.yaml in current directory or parent)
// 3. User config (~/.config/querydeck/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Project config takes precedence over the user config.
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.SetEnvPrefix("QUERYDECK")

	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("runtime.endpoint", "QUERYDECK_RUNTIME_ENDPOINT")
	v.BindEnv("runtime.api_key", "QUERYDECK_RUNTIME_API_KEY")
	v.BindEnv("tracing.endpoint", "QUERYDECK_TRACING_ENDPOINT")
	v.BindEnv("tracing.api_key", "QUERYDECK_TRACING_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Runtime.APIKey = expandEnv(cfg.Runtime.APIKey)
	cfg.Tracing.APIKey = expandEnv(cfg.Tracing.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "")
	v.SetDefault("anthropic.use_aws_bedrock", false)

	v.SetDefault("defaults.row_limit", 10)
	v.SetDefault("defaults.database", ":memory:")
	v.SetDefault("defaults.debug_log", "")

	v.SetDefault("runtime.endpoint", "")
	v.SetDefault("runtime.api_key", "")

	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.api_key", "")
	v.SetDefault("tracing.project", "querydeck")
}

// getUserConfigDir returns the XDG config directory for querydeck.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "querydeck")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "querydeck")
	}
	return filepath.Join(home, ".config", "querydeck")
}

// findProjectConfig searches for .querydeck.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".querydeck.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Defaults: DefaultsConfig{
			RowLimit: 10,
			Database: ":memory:",
		},
		Tracing: TracingConfig{
			Project: "querydeck",
		},
	}
}
