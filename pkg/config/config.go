package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Fold      FoldConfig      `mapstructure:"fold"`
	Vim       VimConfig       `mapstructure:"vim"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
}

// FoldConfig selects and tunes the fold computer
type FoldConfig struct {
	Backend         string `mapstructure:"backend"`
	OnlyDefinitions bool   `mapstructure:"only_definitions"`
}

// VimConfig contains settings for the headless editor backend
type VimConfig struct {
	Path           string   `mapstructure:"path"`
	Vimrc          string   `mapstructure:"vimrc"`
	Commands       []string `mapstructure:"commands"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	ScratchDir     string   `mapstructure:"scratch_dir"`
}

// Timeout returns the per-file vim timeout, zero meaning none.
func (c VimConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// ServerConfig contains server-specific configuration
type ServerConfig struct {
	Port          int    `mapstructure:"port"`
	WorkingDir    string `mapstructure:"working_dir"`
	SessionAPIKey string `mapstructure:"session_api_key"`
	CacheSize     int    `mapstructure:"cache_size"`
}

// TelemetryConfig contains telemetry configuration
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// LogConfig contains logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Load loads the configuration from viper
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads the configuration from the given viper instance
func LoadFrom(v *viper.Viper) (*Config, error) {
	cfg := &Config{}

	setDefaults(v)

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	if err := postProcess(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Fold defaults
	v.SetDefault("fold.backend", "python")
	v.SetDefault("fold.only_definitions", false)

	// Vim defaults
	v.SetDefault("vim.path", "vim")
	v.SetDefault("vim.commands", []string{"set shiftwidth=4", "set foldmethod=indent"})
	v.SetDefault("vim.timeout_seconds", 30)

	// Server defaults
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.cache_size", 256)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)

	// Environment variable mappings
	_ = v.BindEnv("server.session_api_key", "FOLDGEN_SESSION_API_KEY", "SESSION_API_KEY")
	_ = v.BindEnv("telemetry.endpoint", "OTEL_EXPORTER_OTLP_ENDPOINT")
}

func postProcess(cfg *Config) error {
	// Set working directory to current directory if not specified
	if cfg.Server.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return err
		}
		cfg.Server.WorkingDir = wd
	}

	if !filepath.IsAbs(cfg.Server.WorkingDir) {
		abs, err := filepath.Abs(cfg.Server.WorkingDir)
		if err != nil {
			return err
		}
		cfg.Server.WorkingDir = abs
	}

	if cfg.Vim.Vimrc != "" && !filepath.IsAbs(cfg.Vim.Vimrc) {
		abs, err := filepath.Abs(cfg.Vim.Vimrc)
		if err != nil {
			return err
		}
		cfg.Vim.Vimrc = abs
	}

	return nil
}
