// Package config loads the application configuration from settings.yaml,
// environment variables, and defaults, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Quiz    QuizConfig    `mapstructure:"quiz"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the backend connection settings.
type ServerConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"`
}

// StreamConfig holds streaming-response settings.
type StreamConfig struct {
	IdleTimeout    time.Duration `mapstructure:"-"`
	IdleTimeoutStr string        `mapstructure:"idle_timeout"`
}

// QuizConfig holds quiz grading settings.
type QuizConfig struct {
	RetryPolicy string `mapstructure:"retry_policy"`
}

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

var cfg *Config

// Get returns the loaded configuration, loading defaults first if Load
// was never called.
func Get() (*Config, error) {
	if cfg == nil {
		return Load("")
	}
	return cfg, nil
}

// Load reads configuration from cfgFile, or from the standard search
// paths when cfgFile is empty: ./.sage first, then the XDG config
// location.
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./.sage")
		viper.AddConfigPath(filepath.Join(xdgConfigHome, "sage"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	viper.SetEnvPrefix("SAGE")
	viper.AutomaticEnv()
	bindEnvironmentVariables()

	// A missing config file is fine; defaults and env apply. An explicit
	// file that fails to read is not.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && cfgFile != "" {
			return nil, fmt.Errorf("failed to read config file %s: %w", cfgFile, err)
		}
	}

	c := &Config{}
	if err := viper.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := processDurations(c); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}

	cfg = c
	return c, nil
}

// processDurations parses the string duration fields. Viper does not
// handle time.Duration directly.
func processDurations(c *Config) error {
	var err error
	if c.Server.Timeout, err = time.ParseDuration(c.Server.TimeoutStr); err != nil {
		return fmt.Errorf("invalid server.timeout %q: %w", c.Server.TimeoutStr, err)
	}
	if c.Stream.IdleTimeout, err = time.ParseDuration(c.Stream.IdleTimeoutStr); err != nil {
		return fmt.Errorf("invalid stream.idle_timeout %q: %w", c.Stream.IdleTimeoutStr, err)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.url", "http://localhost:8000")
	viper.SetDefault("server.timeout", "60s")

	viper.SetDefault("stream.idle_timeout", "2s")

	viper.SetDefault("quiz.retry_policy", "always_retry")

	viper.SetDefault("logging.log_file", "./.sage/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")
}

func bindEnvironmentVariables() {
	viper.BindEnv("server.url", "SAGE_SERVER_URL")
	viper.BindEnv("server.timeout", "SAGE_SERVER_TIMEOUT")
	viper.BindEnv("stream.idle_timeout", "SAGE_STREAM_IDLE_TIMEOUT")
	viper.BindEnv("quiz.retry_policy", "SAGE_QUIZ_RETRY_POLICY")
	viper.BindEnv("logging.log_file", "SAGE_LOG_FILE")
	viper.BindEnv("logging.level", "SAGE_LOG_LEVEL")
	viper.BindEnv("logging.preserve", "SAGE_LOG_PRESERVE")
}

// Reset clears the loaded configuration and viper state. Tests use this
// to start from a clean slate.
func Reset() {
	cfg = nil
	viper.Reset()
}
