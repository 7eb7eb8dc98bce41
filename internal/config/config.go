package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the daemon
type Config struct {
	URL            string
	Output         string
	Interval       time.Duration
	Resolution     time.Duration
	RequestTimeout time.Duration
	DBPath         string // empty disables fetch history
	Log            LogConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Options are the command line inputs that take precedence over file and env configuration
type Options struct {
	ConfigPath string
	EnvPath    string
	URL        string
	Output     string
}

// Load loads configuration from an optional .env file, the config file and environment variables
func Load(opts Options) (*Config, error) {
	if opts.EnvPath != "" {
		if _, err := os.Stat(opts.EnvPath); err == nil {
			if err := godotenv.Load(opts.EnvPath); err != nil {
				return nil, fmt.Errorf("unable to load environment variables from file: %w", err)
			}
		}
	}

	v := viper.New()

	// Set defaults
	v.SetDefault("url", "")
	v.SetDefault("output", "")
	v.SetDefault("interval", 30*time.Second)
	v.SetDefault("resolution", 30*time.Second)
	v.SetDefault("request_timeout", 20*time.Second)
	v.SetDefault("db_path", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/pollfetch")
	v.AddConfigPath(".")

	if configPath := os.Getenv("POLLFETCH_CONFIG_PATH"); configPath != "" {
		v.SetConfigFile(configPath)
	}
	if opts.ConfigPath != "" {
		v.SetConfigFile(opts.ConfigPath)
	}

	// Read config file (if it exists)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults + env vars
	}

	v.SetEnvPrefix("POLLFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if opts.URL != "" {
		v.Set("url", opts.URL)
	}
	if opts.Output != "" {
		v.Set("output", opts.Output)
	}

	cfg := &Config{
		URL:            v.GetString("url"),
		Output:         v.GetString("output"),
		Interval:       v.GetDuration("interval"),
		Resolution:     v.GetDuration("resolution"),
		RequestTimeout: v.GetDuration("request_timeout"),
		DBPath:         v.GetString("db_path"),
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// validate validates the configuration values
func validate(cfg *Config) error {
	if cfg.URL == "" {
		return fmt.Errorf("url is required")
	}

	if cfg.Output == "" {
		return fmt.Errorf("output is required")
	}

	if cfg.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	if cfg.Resolution <= 0 {
		return fmt.Errorf("resolution must be greater than 0")
	}

	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("request_timeout must not be negative")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(cfg.Log.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", cfg.Log.Level)
	}

	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[strings.ToLower(cfg.Log.Format)] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", cfg.Log.Format)
	}

	return nil
}
