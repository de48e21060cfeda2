// Package config provides CLI configuration management for the nenavi
// command-line tool. It supports loading configuration from a YAML file,
// an optional .env file, environment variables, and command-line flags.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// OutputFormat defines the supported output formats for CLI results.
type OutputFormat string

const (
	// OutputFormatText is human-readable plain text output.
	OutputFormatText OutputFormat = "text"
	// OutputFormatJSON is JSON-formatted output for machine processing.
	OutputFormatJSON OutputFormat = "json"
	// OutputFormatYAML is YAML-formatted output for machine processing.
	OutputFormatYAML OutputFormat = "yaml"
)

// Default configuration values.
const (
	DefaultServerURL      = "http://localhost:8000"
	DefaultMinutesPath    = "/minutes/api"
	DefaultChatPath       = "/chat/api"
	DefaultTimeout        = 30 * time.Second
	DefaultPollInterval   = 3 * time.Second
	DefaultHealthInterval = 30 * time.Second
	DefaultModel          = "gpt-4o-mini"
	DefaultOutputFormat   = OutputFormatText
	DefaultConfigDir      = ".nenavi"
	DefaultConfigFile     = "config.yaml"
)

// CLIConfig holds the CLI configuration settings.
type CLIConfig struct {
	// ServerURL is the base URL of the NE Navi deployment
	// (scheme://host[:port], no trailing slash).
	ServerURL string `yaml:"server_url"`

	// MinutesPath is the path prefix of the minutes service on ServerURL.
	MinutesPath string `yaml:"minutes_path,omitempty"`

	// ChatPath is the path prefix of the chat service on ServerURL.
	ChatPath string `yaml:"chat_path,omitempty"`

	// Timeout is the default timeout for individual API requests.
	Timeout time.Duration `yaml:"timeout"`

	// PollInterval is the delay between background job status checks.
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`

	// HealthInterval is the delay between health checks in watch mode.
	HealthInterval time.Duration `yaml:"health_interval,omitempty"`

	// Model is the default model name sent with draft and AI edit requests.
	Model string `yaml:"model,omitempty"`

	// OutputFormat specifies the default output format for commands.
	OutputFormat OutputFormat `yaml:"output_format"`

	// Debug enables verbose debug logging.
	Debug bool `yaml:"debug,omitempty"`
}

// DefaultConfig returns a CLIConfig with default values.
func DefaultConfig() *CLIConfig {
	return &CLIConfig{
		ServerURL:      DefaultServerURL,
		MinutesPath:    DefaultMinutesPath,
		ChatPath:       DefaultChatPath,
		Timeout:        DefaultTimeout,
		PollInterval:   DefaultPollInterval,
		HealthInterval: DefaultHealthInterval,
		Model:          DefaultModel,
		OutputFormat:   DefaultOutputFormat,
	}
}

// ConfigDir returns the configuration directory path.
// Uses $NENAVI_CONFIG_DIR if set, otherwise ~/.nenavi
func ConfigDir() (string, error) {
	if dir := os.Getenv("NENAVI_CONFIG_DIR"); dir != "" {
		return dir, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}

	return filepath.Join(home, DefaultConfigDir), nil
}

// ConfigPath returns the full path to the configuration file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultConfigFile), nil
}

// LoadConfig loads the CLI configuration.
// Configuration is loaded in this order (later sources override earlier):
//  1. Default values
//  2. Config file (~/.nenavi/config.yaml or $NENAVI_CONFIG_DIR/config.yaml)
//  3. Environment variables (NENAVI_SERVER_URL, NENAVI_TIMEOUT, ...),
//     with a .env file in the working directory loaded first if present.
func LoadConfig() (*CLIConfig, error) {
	cfg := DefaultConfig()

	configPath, err := ConfigPath()
	if err != nil {
		return nil, fmt.Errorf("getting config path: %w", err)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// A local .env is a convenience for development; ignore load errors.
	_ = godotenv.Load()

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// configFile mirrors CLIConfig with durations as strings for YAML.
type configFile struct {
	ServerURL      string       `yaml:"server_url"`
	MinutesPath    string       `yaml:"minutes_path,omitempty"`
	ChatPath       string       `yaml:"chat_path,omitempty"`
	Timeout        string       `yaml:"timeout,omitempty"`
	PollInterval   string       `yaml:"poll_interval,omitempty"`
	HealthInterval string       `yaml:"health_interval,omitempty"`
	Model          string       `yaml:"model,omitempty"`
	OutputFormat   OutputFormat `yaml:"output_format,omitempty"`
	Debug          bool         `yaml:"debug,omitempty"`
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *CLIConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fileCfg configFile
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fileCfg.ServerURL != "" {
		cfg.ServerURL = fileCfg.ServerURL
	}
	if fileCfg.MinutesPath != "" {
		cfg.MinutesPath = fileCfg.MinutesPath
	}
	if fileCfg.ChatPath != "" {
		cfg.ChatPath = fileCfg.ChatPath
	}
	if fileCfg.Model != "" {
		cfg.Model = fileCfg.Model
	}
	if fileCfg.OutputFormat != "" {
		cfg.OutputFormat = fileCfg.OutputFormat
	}
	cfg.Debug = fileCfg.Debug

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fileCfg.Timeout, &cfg.Timeout},
		{fileCfg.PollInterval, &cfg.PollInterval},
		{fileCfg.HealthInterval, &cfg.HealthInterval},
	} {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", d.raw, err)
		}
		*d.dst = parsed
	}

	return nil
}

// loadFromEnv overlays environment variables onto the configuration.
func loadFromEnv(cfg *CLIConfig) {
	if v := os.Getenv("NENAVI_SERVER_URL"); v != "" {
		cfg.ServerURL = v
	}

	if v := os.Getenv("NENAVI_MINUTES_PATH"); v != "" {
		cfg.MinutesPath = v
	}

	if v := os.Getenv("NENAVI_CHAT_PATH"); v != "" {
		cfg.ChatPath = v
	}

	if v := os.Getenv("NENAVI_TIMEOUT"); v != "" {
		if timeout, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = timeout
		}
	}

	if v := os.Getenv("NENAVI_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}

	if v := os.Getenv("NENAVI_HEALTH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HealthInterval = d
		}
	}

	if v := os.Getenv("NENAVI_MODEL"); v != "" {
		cfg.Model = v
	}

	if v := os.Getenv("NENAVI_OUTPUT_FORMAT"); v != "" {
		cfg.OutputFormat = OutputFormat(v)
	}

	if v := os.Getenv("NENAVI_DEBUG"); v == "true" || v == "1" {
		cfg.Debug = true
	}
}

// Validate checks that the configuration is valid.
func (c *CLIConfig) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("server_url must be a URL like http://host:port, got %q", c.ServerURL)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}

	if !c.OutputFormat.IsValid() {
		return fmt.Errorf("invalid output_format: %q (must be text, json, or yaml)", c.OutputFormat)
	}

	return nil
}

// MinutesURL returns the base URL of the minutes service (no trailing slash).
func (c *CLIConfig) MinutesURL() string {
	return strings.TrimRight(c.ServerURL, "/") + c.MinutesPath
}

// ChatURL returns the base URL of the chat service (no trailing slash).
func (c *CLIConfig) ChatURL() string {
	return strings.TrimRight(c.ServerURL, "/") + c.ChatPath
}

// IsValid checks if the output format is valid.
func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatText, OutputFormatJSON, OutputFormatYAML:
		return true
	default:
		return false
	}
}

// String returns the string representation of the output format.
func (f OutputFormat) String() string {
	return string(f)
}

// SaveConfig saves the configuration to the config file.
func SaveConfig(cfg *CLIConfig) error {
	configDir, err := ConfigDir()
	if err != nil {
		return fmt.Errorf("getting config directory: %w", err)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	fileCfg := configFile{
		ServerURL:      cfg.ServerURL,
		MinutesPath:    cfg.MinutesPath,
		ChatPath:       cfg.ChatPath,
		Timeout:        cfg.Timeout.String(),
		PollInterval:   cfg.PollInterval.String(),
		HealthInterval: cfg.HealthInterval.String(),
		Model:          cfg.Model,
		OutputFormat:   cfg.OutputFormat,
		Debug:          cfg.Debug,
	}

	data, err := yaml.Marshal(&fileCfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	configPath := filepath.Join(configDir, DefaultConfigFile)
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}
