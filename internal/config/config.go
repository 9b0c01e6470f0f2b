// ABOUTME: Configuration loading and parsing for assist-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete assist-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Model     ModelConfig     `yaml:"model"`
	Responder ResponderConfig `yaml:"responder"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration for serving the API
// over a tailnet instead of a plain TCP listener
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// AuthConfig holds authentication configuration. An empty JWTSecret
// disables bearer auth on the API routes.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ModelConfig holds the completion service configuration. The gateway is
// pinned to one model identifier; RequestTimeout bounds each upstream call.
type ModelConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`

	RequestTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// ResponderConfig holds local responder configuration. When Enabled, the
// gateway answers from the keyword responder instead of calling the
// completion service (demo mode).
type ResponderConfig struct {
	Enabled bool `yaml:"enabled"`

	Delay time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	DelayRaw string `yaml:"delay"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultRequestTimeout is the upstream wall-clock budget when the config
// file does not set one.
const DefaultRequestTimeout = 30 * time.Second

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values that have sensible fallbacks.
func applyDefaults(cfg *Config) {
	if cfg.Model.RequestTimeout == 0 {
		cfg.Model.RequestTimeout = DefaultRequestTimeout
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	// The completion service is only optional in responder demo mode
	if !c.Responder.Enabled {
		if c.Model.BaseURL == "" {
			return fmt.Errorf("model.base_url is required (or enable the local responder)")
		}
		if c.Model.Model == "" {
			return fmt.Errorf("model.model is required (or enable the local responder)")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Model.RequestTimeoutRaw != "" {
		cfg.Model.RequestTimeout, err = time.ParseDuration(cfg.Model.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Model.RequestTimeoutRaw, err)
		}
	}

	if cfg.Responder.DelayRaw != "" {
		cfg.Responder.Delay, err = time.ParseDuration(cfg.Responder.DelayRaw)
		if err != nil {
			return fmt.Errorf("parsing responder delay %q: %w", cfg.Responder.DelayRaw, err)
		}
	}

	return nil
}
