// ABOUTME: Configuration loading and parsing for bylexa-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete bylexa-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Database DatabaseConfig `yaml:"database"`
	Intent   IntentConfig   `yaml:"intent"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds the websocket server address and tuning knobs
type ServerConfig struct {
	Addr string `yaml:"addr"`

	// QueueSize bounds the dispatcher work queue. Enqueue blocks when full,
	// applying backpressure on the reader without reordering frames.
	QueueSize int `yaml:"queue_size"`

	// SendBuffer is the per-connection outbound frame buffer. A connection
	// whose buffer fills up is treated as dead and cleaned up.
	SendBuffer int `yaml:"send_buffer"`

	PingInterval time.Duration `yaml:"-"`
	PongTimeout  time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PingIntervalRaw string `yaml:"ping_interval"`
	PongTimeoutRaw  string `yaml:"pong_timeout"`
}

// AuthConfig holds authentication configuration.
// Token is the gateway's local bearer token; JWTSecret enables HS256
// signature verification; AllowStructural enables the legacy
// shape-and-expiry check (no signature verification).
type AuthConfig struct {
	Token           string `yaml:"token"`
	JWTSecret       string `yaml:"jwt_secret"`
	AllowStructural bool   `yaml:"allow_structural"`
}

// DatabaseConfig holds the issued-token store location
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// IntentConfig holds the command interpreter endpoint configuration
type IntentConfig struct {
	Endpoint string `yaml:"endpoint"`

	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Defaults applied when fields are absent from the file.
const (
	DefaultAddr         = "localhost:8765"
	DefaultQueueSize    = 1024
	DefaultSendBuffer   = 64
	DefaultPingInterval = 30 * time.Second
	DefaultPongTimeout  = 75 * time.Second
)

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

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration with all defaults applied and no
// authentication secrets set. Used by tests and the init command.
func Default() *Config {
	cfg := &Config{}
	cfg.Auth.AllowStructural = true
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultAddr
	}
	if c.Server.QueueSize == 0 {
		c.Server.QueueSize = DefaultQueueSize
	}
	if c.Server.SendBuffer == 0 {
		c.Server.SendBuffer = DefaultSendBuffer
	}
	if c.Server.PingIntervalRaw == "" {
		c.Server.PingInterval = DefaultPingInterval
	}
	if c.Server.PongTimeoutRaw == "" {
		c.Server.PongTimeout = DefaultPongTimeout
	}
	if c.Intent.TimeoutRaw == "" {
		c.Intent.Timeout = 30 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
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

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Server.QueueSize < 0 {
		return fmt.Errorf("server.queue_size must be positive")
	}
	if c.Server.SendBuffer < 0 {
		return fmt.Errorf("server.send_buffer must be positive")
	}
	if c.Auth.Token == "" && c.Auth.JWTSecret == "" && !c.Auth.AllowStructural {
		return fmt.Errorf("auth requires at least one of token, jwt_secret, or allow_structural")
	}
	if c.Server.PingInterval > 0 && c.Server.PongTimeout <= c.Server.PingInterval {
		return fmt.Errorf("server.pong_timeout must exceed server.ping_interval")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Server.PingIntervalRaw != "" {
		cfg.Server.PingInterval, err = time.ParseDuration(cfg.Server.PingIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing ping_interval %q: %w", cfg.Server.PingIntervalRaw, err)
		}
	}

	if cfg.Server.PongTimeoutRaw != "" {
		cfg.Server.PongTimeout, err = time.ParseDuration(cfg.Server.PongTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing pong_timeout %q: %w", cfg.Server.PongTimeoutRaw, err)
		}
	}

	if cfg.Intent.TimeoutRaw != "" {
		cfg.Intent.Timeout, err = time.ParseDuration(cfg.Intent.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing intent timeout %q: %w", cfg.Intent.TimeoutRaw, err)
		}
	}

	return nil
}
