// Package config loads scholarkit configuration from a YAML file with
// environment variable overrides, and validates provider credentials up
// front so misconfiguration fails at startup instead of on the first
// model call.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Supported model providers.
const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// Config is the top-level scholarkit configuration.
type Config struct {
	// Provider selects the hosted model backend: openai, bedrock, or
	// gemini.
	Provider string `yaml:"provider"`

	// Model overrides the provider's default model identifier.
	Model string `yaml:"model"`

	Server  ServerConfig  `yaml:"server"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the chat server.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// RedisConfig configures the optional Redis-backed memory. An empty Addr
// selects in-memory history.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Structured bool   `yaml:"structured"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	OTLPEndpoint  string `yaml:"otlp_endpoint"`
	ConsoleExport bool   `yaml:"console_export"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Provider: ProviderOpenAI,
		Server:   ServerConfig{Addr: ":8080"},
		Logging:  LoggingConfig{Level: "info", Structured: true},
	}
}

// Load reads configuration from path, applies environment overrides, and
// validates the result. An empty path skips the file and uses defaults
// plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides file values from SCHOLARKIT_* environment variables.
func (c *Config) applyEnv() {
	if v := os.Getenv("SCHOLARKIT_PROVIDER"); v != "" {
		c.Provider = v
	}
	if v := os.Getenv("SCHOLARKIT_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("SCHOLARKIT_SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("SCHOLARKIT_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("SCHOLARKIT_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("SCHOLARKIT_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("SCHOLARKIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SCHOLARKIT_OTLP_ENDPOINT"); v != "" {
		c.Tracing.OTLPEndpoint = v
	}
}

// Validate checks the provider selection and fails fast when the selected
// provider's credentials are absent from the environment.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("provider %q selected but OPENAI_API_KEY is not set", c.Provider)
		}
	case ProviderBedrock:
		// Bedrock accepts explicit keys or any ambient AWS credential
		// source (profile, instance role). Only reject a half-configured
		// static pair.
		id, secret := os.Getenv("AWS_ACCESS_KEY_ID"), os.Getenv("AWS_SECRET_ACCESS_KEY")
		if (id == "") != (secret == "") {
			return fmt.Errorf("provider %q needs both AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY, or neither", c.Provider)
		}
	case ProviderGemini:
		if os.Getenv("GEMINI_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("provider %q selected but neither GEMINI_API_KEY nor GOOGLE_API_KEY is set", c.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q (want %s, %s, or %s)", c.Provider, ProviderOpenAI, ProviderBedrock, ProviderGemini)
	}

	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}

	return nil
}
