// Package config loads and defaults the hub's top-level configuration:
// listen address, memory storage, auth credentials, config-drift risk
// tuning, and the set of bridge servers to supervise.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/lancejames221b/agent-hivemind/pkg/auth"
	"github.com/lancejames221b/agent-hivemind/pkg/bridge"
	"github.com/lancejames221b/agent-hivemind/pkg/configbackup"
	"github.com/lancejames221b/agent-hivemind/pkg/logging"
	"github.com/lancejames221b/agent-hivemind/pkg/memory"
)

// DefaultPath is used when neither --config nor CONFIG_PATH is set.
const DefaultPath = "config/config.json"

// Config is the hub process's full configuration, decoded from JSON.
type Config struct {
	Listen   ListenConfig            `json:"listen"`
	Logging  LoggingConfig           `json:"logging"`
	Security SecurityConfig          `json:"security"`
	Storage  memory.ResolvedConfig   `json:"storage"`
	Auth     AuthConfig              `json:"auth"`
	Drift    configbackup.RiskConfig `json:"drift_patterns"`
	Bridges  []bridge.ServerConfig   `json:"bridges"`
}

// ListenConfig controls the hub's HTTP bind address.
type ListenConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

func (c ListenConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ListenConfig) WithDefaults() ListenConfig {
	if strings.TrimSpace(c.Host) == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port <= 0 {
		c.Port = 8787
	}
	return c
}

// SecurityConfig holds the "security.tls.*" keys spec.md's environment
// section names explicitly.
type SecurityConfig struct {
	TLS TLSConfig `json:"tls"`
}

// TLSConfig configures an optional TLS listener.
type TLSConfig struct {
	Enabled  bool   `json:"enabled"`
	CertFile string `json:"cert_file"`
	KeyFile  string `json:"key_file"`
}

// LoggingConfig mirrors logging.Config with JSON tags.
type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

func (c LoggingConfig) resolve(component string) logging.Config {
	return logging.Config{Level: c.Level, Pretty: c.Pretty, Component: component}
}

// AuthConfig configures pkg/auth.Manager.
type AuthConfig struct {
	Secret    string            `json:"secret"`
	TokenTTLM int               `json:"token_ttl_minutes"`
	Users     []auth.Credential `json:"users"`
}

func (c AuthConfig) WithDefaults() AuthConfig {
	if c.TokenTTLM <= 0 {
		c.TokenTTLM = 720 // 12h
	}
	return c
}

// WithDefaults fills in every section's zero values, mirroring the
// per-section WithDefaults convention used throughout this module.
func (c *Config) WithDefaults() *Config {
	if c == nil {
		c = &Config{}
	}
	c.Listen = c.Listen.WithDefaults()
	c.Storage = c.Storage.WithDefaults()
	c.Auth = c.Auth.WithDefaults()
	if len(c.Drift.SecurityKeywords) == 0 && len(c.Drift.ServicePatterns) == 0 && len(c.Drift.NetworkPatterns) == 0 {
		c.Drift = configbackup.DefaultRiskConfig()
	}
	return c
}

// Load reads and decodes the JSON file at path, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg.WithDefaults(), nil
}

// ResolvePath implements spec.md's --config/CONFIG_PATH/default
// resolution order.
func ResolvePath(flagValue string) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if env := os.Getenv("CONFIG_PATH"); strings.TrimSpace(env) != "" {
		return env
	}
	return DefaultPath
}

// BaseLogger builds the process-wide logger from the config's logging
// section.
func (c Config) BaseLogger(component string) logging.Config {
	return c.Logging.resolve(component)
}
