// Package config provides process options for the Ward server: where the
// setup file lives, how to log, and which optional surfaces are enabled.
// Dashboard settings chosen by the user are not here; they live in the setup
// file managed by the settings package.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by ApplyEnvOverrides.
const (
	EnvConfigPath = "WARD_CONFIG_PATH"
	EnvSetupPath  = "WARD_SETUP_PATH"
	EnvLogLevel   = "WARD_LOG_LEVEL"
	EnvLogFormat  = "WARD_LOG_FORMAT"
	EnvAuthToken  = "WARD_MCP_AUTH_TOKEN"
	EnvAuditLog   = "WARD_AUDIT_LOG"
	EnvWatch      = "WARD_SETUP_WATCH"
)

// DefaultPath is the options file read when WARD_CONFIG_PATH is unset.
const DefaultPath = "ward.yaml"

// ServerConfig holds listener settings. The port is not here: it belongs to
// the setup file.
type ServerConfig struct {
	Host              string        `yaml:"host"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
}

// SetupConfig locates the setup file.
type SetupConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// AuditConfig controls audit logging behaviour.
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	LogPath string `yaml:"log_path"`
}

// MCPConfig controls the MCP endpoint.
type MCPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	AuthToken string `yaml:"auth_token"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SystemConfig controls host metric collection.
type SystemConfig struct {
	StoragePath string `yaml:"storage_path"`
}

// Config is the top-level options structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Setup   SetupConfig   `yaml:"setup"`
	Log     LogConfig     `yaml:"log"`
	Audit   AuditConfig   `yaml:"audit"`
	MCP     MCPConfig     `yaml:"mcp"`
	Metrics MetricsConfig `yaml:"metrics"`
	System  SystemConfig  `yaml:"system"`
}

// LoadConfig reads a YAML options file. Fields absent from the file keep
// their DefaultConfig value.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfig returns a new Config populated with default values. Each call
// returns a distinct instance.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			ShutdownTimeout:   15 * time.Second,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		Setup: SetupConfig{
			Path:  "setup.ini",
			Watch: true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		Audit: AuditConfig{
			Enabled: false,
			LogPath: "audit.log",
		},
		MCP: MCPConfig{
			Enabled: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		System: SystemConfig{
			StoragePath: "/",
		},
	}
}

// Validate reports option values that cannot be used.
func (c *Config) Validate() error {
	var errs []error
	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("log.format %q: want json or console", c.Log.Format))
	}
	if c.Setup.Path == "" {
		errs = append(errs, errors.New("setup.path must not be empty"))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, fmt.Errorf("server.shutdown_timeout %s: must be positive", c.Server.ShutdownTimeout))
	}
	if c.Server.ReadHeaderTimeout < 0 || c.Server.IdleTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// ApplyEnvOverrides updates cfg in place with values from environment
// variables. Empty values are ignored.
//   - WARD_SETUP_PATH overrides cfg.Setup.Path
//   - WARD_SETUP_WATCH overrides cfg.Setup.Watch (strconv.ParseBool syntax)
//   - WARD_LOG_LEVEL overrides cfg.Log.Level
//   - WARD_LOG_FORMAT overrides cfg.Log.Format
//   - WARD_MCP_AUTH_TOKEN overrides cfg.MCP.AuthToken
//   - WARD_AUDIT_LOG overrides cfg.Audit.LogPath and enables auditing
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvSetupPath); v != "" {
		cfg.Setup.Path = v
	}
	if v := os.Getenv(EnvWatch); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Setup.Watch = b
		}
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv(EnvAuthToken); v != "" {
		cfg.MCP.AuthToken = v
	}
	if v := os.Getenv(EnvAuditLog); v != "" {
		cfg.Audit.LogPath = v
		cfg.Audit.Enabled = true
	}
}

// EnsureAuthToken generates a random auth token and sets it on cfg if
// cfg.MCP.AuthToken is empty. It returns the token (existing or generated)
// and any error encountered during generation.
func EnsureAuthToken(cfg *Config) (string, error) {
	if cfg.MCP.AuthToken != "" {
		return cfg.MCP.AuthToken, nil
	}
	token, err := GenerateRandomToken()
	if err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	cfg.MCP.AuthToken = token
	return token, nil
}

// GenerateRandomToken returns a 32-character hex-encoded cryptographically
// random token string.
func GenerateRandomToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("rand.Read: %w", err)
	}
	return hex.EncodeToString(b), nil
}
