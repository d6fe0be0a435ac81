// Package config provides configuration loading and validation for taxsync.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the complete taxsync configuration
type Config struct {
	// DataDir holds one SQLite database per tenant.
	DataDir string `yaml:"data_dir" validate:"required"`
	// DefaultTenant is used when a command or request names no tenant.
	DefaultTenant string `yaml:"default_tenant" validate:"required,tenant"`
	// Definitions is the directory of taxonomy definitions (CUE or YAML).
	Definitions string `yaml:"definitions" validate:"required"`
	// ScheduleDelay is how long a scheduled schema update waits, so that a
	// burst of checks collapses into one run.
	ScheduleDelay time.Duration `yaml:"schedule_delay" validate:"gte=0"`
	// PollInterval is how often workers look for tickets written by other
	// processes.
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`

	HTTP HTTPConfig `yaml:"http"`
	NATS NATSConfig `yaml:"nats"`
	Log  LogConfig  `yaml:"log"`
}

// HTTPConfig configures the admin HTTP surface
type HTTPConfig struct {
	Addr string `yaml:"addr" validate:"required,hostname_port"`
	// AdminToken, when set, must be presented as a bearer token on write
	// endpoints.
	AdminToken string `yaml:"admin_token"`
}

// NATSConfig configures the provisioning event subscription
type NATSConfig struct {
	// URL is the NATS server URL (empty = provisioning events disabled)
	URL     string `yaml:"url" validate:"omitempty,url"`
	Subject string `yaml:"subject" validate:"required"`
}

// LogConfig configures logging
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		DataDir:       "data",
		DefaultTenant: "default",
		Definitions:   "definitions",
		ScheduleDelay: time.Minute,
		PollInterval:  30 * time.Second,
		HTTP: HTTPConfig{
			Addr: "127.0.0.1:8080",
		},
		NATS: NATSConfig{
			Subject: "taxsync.tenant.provisioned",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

var tenantPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,62}$`)

// ValidTenant reports whether id is usable as a tenant identifier. Tenant
// ids name database files, so the alphabet is restricted.
func ValidTenant(id string) bool {
	return tenantPattern.MatchString(id)
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	if err := validate.RegisterValidation("tenant", func(fl validator.FieldLevel) bool {
		return ValidTenant(fl.Field().String())
	}); err != nil {
		panic(fmt.Sprintf("failed to register tenant validator: %v", err))
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s failed %q check", fieldPath(fe.Namespace()), fe.Tag())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// fieldPath turns "Config.HTTP.Addr" into "http.addr".
func fieldPath(ns string) string {
	parts := strings.Split(ns, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		parts[i] = toSnake(p)
	}
	return strings.Join(parts, ".")
}

func toSnake(s string) string {
	switch s {
	case "HTTP", "NATS", "URL":
		return strings.ToLower(s)
	}
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LogConfig) SlogLevel() slog.Level {
	switch l.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// DatabasePath returns the SQLite file for a tenant.
func (c *Config) DatabasePath(tenant string) string {
	return filepath.Join(c.DataDir, tenant+".db")
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.DataDir != "" {
		c.DataDir = other.DataDir
	}
	if other.DefaultTenant != "" {
		c.DefaultTenant = other.DefaultTenant
	}
	if other.Definitions != "" {
		c.Definitions = other.Definitions
	}
	if other.ScheduleDelay != 0 {
		c.ScheduleDelay = other.ScheduleDelay
	}
	if other.PollInterval != 0 {
		c.PollInterval = other.PollInterval
	}

	// HTTP
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
	if other.HTTP.AdminToken != "" {
		c.HTTP.AdminToken = other.HTTP.AdminToken
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.Subject != "" {
		c.NATS.Subject = other.NATS.Subject
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}
