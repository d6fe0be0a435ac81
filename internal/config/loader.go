package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"
)

const (
	// ProjectConfigFile is looked up in the working directory when no
	// explicit path is given
	ProjectConfigFile = "taxsync.yaml"

	// EnvPrefix prefixes every environment override
	EnvPrefix = "TAXSYNC_"
)

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger    *slog.Logger
	lookupEnv func(string) (string, bool)
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger, lookupEnv: os.LookupEnv}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. Config file (path, or taxsync.yaml in the working directory)
// 3. Environment variables (TAXSYNC_*)
//
// An explicit path that cannot be read is an error; a missing project file
// is not.
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config", slog.String("path", path))
		config.Merge(fileConfig)
	} else if fileConfig, err := LoadFromFile(ProjectConfigFile); err == nil {
		l.logger.Debug("Loaded project config", slog.String("path", ProjectConfigFile))
		config.Merge(fileConfig)
	} else if !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to load project config", slog.String("path", ProjectConfigFile), slog.String("error", err.Error()))
	}

	if err := l.applyEnv(config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (l *Loader) applyEnv(c *Config) error {
	strs := map[string]*string{
		"DATA_DIR":       &c.DataDir,
		"DEFAULT_TENANT": &c.DefaultTenant,
		"DEFINITIONS":    &c.Definitions,
		"HTTP_ADDR":      &c.HTTP.Addr,
		"ADMIN_TOKEN":    &c.HTTP.AdminToken,
		"NATS_URL":       &c.NATS.URL,
		"NATS_SUBJECT":   &c.NATS.Subject,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
	}
	for key, dst := range strs {
		if v, ok := l.lookupEnv(EnvPrefix + key); ok {
			*dst = v
			l.logger.Debug("Config overridden from environment", slog.String("var", EnvPrefix+key))
		}
	}

	durations := map[string]*time.Duration{
		"SCHEDULE_DELAY": &c.ScheduleDelay,
		"POLL_INTERVAL":  &c.PollInterval,
	}
	for key, dst := range durations {
		v, ok := l.lookupEnv(EnvPrefix + key)
		if !ok {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = d
	}
	return nil
}
