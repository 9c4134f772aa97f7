// Package config loads runtime settings from the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// DefaultEnvFiles are read, when present, before the environment is parsed
var DefaultEnvFiles = []string{".env", ".env.local"}

// Config holds every setting the loader and CLI need
type Config struct {
	DatabaseURL string        `env:"SDOH_DATABASE_URL"`
	Schema      string        `env:"SDOH_SCHEMA"`
	BatchSize   int           `env:"SDOH_BATCH_SIZE" envDefault:"1000"`
	Timeout     time.Duration `env:"SDOH_TIMEOUT" envDefault:"10m"`
	WorkDir     string        `env:"SDOH_WORKDIR" envDefault:"tmp"`
	DataDir     string        `env:"SDOH_DATA_DIR" envDefault:"data"`
	Registry    string        `env:"SDOH_REGISTRY" envDefault:"datasets.yaml"`
	LogLevel    string        `env:"SDOH_LOG_LEVEL" envDefault:"info"`
	MetricsFile string        `env:"SDOH_METRICS_FILE"`
}

// LoadEnv loads the env files that exist and reports how many were read.
// Variables already set in the environment win.
func LoadEnv(envFiles []string) (int, error) {
	existing := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// Load reads env files then parses and validates the environment
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = DefaultEnvFiles
	}
	if _, err := LoadEnv(envFiles); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	c := &Config{}
	if err := env.Parse(c); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("SDOH_BATCH_SIZE must be positive, got %d", c.BatchSize)
	}
	if c.Timeout < 0 {
		return errors.New("SDOH_TIMEOUT must not be negative")
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("SDOH_LOG_LEVEL: %w", err)
	}
	return nil
}

// LogrusLogLevel returns the configured level, info when unparsable
func (c *Config) LogrusLogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// Logger returns a text logger writing to w at the configured level
func (c *Config) Logger(w io.Writer) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(c.LogrusLogLevel())
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}
