// Package config loads and validates the exporter configuration. Flags
// override the file, the file overrides the built-in defaults.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maropu/pg-stats-exporter/pgclient"
	"github.com/maropu/pg-stats-exporter/pkg/chanwriter"
)

// LogConfig controls log output.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
}

// StreamConfig controls the response streaming machinery.
type StreamConfig struct {
	BufferSize int `yaml:"buffer_size"` // bytes per chunk
	Workers    int `yaml:"workers"`
	QueueSize  int `yaml:"queue_size"`
}

// Config is the complete exporter configuration.
type Config struct {
	ListenAddr      string          `yaml:"listen_addr"`
	Postgres        pgclient.Config `yaml:"postgres"`
	Log             LogConfig       `yaml:"log"`
	Stream          StreamConfig    `yaml:"stream"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
}

// Default returns the built-in configuration, a local exporter scraping a
// local PostgreSQL server.
func Default() *Config {
	return &Config{
		ListenAddr: "127.0.0.1:9753",
		Postgres: pgclient.Config{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "docker",
			Database: "postgres",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Stream: StreamConfig{
			BufferSize: chanwriter.DefaultBufferSize,
			Workers:    4,
			QueueSize:  16,
		},
		ShutdownTimeout: 10 * time.Second,
	}
}

// LoadFile reads a YAML config file over the defaults. A missing field
// keeps its default value.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	return config, nil
}

// Validate checks the configuration for unusable values.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr cannot be empty")
	}

	if err := c.Postgres.Validate(); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q not one of debug, info, warn, error", c.Log.Level)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format %q not one of json, text", c.Log.Format)
	}

	if c.Stream.BufferSize <= 0 {
		return fmt.Errorf("stream.buffer_size must be positive, got %d", c.Stream.BufferSize)
	}
	if c.Stream.Workers <= 0 {
		return fmt.Errorf("stream.workers must be positive, got %d", c.Stream.Workers)
	}
	if c.Stream.QueueSize <= 0 {
		return fmt.Errorf("stream.queue_size must be positive, got %d", c.Stream.QueueSize)
	}

	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown_timeout must be positive, got %s", c.ShutdownTimeout)
	}

	return nil
}
