// Package config loads the filters-server configuration from a YAML file.
// Values missing from the file keep their defaults; a few environment
// variables override the file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"filters.lopezb.com/internal/filters/bloom"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Filters FiltersConfig `yaml:"filters"`
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	MaxConnections  int           `yaml:"max_connections"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
}

// FiltersConfig sizes the filters BF.ADD and BF.MADD create for missing keys.
type FiltersConfig struct {
	ErrorRate float64 `yaml:"error_rate"`
	Capacity  uint64  `yaml:"capacity"`
	Algorithm string  `yaml:"algorithm"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            6489,
			MaxConnections:  100,
			ShutdownTimeout: 5 * time.Second,
		},
		Filters: FiltersConfig{
			ErrorRate: 0.01,
			Capacity:  1000,
			Algorithm: bloom.AlgorithmXXHash,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults
// with environment overrides applied. The result is not validated: callers
// layer their own overrides on top and then call Validate.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		defer file.Close()

		decoder := yaml.NewDecoder(file)
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("FILTERS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: FILTERS_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("FILTERS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks that the configuration can start a server.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: port %d out of range", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("config: max_connections must be positive, got %d", c.Server.MaxConnections)
	}
	if _, _, err := bloom.EstimateParameters(c.Filters.ErrorRate, c.Filters.Capacity); err != nil {
		return fmt.Errorf("config: filters: %w", err)
	}
	if _, err := bloom.LookupHash(c.Filters.Algorithm); err != nil {
		return fmt.Errorf("config: filters: %w", err)
	}
	return nil
}
