// Package config loads edltool settings from YAML with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"edltool/internal/archive"
)

// Config holds the edltool settings.
type Config struct {
	// SectorSize overrides detection when non-zero.
	SectorSize int `yaml:"sector_size"`

	// Strict makes checksum mismatches and LBA drift fatal while reading tables.
	Strict bool `yaml:"strict"`

	// Compression is the default algorithm for GPT region backups.
	Compression string `yaml:"compression"`

	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		SectorSize:  0,
		Strict:      false,
		Compression: "zstd",
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// DefaultPath returns $XDG_CONFIG_HOME/edltool/config.yaml, falling back to the
// user config directory.
func DefaultPath() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, "edltool", "config.yaml")
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "edltool", "config.yaml")
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides are applied in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("EDLTOOL_SECTOR_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EDLTOOL_SECTOR_SIZE: %w", err)
		}
		c.SectorSize = n
	}
	if v := os.Getenv("EDLTOOL_STRICT"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EDLTOOL_STRICT: %w", err)
		}
		c.Strict = b
	}
	if v := os.Getenv("EDLTOOL_COMPRESSION"); v != "" {
		c.Compression = strings.ToLower(v)
	}
	if v := os.Getenv("EDLTOOL_LOG_LEVEL"); v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.SectorSize != 0 && (c.SectorSize < 512 || c.SectorSize&(c.SectorSize-1) != 0) {
		return fmt.Errorf("invalid sector size: %d (must be 0 or a power of two >= 512)", c.SectorSize)
	}

	if _, err := archive.Extension(c.Compression); err != nil {
		return fmt.Errorf("invalid compression: %w", err)
	}

	validLevel := false
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid log level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}
