// Package config manages the csvdb shell configuration stored as YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Config describes which table the shell opens and how it runs.
type Config struct {
	// File is the path of the CSV file, relative to the config file directory
	// when not absolute.
	File string `yaml:"file"`

	// Columns is the column list used when File is missing or empty.
	Columns []string `yaml:"columns"`

	// IDColumn is filled with a generated identifier when left blank on insert.
	// Empty disables generation.
	IDColumn string `yaml:"id_column,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level,omitempty"`

	// Watch reloads the table when File is modified by another process.
	Watch bool `yaml:"watch,omitempty"`

	// History commits File to a git repository in its directory after each
	// change.
	History History `yaml:"history"`
}

// History configures the git history of the table file.
type History struct {
	Enabled bool   `yaml:"enabled"`
	Author  string `yaml:"author,omitempty"`
	Email   string `yaml:"email,omitempty"`
}

// Load reads the YAML file at path on top of defaults.
//
// When the file does not exist, it is created with defaults. A relative File
// is resolved against the directory of path.
func Load(path string, defaults Config) (*Config, error) {
	cfg := defaults
	cfg.Columns = slices.Clone(defaults.Columns)

	data, err := os.ReadFile(path) //nolint:gosec // User-specified config path
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.File != "" && !filepath.IsAbs(cfg.File) {
		cfg.File = filepath.Join(filepath.Dir(path), cfg.File)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &cfg, nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.File == "" {
		return errors.New("file is required")
	}
	if len(c.Columns) == 0 {
		return errors.New("at least one column is required")
	}
	seen := make(map[string]bool, len(c.Columns))
	for i, col := range c.Columns {
		if col == "" {
			return fmt.Errorf("column %d: name is required", i)
		}
		if seen[col] {
			return fmt.Errorf("column %d: duplicate name %q", i, col)
		}
		seen[col] = true
	}
	if c.IDColumn != "" && !seen[c.IDColumn] {
		return fmt.Errorf("id_column %q is not a column", c.IDColumn)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	if c.History.Enabled && (c.History.Author == "") != (c.History.Email == "") {
		return errors.New("history author and email must both be set or both be empty")
	}
	return nil
}

// ParseLevel maps a log level name to a slog.Level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch s {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level: %q", s)
	}
}
