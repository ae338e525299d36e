// Manages the tool configuration stored in shelf.yaml.

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration is looked up when not specified.
const DefaultPath = "shelf.yaml"

// Config holds all settings. Loaded from shelf.yaml, overridden by SHELF_*
// environment variables and then by command line flags.
type Config struct {
	// File is the library file. Relative paths are relative to the working
	// directory.
	File string `yaml:"file"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`

	// ExportDir is where snapshots go when export is given no path.
	ExportDir string `yaml:"export_dir"`

	// History configures the git history of the library file.
	History History `yaml:"history"`
}

// History configures the git history of the library file.
type History struct {
	// Enabled commits the library file after every change. The repository is
	// the directory holding the file.
	Enabled bool `yaml:"enabled"`

	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		File:      "library.json",
		LogLevel:  "info",
		ExportDir: ".",
		History: History{
			AuthorName:  "shelf",
			AuthorEmail: "shelf@localhost",
		},
	}
}

// Load reads the configuration at path on top of the defaults.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is provided by the CLI user
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from SHELF_FILE, SHELF_LOG_LEVEL,
// SHELF_EXPORT_DIR and SHELF_HISTORY. Empty variables are ignored.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("SHELF_FILE"); v != "" {
		c.File = v
	}
	if v := getenv("SHELF_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("SHELF_EXPORT_DIR"); v != "" {
		c.ExportDir = v
	}
	if v := getenv("SHELF_HISTORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("SHELF_HISTORY: %w", err)
		}
		c.History.Enabled = b
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.File) == "" {
		return errors.New("file is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}
	if c.ExportDir == "" {
		return errors.New("export_dir is required")
	}
	if c.History.Enabled && (c.History.AuthorName == "" || c.History.AuthorEmail == "") {
		return errors.New("history: author_name and author_email are required")
	}
	return nil
}
