// Package config loads the diary-pilot configuration file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is used when no --config flag is given.
const DefaultPath = "config.yaml"

// Config holds the settings for export and ingest.
type Config struct {
	DiaryPath string        `yaml:"diary_path"`
	Dump      string        `yaml:"dump"`
	DB        string        `yaml:"db"`
	Archive   ArchiveConfig `yaml:"archive"`
	Git       GitConfig     `yaml:"git"`
	Log       LogConfig     `yaml:"log"`
	// ClockSkew is the largest tolerated difference between the local and the
	// archive clock. Zero disables the check.
	ClockSkew time.Duration `yaml:"clock_skew"`
}

// ArchiveConfig locates the remote archive.
type ArchiveConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// GitConfig enables committing the diary after ingest. An empty Repo disables it.
type GitConfig struct {
	Repo string `yaml:"repo"`
	Push bool   `yaml:"push"`
}

// LogConfig controls logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns the configuration used for missing keys.
func DefaultConfig() *Config {
	return &Config{
		DB:        "~/.diary-pilot/ledger.db",
		Log:       LogConfig{Level: "info"},
		ClockSkew: 5 * time.Second,
	}
}

// Load reads path, applies defaults and expands "~" in paths.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	for _, p := range []*string{&cfg.DiaryPath, &cfg.Dump, &cfg.DB, &cfg.Git.Repo, &cfg.Log.File} {
		if *p, err = ExpandHome(*p); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	var errs []error
	if c.DiaryPath == "" {
		errs = append(errs, errors.New("diary_path is required"))
	}
	if c.Archive.URL == "" {
		errs = append(errs, errors.New("archive.url is required"))
	} else if u, err := url.Parse(c.Archive.URL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("archive.url %q is not an absolute url", c.Archive.URL))
	}
	if c.ClockSkew < 0 {
		errs = append(errs, fmt.Errorf("clock_skew must not be negative, got %s", c.ClockSkew))
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown log level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
