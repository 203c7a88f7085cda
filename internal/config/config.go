// Package config assembles runtime settings from, in order of increasing
// precedence: built-in defaults, a .env file / environment variables, a
// JSON config file (-c/-config), and command-line flags.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Config holds runtime settings for the note store.
type Config struct {
	// DataDir is the root of everything persisted: database, key file,
	// attachment blobs, and the sync mirror.
	DataDir string

	// AutosaveDebounce is the per-note quiet period before an edit is
	// written through.
	AutosaveDebounce time.Duration

	// SyncInterval is the cadence of the background mirror refresh.
	SyncInterval time.Duration

	// UseKeyring enables wrapped-key storage in the platform credential
	// store for unattended unlock.
	UseKeyring bool

	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	c.DataDir = filepath.Join(home, ".mathnotes")
	c.AutosaveDebounce = 2 * time.Second
	c.SyncInterval = 5 * time.Minute
	c.UseKeyring = true
	c.LogLevel = "info"
}

// DBPath is the SQLite database file inside DataDir.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "notes.db") }

// KeyFilePath is the salt/verifier sidecar inside DataDir.
func (c *Config) KeyFilePath() string { return filepath.Join(c.DataDir, "key.json") }

// BlobDir is the encrypted attachment directory inside DataDir.
func (c *Config) BlobDir() string { return filepath.Join(c.DataDir, "attachments") }

// MirrorDir is the sync mirror directory inside DataDir.
func (c *Config) MirrorDir() string { return filepath.Join(c.DataDir, "mirror") }

// LoadConfig constructs a Config, applies defaults, then overlays values
// from the environment, JSON (if present), and command-line flags. Later
// sources take precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
