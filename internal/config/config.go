// Package config handles option loading and validation for rimebridge.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Options configures the bridge: where data blobs come from, where the
// engine's virtual storage lives, and how logging behaves.
type Options struct {
	// ResourcePrefix is the URL prefix data files are fetched from.
	ResourcePrefix string `toml:"resource_prefix"`

	// DataFiles overrides the default deployment set. Empty means the
	// loader's default list.
	DataFiles []string `toml:"data_files"`

	// RootDir is the engine's storage root. The shared data directory
	// and the user data directory live beneath it.
	RootDir string `toml:"root_dir"`

	// StorePath is the durable store location. Empty means
	// <root_dir>/user_store.db.
	StorePath string `toml:"store_path"`

	// SkipFetch skips the data-loading phase; the shared data
	// directory must already be deployed.
	SkipFetch bool `toml:"skip_fetch"`

	// FetchTimeoutSec bounds each data fetch. Zero means 60.
	FetchTimeoutSec int `toml:"fetch_timeout_sec"`

	Logging LoggingOptions `toml:"logging"`
}

// LoggingOptions holds logging configuration.
type LoggingOptions struct {
	// Level is "debug", "info", "warn" or "error".
	Level string `toml:"level"`

	// Format is "text" or "json".
	Format string `toml:"format"`
}

// Default returns the default options rooted under the user's data
// directory.
func Default() *Options {
	return &Options{
		RootDir:         defaultRootDir(),
		FetchTimeoutSec: 60,
		Logging: LoggingOptions{
			Level:  "info",
			Format: "text",
		},
	}
}

// defaultRootDir follows the XDG convention with a home fallback.
func defaultRootDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "rimebridge")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "rimebridge-data"
	}
	return filepath.Join(home, ".local", "share", "rimebridge")
}

// Load reads options from a TOML file, applying defaults for absent
// fields and environment overrides on top.
func Load(path string) (*Options, error) {
	opts := Default()
	if _, err := toml.DecodeFile(path, opts); err != nil {
		return nil, fmt.Errorf("load options: %w", err)
	}
	opts.ApplyEnvOverrides()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return opts, nil
}

// ApplyEnvOverrides lets the environment override file-sourced values.
func (o *Options) ApplyEnvOverrides() {
	if v := os.Getenv("RIMEBRIDGE_RESOURCE_PREFIX"); v != "" {
		o.ResourcePrefix = v
	}
	if v := os.Getenv("RIMEBRIDGE_ROOT_DIR"); v != "" {
		o.RootDir = v
	}
	if v := os.Getenv("RIMEBRIDGE_SKIP_FETCH"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			o.SkipFetch = b
		}
	}
	if v := os.Getenv("RIMEBRIDGE_LOG_LEVEL"); v != "" {
		o.Logging.Level = v
	}
}

// Validate checks the options for completeness.
func (o *Options) Validate() error {
	if o.RootDir == "" {
		return errors.New("root_dir is required")
	}
	if !o.SkipFetch && o.ResourcePrefix == "" {
		return errors.New("resource_prefix is required unless skip_fetch is set")
	}
	if o.FetchTimeoutSec < 0 {
		return errors.New("fetch_timeout_sec must not be negative")
	}
	return nil
}

// SharedDataDir is where schemas and dictionary tables are deployed.
func (o *Options) SharedDataDir() string {
	return filepath.Join(o.RootDir, "rime")
}

// UserDataDir is the user-writable directory the synchronizer mounts.
func (o *Options) UserDataDir() string {
	return filepath.Join(o.RootDir, "rime_user")
}

// DurableStorePath is the durable store location.
func (o *Options) DurableStorePath() string {
	if o.StorePath != "" {
		return o.StorePath
	}
	return filepath.Join(o.RootDir, "user_store.db")
}

// FetchTimeout returns the per-request fetch timeout.
func (o *Options) FetchTimeout() time.Duration {
	if o.FetchTimeoutSec <= 0 {
		return 60 * time.Second
	}
	return time.Duration(o.FetchTimeoutSec) * time.Second
}
