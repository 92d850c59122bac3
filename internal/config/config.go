// Package config provides psb configuration loaded from TOML files.
//
// Resolution order (later wins):
//  1. Embedded defaults (defaults.toml)
//  2. User config: $XDG_CONFIG_HOME/psb/config.toml
//  3. Workdir config: <workdir>/psb.toml, or the file given by --config
//  4. Environment overrides (PSB_WORKERS, PSB_THEME)
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed defaults.toml
var defaultsTOML []byte

// FileName is the per-workdir config file name.
const FileName = "psb.toml"

// Config holds all psb settings.
type Config struct {
	// Encoding is the text encoding THERMOCALC reads and writes.
	Encoding string `toml:"encoding"`

	// TCPattern and DRPattern override the executable globs used to find
	// THERMOCALC and drawpd in the working directory.
	TCPattern string `toml:"tc_pattern,omitempty"`
	DRPattern string `toml:"dr_pattern,omitempty"`

	// Timeout bounds a single THERMOCALC run.
	Timeout Duration `toml:"timeout"`

	// Theme is the CLI color scheme: auto, dark or light.
	Theme string `toml:"theme"`

	// Tolerance simplifies area polygons when positive.
	Tolerance float64 `toml:"tolerance"`

	Grid GridConfig `toml:"grid"`

	// Source lists the files that contributed to this config.
	Source []string `toml:"-"`
}

// GridConfig controls composition gridding.
type GridConfig struct {
	NX      int `toml:"nx"`
	NY      int `toml:"ny"`
	Workers int `toml:"workers"`
}

// Duration is a wrapper for time.Duration that supports TOML marshaling.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler for Duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	var cfg Config
	if err := toml.Unmarshal(defaultsTOML, &cfg); err != nil {
		// embedded file is part of the binary
		panic(fmt.Sprintf("parsing embedded defaults: %v", err))
	}
	return &cfg
}

// Load resolves the configuration for workdir. If explicit is non-empty it
// replaces the workdir config file and must exist.
func Load(workdir, explicit string) (*Config, error) {
	cfg := Defaults()

	if userPath := userConfigPath(); userPath != "" {
		if err := mergeFile(cfg, userPath, false); err != nil {
			return nil, err
		}
	}

	if explicit != "" {
		if err := mergeFile(cfg, explicit, true); err != nil {
			return nil, err
		}
	} else if workdir != "" {
		if err := mergeFile(cfg, filepath.Join(workdir, FileName), false); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// mergeFile merges the TOML file at path into cfg.
// Missing files are ignored unless required is set.
func mergeFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is a config location
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	var override Config
	if err := toml.Unmarshal(data, &override); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	merge(cfg, &override)
	cfg.Source = append(cfg.Source, path)
	return nil
}

// merge merges override into base.
// Only non-zero values in override are applied.
func merge(base, override *Config) {
	if override.Encoding != "" {
		base.Encoding = override.Encoding
	}
	if override.TCPattern != "" {
		base.TCPattern = override.TCPattern
	}
	if override.DRPattern != "" {
		base.DRPattern = override.DRPattern
	}
	if override.Timeout.Duration != 0 {
		base.Timeout = override.Timeout
	}
	if override.Theme != "" {
		base.Theme = override.Theme
	}
	if override.Tolerance != 0 {
		base.Tolerance = override.Tolerance
	}
	if override.Grid.NX != 0 {
		base.Grid.NX = override.Grid.NX
	}
	if override.Grid.NY != 0 {
		base.Grid.NY = override.Grid.NY
	}
	if override.Grid.Workers != 0 {
		base.Grid.Workers = override.Grid.Workers
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PSB_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Grid.Workers = n
		}
	}
	if v := os.Getenv("PSB_THEME"); v != "" {
		cfg.Theme = v
	}
}

func userConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "psb", "config.toml")
}

// Workers returns the gridding worker count, at least 1.
func (c *Config) Workers() int {
	if c.Grid.Workers > 0 {
		return c.Grid.Workers
	}
	return max(runtime.NumCPU(), 1)
}

// GridSize returns nx, ny clamped to at least 2.
func (c *Config) GridSize() (int, int) {
	return max(c.Grid.NX, 2), max(c.Grid.NY, 2)
}
