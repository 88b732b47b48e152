// Package config loads todo settings from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/gravityvi/Todo-app-cansiter/internal/db"
)

// EnvPath names an explicit config file, checked before the search paths.
const EnvPath = "TODO_CONFIG"

// Config holds the process settings
type Config struct {
	DataDir         string          `toml:"data_dir"`
	LogLevel        string          `toml:"log_level"`
	LogFile         string          `toml:"log_file"`
	ShutdownTimeout Duration        `toml:"shutdown_timeout"`
	Server          ServerConfig    `toml:"server"`
	Snapshots       SnapshotsConfig `toml:"snapshots"`

	// Path is the file the config was read from, empty when defaults were used.
	Path string `toml:"-"`
}

// ServerConfig configures `todo serve`
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// SnapshotsConfig controls snapshot retention
type SnapshotsConfig struct {
	Keep int `toml:"keep"`
}

// Duration is a time.Duration written as a string such as "10s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Default returns the configuration used when no file sets a value
func Default() Config {
	return Config{
		LogLevel:        "info",
		ShutdownTimeout: Duration{10 * time.Second},
		Server:          ServerConfig{Addr: "127.0.0.1:8080"},
		Snapshots:       SnapshotsConfig{Keep: 5},
	}
}

// SearchPaths returns the candidate config files in priority order
func SearchPaths() []string {
	var paths []string

	if p := os.Getenv(EnvPath); p != "" {
		paths = append(paths, p)
	}

	paths = append(paths, "todo.toml")

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "todo", "config.toml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "todo", "config.toml"))
	}

	return paths
}

// Load reads the first config file found in SearchPaths.
// A missing file is not an error; defaults are returned instead. A file
// named by $TODO_CONFIG must exist.
func Load() (Config, error) {
	if p := os.Getenv(EnvPath); p != "" {
		if _, err := os.Stat(p); err != nil {
			return Config{}, fmt.Errorf("%s: %w", EnvPath, err)
		}
		return LoadFile(p)
	}

	for _, path := range SearchPaths() {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return LoadFile(path)
	}

	cfg := Default()
	return cfg, cfg.finalize()
}

// LoadFile reads the config at path over the defaults
func LoadFile(path string) (Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("parse %s: unknown key %q", path, undecoded[0].String())
	}
	cfg.Path = path

	return cfg, cfg.finalize()
}

// DBPath returns the sqlite file inside the data directory
func (c Config) DBPath() string {
	return filepath.Join(c.DataDir, "todo.db")
}

func (c *Config) finalize() error {
	if c.DataDir == "" {
		dir, err := db.DefaultDataDir()
		if err != nil {
			return fmt.Errorf("resolve data dir: %w", err)
		}
		c.DataDir = dir
	}
	if c.LogFile == "" {
		c.LogFile = filepath.Join(c.DataDir, "todo.log")
	}
	if c.Snapshots.Keep < 1 {
		return errors.New("snapshots.keep must be at least 1")
	}
	if c.ShutdownTimeout.Duration <= 0 {
		return errors.New("shutdown_timeout must be positive")
	}
	return nil
}
