package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultTimeout is how long a partial sequence waits for its next chord.
const DefaultTimeout = time.Second

// Settings represents the daemon settings in ~/.chordd/config.toml.
type Settings struct {
	DefaultDisplay string        `toml:"default_display"`
	Timeout        time.Duration `toml:"timeout"`
	Shell          string        `toml:"shell"`
	LogLevel       string        `toml:"log_level"`
	Journal        bool          `toml:"journal"`
}

// Defaults returns the settings used when no file or key overrides them.
func Defaults() *Settings {
	return &Settings{
		Timeout:  DefaultTimeout,
		Shell:    "/bin/sh",
		LogLevel: "info",
		Journal:  true,
	}
}

// Load reads settings from the given path on top of Defaults. Returns error if the file is missing.
func Load(path string) (*Settings, error) {
	cfg := Defaults()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown setting %q", path, undecoded[0].String())
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except a missing file yields Defaults.
func LoadOrDefault(path string) (*Settings, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Defaults(), nil
	}
	return cfg, err
}

// Validate checks values a toml decode cannot.
func (s *Settings) Validate() error {
	if s.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", s.Timeout)
	}
	if s.Shell == "" {
		return errors.New("shell must not be empty")
	}
	switch s.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be one of debug, info, warn, error; got %q", s.LogLevel)
	}
	return nil
}

// Save writes settings to the given path, creating parent dirs as needed.
func Save(path string, cfg *Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}
