// Package instance lays out the per-display state directory of a daemon.
package instance

import (
	"os"
	"path/filepath"
)

// HomeEnv overrides the base directory when set.
const HomeEnv = "CHORDD_HOME"

// BaseDir returns ~/.chordd, or $CHORDD_HOME when set.
func BaseDir() string {
	if dir := os.Getenv(HomeEnv); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".chordd")
}

// Dir returns the directory of the instance serving the display with the given key.
func Dir(key string) string {
	return filepath.Join(BaseDir(), "displays", key)
}

// SocketPath returns the UDS control socket path for an instance.
func SocketPath(key string) string {
	return filepath.Join(Dir(key), "chordd.sock")
}

// LockPath returns the lock file path for an instance.
func LockPath(key string) string {
	return filepath.Join(Dir(key), "LOCK")
}

// DBPath returns the dispatch journal path.
func DBPath(key string) string {
	return filepath.Join(Dir(key), "chordd.db")
}

// LogDir returns the log directory for an instance.
func LogDir(key string) string {
	return filepath.Join(Dir(key), "logs")
}

// LogPath returns the daemon log file path.
func LogPath(key string) string {
	return filepath.Join(LogDir(key), "chordd.log")
}

// SettingsPath returns the global settings file path.
func SettingsPath() string {
	return filepath.Join(BaseDir(), "config.toml")
}

// EnsureDir creates the instance directory tree with proper permissions.
func EnsureDir(key string) error {
	dirs := []string{
		Dir(key),
		LogDir(key),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0700); err != nil {
			return err
		}
	}
	return nil
}
