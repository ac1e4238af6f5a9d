package instance

import (
	"errors"
	"os"
	"strings"

	"github.com/matheus3301/chordd/internal/config"
)

// DisplayEnv names the environment variable holding the default display.
const DisplayEnv = "DISPLAY"

// ErrNoDisplay is returned when no display is named anywhere.
var ErrNoDisplay = errors.New("no display: pass --display or set $DISPLAY")

// ResolveDisplay determines the display to serve using precedence:
// 1. flagOverride (--display flag)
// 2. $DISPLAY
// 3. settings default_display
func ResolveDisplay(flagOverride string, settings *config.Settings) (string, error) {
	if flagOverride != "" {
		return flagOverride, nil
	}
	if env := os.Getenv(DisplayEnv); env != "" {
		return env, nil
	}
	if settings != nil && settings.DefaultDisplay != "" {
		return settings.DefaultDisplay, nil
	}
	return "", ErrNoDisplay
}

// Key turns a display name into a directory-safe instance key, e.g. ":0" is
// "0" and "localhost:10.0" is "localhost_10.0".
func Key(display string) (string, error) {
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		}
		return '_'
	}, display)
	key := strings.TrimLeft(mapped, "_")
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}
