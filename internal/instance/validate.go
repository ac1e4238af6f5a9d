package instance

import (
	"fmt"
	"regexp"
)

var keyRegexp = regexp.MustCompile(`^[a-z0-9_.-]{1,64}$`)

// ValidateKey checks that key conforms to instance key rules.
func ValidateKey(key string) error {
	if !keyRegexp.MatchString(key) || key == "." || key == ".." {
		return fmt.Errorf("invalid instance key %q: must match ^[a-z0-9_.-]{1,64}$", key)
	}
	return nil
}
