package run

import (
	"fmt"
	"strings"
)

// MaxKeyLength bounds param, metric and tag keys
const MaxKeyLength = 250

// ValidateKey checks a param, metric or tag key. Keys double as file names
// in the directory store, so they may not be absolute or contain "..".
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}
	if len(key) > MaxKeyLength {
		return fmt.Errorf("key %q exceeds %d characters", key, MaxKeyLength)
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == ' ', r == '/':
		default:
			return fmt.Errorf("key %q contains invalid character %q", key, r)
		}
	}
	if strings.HasPrefix(key, "/") {
		return fmt.Errorf("key %q cannot be absolute", key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("key %q has an invalid path segment", key)
		}
	}
	return nil
}
