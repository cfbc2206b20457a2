package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of the given environment variable or a fallback.
func Get(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Missing returns the keys whose environment values are empty.
func Missing(keys ...string) []string {
	var missing []string
	for _, key := range keys {
		if Get(key, "") == "" {
			missing = append(missing, key)
		}
	}
	return missing
}
