package config

import (
	"log/slog"
	"os"
	"strconv"
)

// GetString reads an environment variable, falling back when unset.
func GetString(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetInt reads an integer environment variable. A malformed value is
// logged and the fallback used.
func GetInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		slog.Warn("ignoring malformed env var", "key", key, "error", err)
		return fallback
	}
	return parsed
}

// GetBool reads a boolean environment variable. A malformed value is
// logged and the fallback used.
func GetBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		slog.Warn("ignoring malformed env var", "key", key, "error", err)
		return fallback
	}
	return parsed
}
