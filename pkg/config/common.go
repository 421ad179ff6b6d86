// Package config provides configuration types and environment variable
// helpers for the Zenlink client packages.
package config

import (
	"os"
	"strconv"
)

// GetEnvOrDefault retrieves an environment variable or returns a default value
// This is a common pattern used across all configuration loading
func GetEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetEnvInt retrieves an environment variable as an integer
// Returns the default value if not set or invalid
func GetEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
