package main

import (
	"os"
	"strconv"
	"strings"
)

// getEnvOrDefault returns the value of key, or fallback when it is unset
// or empty.
func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// getEnvBool reads key as a boolean. Besides strconv's forms it accepts
// yes/no and on/off. Unparsable values yield fallback.
func getEnvBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "":
		return fallback
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
