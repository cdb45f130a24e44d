package utils

import (
	"os"
	"strings"
)

func ParseWithFallback(envName string, fallback string) string {
	result := strings.TrimSpace(os.Getenv(envName))
	if result == "" {
		result = fallback
	}

	return result
}
