package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

// GenerateShortID generates a short, URL-safe random ID
// Format: 8 characters, lowercase alphanumeric
// Example: "x7k9m2p1"
func GenerateShortID() string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	const length = 8

	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		result[i] = chars[num.Int64()]
	}

	return string(result)
}

// GenerateJobName generates a Kubernetes-compliant job name
// Format: prefix-shortid-timestamp
// Example: "dbt-build-x7k9m2p1-1640995200"
func GenerateJobName(prefix string) string {
	shortID := GenerateShortID()
	timestamp := time.Now().Unix()

	prefix = SanitizeName(prefix)
	// 63 characters max, suffix takes 20
	if len(prefix) > 42 {
		prefix = strings.TrimRight(prefix[:42], "-")
	}

	return fmt.Sprintf("%s-%s-%d", prefix, shortID, timestamp)
}

// SanitizeName lowercases a string and drops everything a Kubernetes name can't contain
func SanitizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, ".", "-")
	name = strings.ReplaceAll(name, " ", "-")

	var result strings.Builder
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= '0' && char <= '9') || char == '-' {
			result.WriteRune(char)
		}
	}

	finalName := strings.Trim(result.String(), "-")
	if finalName == "" {
		finalName = "job"
	}

	return finalName
}

// IsValidKubernetesName checks if a string is a valid Kubernetes resource name
func IsValidKubernetesName(name string) bool {
	if len(name) == 0 || len(name) > 63 {
		return false
	}

	// Must start and end with alphanumeric
	if !isAlphanumeric(name[0]) || !isAlphanumeric(name[len(name)-1]) {
		return false
	}

	for _, char := range name {
		if !isAlphanumeric(byte(char)) && char != '-' {
			return false
		}
	}

	return true
}

// isAlphanumeric checks if a byte is alphanumeric
func isAlphanumeric(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}
