package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

const (
	// TestCardTraderToken overrides the token handed to clients in tests.
	TestCardTraderToken = "TEST_CARDTRADER_TOKEN"

	DefaultTestToken = "test-token"
)

// GetTestToken returns a test token from environment variable or default
func GetTestToken(envVar, defaultValue string) string {
	if token := os.Getenv(envVar); token != "" {
		return token
	}
	return defaultValue
}

// GetTestCardTraderToken returns the token used against fake marketplace servers.
func GetTestCardTraderToken() string {
	return GetTestToken(TestCardTraderToken, DefaultTestToken)
}

// WriteFile writes content under dir, creating parent directories.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}
