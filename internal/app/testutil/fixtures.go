package testutil

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

// TinyPNG is a 1x1 PNG image.
const TinyPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// TinyPNGDataURL is TinyPNG as a data URL.
const TinyPNGDataURL = "data:image/png;base64," + TinyPNG

// TestAPIKey has the shape of a Gemini API key.
const TestAPIKey = "AIzaSyTEST-0123456789abcdefghijklmnop"

// Prompts used across chat tests.
var Prompts = []string{
	"This is a test. Say 'foo'",
	"This is a test, say 'bar'",
	"Tell me a short joke",
}

// TinyPNGBytes returns the decoded TinyPNG image.
func TinyPNGBytes(t testing.TB) []byte {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(TinyPNG)
	if err != nil {
		t.Fatalf("decode fixture image: %v", err)
	}
	return data
}

// WriteTinyPNG writes the fixture image into a temporary directory and
// returns its path.
func WriteTinyPNG(t testing.TB) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pixel.png")
	if err := os.WriteFile(path, TinyPNGBytes(t), 0o644); err != nil {
		t.Fatalf("write fixture image: %v", err)
	}
	return path
}

// CreateTempFile creates a file with content in a temporary directory.
func CreateTempFile(t testing.TB, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
