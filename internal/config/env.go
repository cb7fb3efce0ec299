// Package config loads genai-chat settings from .env files, the process
// environment and an optional YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

// EnvConfig holds the settings read from the environment. Empty values
// leave the config file (or its defaults) in charge.
type EnvConfig struct {
	GeminiAPIKey string `env:"GEMINI_API_KEY"`
	GoogleAPIKey string `env:"GOOGLE_API_KEY"`

	Model      string        `env:"GENAI_CHAT_MODEL"`
	Backend    string        `env:"GENAI_CHAT_BACKEND"`
	BaseURL    string        `env:"GENAI_CHAT_BASE_URL"`
	ConfigPath string        `env:"GENAI_CHAT_CONFIG"`
	Timeout    time.Duration `env:"GENAI_CHAT_TIMEOUT"`

	LogLevel    string `env:"GENAI_CHAT_LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"GENAI_CHAT_DEV"`

	Host string `env:"GENAI_CHAT_HOST"`
	Port string `env:"GENAI_CHAT_PORT"`

	Minio MinioEnv `envPrefix:"MINIO_"`
}

type MinioEnv struct {
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	UseSSL    bool   `env:"USE_SSL"`
}

// APIKey returns GEMINI_API_KEY, falling back to GOOGLE_API_KEY.
func (e *EnvConfig) APIKey() string {
	if key := strings.TrimSpace(e.GeminiAPIKey); key != "" {
		return key
	}
	return strings.TrimSpace(e.GoogleAPIKey)
}

// LoadEnv loads the first .env file found near the working directory and
// returns its path, or "" when there is none. Variables already set in the
// process environment win over the file.
func LoadEnv() (string, error) {
	envPaths := []string{
		".env",
		".env.local",
		"../.env",
		"../../.env",
	}

	for _, envPath := range envPaths {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return "", fmt.Errorf("error loading %s file: %w", envPath, err)
			}
			return envPath, nil
		}
	}

	return "", nil
}

// ParseEnv reads EnvConfig from the process environment.
func ParseEnv() (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// ParseEnvFrom reads EnvConfig from vars instead of the process environment.
func ParseEnvFrom(vars map[string]string) (*EnvConfig, error) {
	var cfg EnvConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: vars}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &cfg, nil
}

// GetProjectRoot finds the project root directory by looking for go.mod
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("could not find project root (go.mod not found)")
}
