package config

import (
	"fmt"

	appconfig "genai-chat/internal/app/config"
)

// Settings is the fully resolved configuration of one process.
type Settings struct {
	Env     *EnvConfig
	Chat    *appconfig.ChatConfiguration
	EnvFile string
}

// Initialize loads .env, parses the environment and resolves the config
// file. This is the main entry point for configuration loading.
func Initialize() (*Settings, error) {
	envFile, err := LoadEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	envCfg, err := ParseEnv()
	if err != nil {
		return nil, err
	}

	chatCfg, err := Resolve(envCfg)
	if err != nil {
		return nil, err
	}

	return &Settings{Env: envCfg, Chat: chatCfg, EnvFile: envFile}, nil
}

// Resolve layers the environment over the config file, which is layered
// over the built-in defaults, and validates the result.
func Resolve(envCfg *EnvConfig) (*appconfig.ChatConfiguration, error) {
	cfg := appconfig.Default()
	if envCfg.ConfigPath != "" {
		loaded, err := appconfig.Load(envCfg.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if key := envCfg.APIKey(); key != "" {
		cfg.APIKey = key
	}
	setIfNotEmpty(&cfg.Model.Name, envCfg.Model)
	setIfNotEmpty(&cfg.Backend, envCfg.Backend)
	setIfNotEmpty(&cfg.BaseURL, envCfg.BaseURL)
	setIfNotEmpty(&cfg.Server.Host, envCfg.Host)
	setIfNotEmpty(&cfg.Server.Port, envCfg.Port)
	if envCfg.Timeout > 0 {
		if err := ValidateTimeout(envCfg.Timeout); err != nil {
			return nil, err
		}
		cfg.TimeoutSec = int(envCfg.Timeout.Seconds())
	}
	if envCfg.Development {
		cfg.Server.Environment = "development"
	}
	if m := envCfg.Minio; m.Endpoint != "" {
		cfg.Images.Minio = appconfig.MinioConfig{
			Endpoint:  m.Endpoint,
			AccessKey: m.AccessKey,
			SecretKey: m.SecretKey,
			UseSSL:    m.UseSSL,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		if err := ValidateAPIKey(cfg.APIKey); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
