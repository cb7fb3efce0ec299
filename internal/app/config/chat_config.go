// Package config describes the YAML configuration file of genai-chat.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"genai-chat/internal/app/chat"
	apperrors "genai-chat/internal/app/errors"
)

const (
	BackendGenAI  = "genai"
	BackendOpenAI = "openai"

	DefaultModel      = "gemini-1.5-flash"
	DefaultTimeoutSec = 60
	DefaultHost       = "0.0.0.0"
	DefaultPort       = "8080"
)

// ChatConfiguration is the content of a genai-chat config file.
type ChatConfiguration struct {
	Backend    string `yaml:"backend" validate:"oneof=genai openai"`
	BaseURL    string `yaml:"base_url,omitempty" validate:"omitempty,url"`
	APIKey     string `yaml:"api_key,omitempty"`
	TimeoutSec int    `yaml:"timeout_sec,omitempty" validate:"gte=0,lte=1800"`

	Model  ModelConfig  `yaml:"model"`
	Server ServerConfig `yaml:"server,omitempty"`
	Images ImageConfig  `yaml:"images,omitempty"`
}

// ModelConfig holds the construction parameters of the chat model.
type ModelConfig struct {
	Name                        string            `yaml:"name" validate:"required"`
	Temperature                 *float32          `yaml:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP                        *float32          `yaml:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	TopK                        *float32          `yaml:"top_k,omitempty" validate:"omitempty,gte=0"`
	MaxOutputTokens             int32             `yaml:"max_output_tokens,omitempty" validate:"gte=0"`
	SafetySettings              map[string]string `yaml:"safety_settings,omitempty"`
	ConvertSystemMessageToHuman bool              `yaml:"convert_system_message_to_human,omitempty"`
	MaxConcurrency              int               `yaml:"max_concurrency,omitempty" validate:"gte=1,lte=100"`
}

type ServerConfig struct {
	Host        string `yaml:"host,omitempty"`
	Port        string `yaml:"port,omitempty" validate:"omitempty,numeric"`
	Environment string `yaml:"environment,omitempty" validate:"omitempty,oneof=development production"`
	// CORSOrigins restricts browser access; empty allows any origin.
	CORSOrigins []string `yaml:"cors_origins,omitempty"`
}

// ImageConfig configures how image references are fetched.
type ImageConfig struct {
	MaxBytes int64       `yaml:"max_bytes,omitempty" validate:"gte=0"`
	Minio    MinioConfig `yaml:"minio,omitempty"`
}

type MinioConfig struct {
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	UseSSL    bool   `yaml:"use_ssl,omitempty"`
}

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Default returns the configuration used when no file is given.
func Default() *ChatConfiguration {
	return &ChatConfiguration{
		Backend:    BackendGenAI,
		TimeoutSec: DefaultTimeoutSec,
		Model: ModelConfig{
			Name:           DefaultModel,
			MaxConcurrency: chat.DefaultMaxConcurrency,
		},
		Server: ServerConfig{
			Host:        DefaultHost,
			Port:        DefaultPort,
			Environment: "development",
		},
	}
}

// Load reads a YAML config file on top of Default. ${VAR} references in the
// file are expanded from the environment before parsing.
func Load(configPath string) (*ChatConfiguration, error) {
	configPath = os.ExpandEnv(configPath)

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", apperrors.ErrConfigFile, configPath, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML %s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes cfg as YAML, creating parent directories.
func Save(cfg *ChatConfiguration, configPath string) error {
	configPath = os.ExpandEnv(configPath)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks struct tags first, then the rules tags cannot express.
func (c *ChatConfiguration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return apperrors.Wrap(translate(err), apperrors.ErrInvalidConfig.Error())
	}
	if _, err := c.Model.Safety(); err != nil {
		return apperrors.Wrap(apperrors.InvalidField("model.safety_settings", err.Error()), apperrors.ErrInvalidConfig.Error())
	}
	m := c.Images.Minio
	if m.Endpoint != "" && (m.AccessKey == "" || m.SecretKey == "") {
		return apperrors.Wrap(apperrors.RequiredField("images.minio access_key and secret_key"), apperrors.ErrInvalidConfig.Error())
	}
	return nil
}

// Safety parses the configured safety settings.
func (m ModelConfig) Safety() (chat.SafetySettings, error) {
	return chat.ParseSafetySettings(m.SafetySettings)
}

// ChatConfig converts the model section into chat.Config.
func (c *ChatConfiguration) ChatConfig() (chat.Config, error) {
	safety, err := c.Model.Safety()
	if err != nil {
		return chat.Config{}, err
	}
	return chat.Config{
		Model:                       c.Model.Name,
		Temperature:                 c.Model.Temperature,
		TopP:                        c.Model.TopP,
		TopK:                        c.Model.TopK,
		MaxOutputTokens:             c.Model.MaxOutputTokens,
		SafetySettings:              safety,
		ConvertSystemMessageToHuman: c.Model.ConvertSystemMessageToHuman,
		MaxConcurrency:              c.Model.MaxConcurrency,
	}, nil
}

func (c *ChatConfiguration) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// translate turns the first validator failure into a field error.
func translate(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	field := strings.TrimPrefix(fe.Namespace(), "ChatConfiguration.")
	switch fe.Tag() {
	case "required":
		return apperrors.RequiredField(field)
	case "gte", "lte":
		return apperrors.InvalidField(field, fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()))
	case "oneof":
		return apperrors.OneOf(field, fmt.Sprint(fe.Value()), strings.Fields(fe.Param()))
	default:
		return apperrors.InvalidField(field, fe.Tag())
	}
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() string {
	if path := os.Getenv("GENAI_CHAT_CONFIG"); path != "" {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "genai-chat.yaml"
	}

	return filepath.Join(home, ".genai-chat", "config.yaml")
}
