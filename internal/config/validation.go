package config

import (
	"strings"
	"time"

	apperrors "genai-chat/internal/app/errors"
)

// ValidateAPIKey checks the shape of a Gemini API key.
func ValidateAPIKey(apiKey string) error {
	if apiKey == "" {
		return apperrors.Wrap(apperrors.RequiredField("GEMINI_API_KEY or GOOGLE_API_KEY"), apperrors.ErrMissingAPIKey.Error())
	}
	if !strings.HasPrefix(apiKey, "AIza") {
		return apperrors.Wrap(apperrors.InvalidField("GEMINI_API_KEY", "must start with 'AIza'"), apperrors.ErrInvalidAPIKey.Error())
	}
	if len(apiKey) < 30 {
		return apperrors.Wrap(apperrors.InvalidField("GEMINI_API_KEY", "too short"), apperrors.ErrInvalidAPIKey.Error())
	}
	return nil
}

// ValidateTimeout validates timeout duration
func ValidateTimeout(timeout time.Duration) error {
	if timeout < 0 || timeout > 30*time.Minute {
		return apperrors.OutOfRange("timeout", 0, 30*time.Minute)
	}
	return nil
}

// ValidateConcurrency validates the batch fan-out bound
func ValidateConcurrency(concurrency int) error {
	if concurrency < 1 || concurrency > 100 {
		return apperrors.OutOfRange("max_concurrency", 1, 100)
	}
	return nil
}

// ValidateTemperature validates the sampling temperature
func ValidateTemperature(t float32) error {
	if t < 0 || t > 2 {
		return apperrors.OutOfRange("temperature", 0, 2)
	}
	return nil
}
