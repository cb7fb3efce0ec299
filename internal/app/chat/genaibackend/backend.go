// Package genaibackend implements chat.Backend on the Google Gen AI SDK
// against the Gemini Developer API.
package genaibackend

import (
	"context"
	"errors"
	"iter"
	"net/http"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"genai-chat/internal/app/chat"
)

const (
	Name              = "genai"
	DefaultAPIVersion = "v1beta"
)

// Config configures the SDK client.
type Config struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Backend sends chat requests through a genai.Client.
type Backend struct {
	client *genai.Client
	logger *zap.Logger
}

// New creates the SDK client. A nil logger disables logging.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, &chat.Error{Kind: chat.KindUnauthorized, Message: "API key is required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil && cfg.Timeout > 0 {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	apiVersion := cfg.APIVersion
	if apiVersion == "" {
		apiVersion = DefaultAPIVersion
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    cfg.BaseURL,
			APIVersion: apiVersion,
		},
	})
	if err != nil {
		return nil, err
	}
	return &Backend{client: client, logger: logger.Named(Name)}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Generate(ctx context.Context, req *chat.Request) (*chat.Message, error) {
	resp, err := b.client.Models.GenerateContent(ctx, req.Model, toContents(req.Messages), toConfig(req))
	if err != nil {
		return nil, mapError(req.Model, err)
	}
	return toMessage(req.Model, resp)
}

func (b *Backend) Stream(ctx context.Context, req *chat.Request) iter.Seq2[*chat.MessageChunk, error] {
	return func(yield func(*chat.MessageChunk, error) bool) {
		index := 0
		for resp, err := range b.client.Models.GenerateContentStream(ctx, req.Model, toContents(req.Messages), toConfig(req)) {
			if err != nil {
				yield(nil, mapError(req.Model, err))
				return
			}
			var chunk *chat.MessageChunk
			chunk, index, err = toChunk(req.Model, resp, index)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(chunk, nil) {
				b.logger.Debug("stream abandoned", zap.String("model", req.Model))
				return
			}
		}
	}
}

// CountTokens counts the conversation's prompt tokens. The system
// instruction is not part of the count.
func (b *Backend) CountTokens(ctx context.Context, req *chat.Request) (int, error) {
	resp, err := b.client.Models.CountTokens(ctx, req.Model, toContents(req.Messages), nil)
	if err != nil {
		return 0, mapError(req.Model, err)
	}
	return int(resp.TotalTokens), nil
}

func mapError(model string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return chat.FromHTTPStatus(apiErr.Code, apiErr.Message, model, err)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return chat.FromHTTPStatus(apiErrPtr.Code, apiErrPtr.Message, model, err)
	}
	return chat.Unavailablef(model, err, "gemini request failed")
}
