// Package openaicompat implements chat.Backend on go-openai against an
// OpenAI-compatible chat completions endpoint, by default the one Gemini
// exposes.
package openaicompat

import (
	"context"
	"errors"
	"io"
	"iter"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"genai-chat/internal/app/chat"
)

const (
	Name           = "openai"
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
)

type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Backend sends chat requests through an openai.Client.
type Backend struct {
	client *openai.Client
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) (*Backend, error) {
	if cfg.APIKey == "" {
		return nil, &chat.Error{Kind: chat.KindUnauthorized, Message: "API key is required"}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	switch {
	case cfg.HTTPClient != nil:
		clientCfg.HTTPClient = cfg.HTTPClient
	case cfg.Timeout > 0:
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Backend{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger.Named(Name),
	}, nil
}

func (b *Backend) Name() string { return Name }

func (b *Backend) Generate(ctx context.Context, req *chat.Request) (*chat.Message, error) {
	body, err := b.toRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.CreateChatCompletion(ctx, body)
	if err != nil {
		return nil, mapError(req.Model, err)
	}
	return toMessage(req.Model, resp)
}

func (b *Backend) Stream(ctx context.Context, req *chat.Request) iter.Seq2[*chat.MessageChunk, error] {
	return func(yield func(*chat.MessageChunk, error) bool) {
		body, err := b.toRequest(req)
		if err != nil {
			yield(nil, err)
			return
		}
		body.Stream = true
		body.StreamOptions = &openai.StreamOptions{IncludeUsage: true}

		stream, err := b.client.CreateChatCompletionStream(ctx, body)
		if err != nil {
			yield(nil, mapError(req.Model, err))
			return
		}
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, mapError(req.Model, err))
				return
			}
			if !yield(toChunk(req.Model, resp), nil) {
				return
			}
		}
	}
}

// CountTokens is not offered by the OpenAI-compatible surface.
func (b *Backend) CountTokens(_ context.Context, req *chat.Request) (int, error) {
	return 0, &chat.Error{
		Kind:    chat.KindUnsupported,
		Message: "token counting is not available on the OpenAI-compatible endpoint",
		Model:   req.Model,
	}
}

func mapError(model string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return chat.FromHTTPStatus(apiErr.HTTPStatusCode, apiErr.Message, model, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return chat.FromHTTPStatus(reqErr.HTTPStatusCode, reqErr.HTTPStatus, model, err)
	}
	return chat.Unavailablef(model, err, "openai-compatible request failed")
}
