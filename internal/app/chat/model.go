// Package chat is a chat-model client over generative-AI backends. It
// validates conversations against model capabilities, converts them for a
// Backend and exposes blocking, streaming, batched and asynchronous calls.
package chat

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"genai-chat/internal/app/metrics"
)

const DefaultMaxConcurrency = 4

// Config is the construction-time configuration of a ChatModel.
type Config struct {
	Model           string
	Temperature     *float32
	TopP            *float32
	TopK            *float32
	MaxOutputTokens int32
	SafetySettings  SafetySettings

	// ConvertSystemMessageToHuman sends system messages as text at the start
	// of the first human turn instead of as a system instruction.
	ConvertSystemMessageToHuman bool

	// MaxConcurrency bounds the number of in-flight requests of one Batch.
	MaxConcurrency int
}

// Option configures ambient dependencies of a ChatModel.
type Option func(*ChatModel)

func WithLogger(logger *zap.Logger) Option {
	return func(m *ChatModel) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(m *ChatModel) {
		if r != nil {
			m.recorder = r
		}
	}
}

// WithImageLoader sets how image parts are resolved. Without it only data
// URLs and gs:// references are accepted.
func WithImageLoader(l ImageLoader) Option {
	return func(m *ChatModel) {
		if l != nil {
			m.images = l
		}
	}
}

// ChatModel is a configured chat model. It is safe for concurrent use and
// never changes after construction; Bind and BindTools return copies.
type ChatModel struct {
	backend  Backend
	cfg      Config
	info     ModelInfo
	defaults CallOptions

	logger   *zap.Logger
	recorder metrics.Recorder
	images   ImageLoader
}

// New creates a ChatModel that sends requests through backend.
func New(backend Backend, cfg Config, opts ...Option) (*ChatModel, error) {
	if backend == nil {
		return nil, errors.New("chat: backend is required")
	}
	if NormalizeModelName(cfg.Model) == "" {
		return nil, InvalidRequestf("", "model name is required")
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}

	m := &ChatModel{
		backend:  backend,
		cfg:      cfg,
		info:     LookupModel(cfg.Model),
		logger:   zap.NewNop(),
		recorder: metrics.Nop{},
		images:   defaultImageLoader,
	}
	m.defaults = CallOptions{
		Temperature:     cfg.Temperature,
		TopP:            cfg.TopP,
		TopK:            cfg.TopK,
		MaxOutputTokens: cfg.MaxOutputTokens,
		SafetySettings:  cfg.SafetySettings,
	}.clone()
	if err := validateOptions(m.info, m.defaults); err != nil {
		return nil, err
	}

	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With(zap.String("model", m.info.ID), zap.String("backend", backend.Name()))
	return m, nil
}

// Model returns the normalized model name.
func (m *ChatModel) Model() string { return m.info.ID }

// Info returns the capability registry entry of the model.
func (m *ChatModel) Info() ModelInfo { return m.info }

// Backend returns the name of the backend in use.
func (m *ChatModel) Backend() string { return m.backend.Name() }

// Defaults returns a copy of the options applied to every call.
func (m *ChatModel) Defaults() CallOptions { return m.defaults.clone() }

// Bind returns a copy of m whose calls default to opts. m is not modified.
func (m *ChatModel) Bind(opts ...CallOption) *ChatModel {
	out := *m
	out.defaults = m.defaults.with(opts...)
	return &out
}

// BindTools returns a copy of m with tools declared on every call. Further
// options such as WithToolChoice apply on top.
func (m *ChatModel) BindTools(tools []Tool, opts ...CallOption) *ChatModel {
	return m.Bind(append([]CallOption{WithTools(tools...)}, opts...)...)
}

// Invoke sends one conversation and waits for the complete reply.
func (m *ChatModel) Invoke(ctx context.Context, messages []Message, opts ...CallOption) (*Message, error) {
	start := time.Now()
	req, err := m.prepare(ctx, messages, opts)
	if err != nil {
		m.fail("invoke", start, err)
		return nil, err
	}
	m.logger.Debug("chat request",
		zap.String("op", "invoke"),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Options.Tools)),
		zap.Strings("tags", req.Options.Tags))

	msg, err := m.backend.Generate(ctx, req)
	if err != nil {
		m.fail("invoke", start, err)
		return nil, err
	}
	// Backends may hand out shared messages; never write into theirs.
	out := *msg
	if out.ResponseMetadata.Model == "" {
		out.ResponseMetadata.Model = m.info.ID
	}
	m.succeed("invoke", start, out.ResponseMetadata.Usage)
	return &out, nil
}

// GetNumTokens returns the number of tokens text occupies for this model.
func (m *ChatModel) GetNumTokens(ctx context.Context, text string) (int, error) {
	return m.countTokens(ctx, "tokens", Prompt(text))
}

// CountMessageTokens returns the number of prompt tokens of a conversation.
func (m *ChatModel) CountMessageTokens(ctx context.Context, messages []Message) (int, error) {
	return m.countTokens(ctx, "tokens", messages)
}

func (m *ChatModel) countTokens(ctx context.Context, op string, messages []Message) (int, error) {
	start := time.Now()
	req, err := m.prepare(ctx, messages, nil)
	if err != nil {
		m.fail(op, start, err)
		return 0, err
	}
	n, err := m.backend.CountTokens(ctx, req)
	if err != nil {
		m.fail(op, start, err)
		return 0, err
	}
	m.succeed(op, start, nil)
	return n, nil
}

func (m *ChatModel) succeed(op string, start time.Time, usage *Usage) {
	latency := time.Since(start)
	var prompt, completion int
	if usage != nil {
		prompt, completion = usage.PromptTokens, usage.CompletionTokens
	}
	m.recorder.RecordSuccess(m.info.ID, op, latency, prompt, completion)
	m.logger.Debug("chat request finished",
		zap.String("op", op),
		zap.Duration("latency", latency),
		zap.Int("prompt_tokens", prompt),
		zap.Int("completion_tokens", completion))
}

func (m *ChatModel) fail(op string, start time.Time, err error) {
	kind := KindOf(err)
	m.recorder.RecordFailure(m.info.ID, op, string(kind))
	m.logger.Warn("chat request failed",
		zap.String("op", op),
		zap.String("kind", string(kind)),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err))
}
