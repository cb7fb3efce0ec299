package dto

import (
	"fmt"

	"genai-chat/internal/app/chat"
)

// MessageRequest is one conversation turn. Role accepts the chat roles and
// the common aliases user, assistant and model.
type MessageRequest struct {
	Role       string          `json:"role" binding:"required,oneof=system human user ai assistant model tool"`
	Content    string          `json:"content"`
	Images     []string        `json:"images,omitempty"`
	Name       string          `json:"name,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	ToolCalls  []chat.ToolCall `json:"tool_calls,omitempty"`
}

// ToolRequest declares a tool the model may call.
type ToolRequest struct {
	Name        string       `json:"name" binding:"required"`
	Description string       `json:"description"`
	Parameters  *chat.Schema `json:"parameters,omitempty"`
}

// OptionsRequest carries per-call options.
type OptionsRequest struct {
	Temperature     *float32          `json:"temperature,omitempty" binding:"omitempty,gte=0,lte=2"`
	TopP            *float32          `json:"top_p,omitempty" binding:"omitempty,gte=0,lte=1"`
	TopK            *float32          `json:"top_k,omitempty" binding:"omitempty,gte=0"`
	MaxOutputTokens int32             `json:"max_output_tokens,omitempty" binding:"gte=0"`
	Stop            []string          `json:"stop,omitempty"`
	SafetySettings  map[string]string `json:"safety_settings,omitempty"`
	Tools           []ToolRequest     `json:"tools,omitempty" binding:"dive"`

	// ToolChoice is "auto", "none", "any" or the name of one tool.
	ToolChoice string   `json:"tool_choice,omitempty"`
	Tags       []string `json:"tags,omitempty"`
}

// ChatRequest is the body of invoke and stream.
type ChatRequest struct {
	Messages []MessageRequest `json:"messages" binding:"required,min=1,dive"`
	Options  *OptionsRequest  `json:"options,omitempty"`
}

// BatchRequest is the body of batch. Every conversation is sent with the
// same options.
type BatchRequest struct {
	Conversations [][]MessageRequest `json:"conversations" binding:"required,min=1,max=100,dive,min=1,dive"`
	Options       *OptionsRequest    `json:"options,omitempty"`
}

type TokensRequest struct {
	Text     string           `json:"text"`
	Messages []MessageRequest `json:"messages,omitempty" binding:"dive"`
}

// ChatResponse is a complete assistant message.
type ChatResponse struct {
	Content       string              `json:"content"`
	ToolCalls     []chat.ToolCall     `json:"tool_calls,omitempty"`
	FinishReason  string              `json:"finish_reason,omitempty"`
	Model         string              `json:"model,omitempty"`
	Usage         *chat.Usage         `json:"usage,omitempty"`
	SafetyRatings []chat.SafetyRating `json:"safety_ratings,omitempty"`
}

// ChunkResponse is the data of one stream event.
type ChunkResponse struct {
	Content        string               `json:"content,omitempty"`
	ToolCallChunks []chat.ToolCallChunk `json:"tool_call_chunks,omitempty"`
	FinishReason   string               `json:"finish_reason,omitempty"`
	Usage          *chat.Usage          `json:"usage,omitempty"`
}

type BatchItem struct {
	Index    int           `json:"index"`
	Response *ChatResponse `json:"response,omitempty"`
	Error    string        `json:"error,omitempty"`
}

type BatchResponse struct {
	Results []BatchItem `json:"results"`
	Failed  int         `json:"failed"`
}

type TokensResponse struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
}

// Validate requires text or messages.
func (r *TokensRequest) Validate() error {
	if r.Text == "" && len(r.Messages) == 0 {
		return fmt.Errorf("text or messages is required")
	}
	return nil
}

// Validate checks that safety settings name known categories and
// thresholds.
func (r *ChatRequest) Validate() error {
	return r.Options.validate()
}

func (r *BatchRequest) Validate() error {
	return r.Options.validate()
}

func (o *OptionsRequest) validate() error {
	if o == nil {
		return nil
	}
	_, err := chat.ParseSafetySettings(o.SafetySettings)
	return err
}

// ToMessages converts request turns into chat messages.
func ToMessages(in []MessageRequest) []chat.Message {
	out := make([]chat.Message, 0, len(in))
	for _, m := range in {
		msg := chat.Message{
			Role:       normalizeRole(m.Role),
			Content:    m.Content,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			ToolCalls:  m.ToolCalls,
		}
		if len(m.Images) > 0 {
			if m.Content != "" {
				msg.Parts = append(msg.Parts, chat.TextPart(m.Content))
			}
			for _, img := range m.Images {
				msg.Parts = append(msg.Parts, chat.ImagePart(img))
			}
			msg.Content = ""
		}
		out = append(out, msg)
	}
	return out
}

func normalizeRole(role string) chat.Role {
	switch role {
	case "user":
		return chat.RoleHuman
	case "assistant", "model":
		return chat.RoleAI
	default:
		return chat.Role(role)
	}
}

// CallOptions converts the request options. A nil receiver yields none.
func (o *OptionsRequest) CallOptions() ([]chat.CallOption, error) {
	if o == nil {
		return nil, nil
	}
	var opts []chat.CallOption
	if o.Temperature != nil {
		opts = append(opts, chat.WithTemperature(*o.Temperature))
	}
	if o.TopP != nil {
		opts = append(opts, chat.WithTopP(*o.TopP))
	}
	if o.TopK != nil {
		opts = append(opts, chat.WithTopK(*o.TopK))
	}
	if o.MaxOutputTokens > 0 {
		opts = append(opts, chat.WithMaxOutputTokens(o.MaxOutputTokens))
	}
	if len(o.Stop) > 0 {
		opts = append(opts, chat.WithStopSequences(o.Stop...))
	}
	if len(o.SafetySettings) > 0 {
		safety, err := chat.ParseSafetySettings(o.SafetySettings)
		if err != nil {
			return nil, err
		}
		opts = append(opts, chat.WithSafetySettings(safety))
	}
	if len(o.Tools) > 0 {
		tools := make([]chat.Tool, 0, len(o.Tools))
		for _, t := range o.Tools {
			tools = append(tools, chat.Tool{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
		}
		opts = append(opts, chat.WithTools(tools...))
	}
	switch o.ToolChoice {
	case "", "auto":
	case "none":
		opts = append(opts, chat.WithToolConfig(chat.ToolConfig{Mode: chat.ToolModeNone}))
	case "any":
		opts = append(opts, chat.WithToolChoiceAny())
	default:
		opts = append(opts, chat.WithToolChoice(o.ToolChoice))
	}
	if len(o.Tags) > 0 {
		opts = append(opts, chat.WithTags(o.Tags...))
	}
	return opts, nil
}

// NewChatResponse converts an assistant message.
func NewChatResponse(m *chat.Message) *ChatResponse {
	if m == nil {
		return nil
	}
	return &ChatResponse{
		Content:       m.Text(),
		ToolCalls:     m.ToolCalls,
		FinishReason:  m.ResponseMetadata.FinishReason,
		Model:         m.ResponseMetadata.Model,
		Usage:         m.ResponseMetadata.Usage,
		SafetyRatings: m.ResponseMetadata.SafetyRatings,
	}
}

// NewChunkResponse converts one stream chunk.
func NewChunkResponse(c *chat.MessageChunk) ChunkResponse {
	return ChunkResponse{
		Content:        c.Content,
		ToolCallChunks: c.ToolCallChunks,
		FinishReason:   c.ResponseMetadata.FinishReason,
		Usage:          c.ResponseMetadata.Usage,
	}
}
