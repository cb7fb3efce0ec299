package chat

import (
	"encoding/json"
	"strings"

	"github.com/samber/lo"
)

// Role tags a message with the conversation participant that produced it.
type Role string

const (
	RoleSystem Role = "system"
	RoleHuman  Role = "human"
	RoleAI     Role = "ai"
	RoleTool   Role = "tool"
)

// PartType identifies the kind of a content part.
type PartType string

const (
	PartTypeText  PartType = "text"
	PartTypeImage PartType = "image_url"
)

// Part is one typed piece of message content.
//
// ImageURL accepts a data URL (data:image/png;base64,...), an http(s) URL,
// a local file path, a gs:// file URI or an s3://bucket/key object. Before a
// request is sent the image is resolved into Data/MIMEType, or FileURI for
// references the service fetches itself.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`

	Data     []byte `json:"-"`
	MIMEType string `json:"-"`
	FileURI  string `json:"-"`
}

// TextPart returns a text content part.
func TextPart(text string) Part {
	return Part{Type: PartTypeText, Text: text}
}

// ImagePart returns an image content part referencing url.
func ImagePart(url string) Part {
	return Part{Type: PartTypeImage, ImageURL: url}
}

// ToolCall is a structured invocation request emitted by the model.
type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// InvalidToolCall keeps a tool call whose arguments could not be parsed.
type InvalidToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Args  string `json:"args"`
	Error string `json:"error"`
}

// FunctionCall is the raw function-call payload as the provider returned it,
// with arguments serialized as a JSON object.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage reports token accounting for one response.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SafetyRating is the service's assessment of one harm category.
type SafetyRating struct {
	Category    HarmCategory `json:"category"`
	Probability string       `json:"probability"`
	Blocked     bool         `json:"blocked,omitempty"`
}

// ResponseMetadata carries provider-specific details about a response.
type ResponseMetadata struct {
	Model         string         `json:"model,omitempty"`
	FinishReason  string         `json:"finish_reason,omitempty"`
	SafetyRatings []SafetyRating `json:"safety_ratings,omitempty"`
	Usage         *Usage         `json:"usage,omitempty"`
}

// Message is one role-tagged unit of a conversation.
//
// Content holds plain text. When Parts is non-empty it supersedes Content.
// Assistant messages may carry ToolCalls, and tool messages answer one of
// them through ToolCallID.
type Message struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	Parts      []Part `json:"parts,omitempty"`
	Name       string `json:"name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`

	ToolCalls        []ToolCall        `json:"tool_calls,omitempty"`
	InvalidToolCalls []InvalidToolCall `json:"invalid_tool_calls,omitempty"`
	FunctionCall     *FunctionCall     `json:"function_call,omitempty"`
	ResponseMetadata ResponseMetadata  `json:"response_metadata"`
}

// HumanMessage returns a human turn with plain text content.
func HumanMessage(content string) Message {
	return Message{Role: RoleHuman, Content: content}
}

// HumanParts returns a human turn with typed content parts.
func HumanParts(parts ...Part) Message {
	return Message{Role: RoleHuman, Parts: parts}
}

// SystemMessage returns a system instruction message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AIMessage returns an assistant turn, optionally carrying tool calls.
func AIMessage(content string, toolCalls ...ToolCall) Message {
	return Message{Role: RoleAI, Content: content, ToolCalls: toolCalls}
}

// ToolMessage returns the result of the tool call identified by toolCallID.
func ToolMessage(name, content, toolCallID string) Message {
	return Message{Role: RoleTool, Name: name, Content: content, ToolCallID: toolCallID}
}

// ToolResultMessage serializes result as JSON and answers call with it.
func ToolResultMessage(call ToolCall, result any) (Message, error) {
	body, err := json.Marshal(result)
	if err != nil {
		return Message{}, err
	}
	return ToolMessage(call.Name, string(body), call.ID), nil
}

// Prompt wraps a single prompt string as a one-turn conversation.
func Prompt(text string) []Message {
	return []Message{HumanMessage(text)}
}

// Prompts wraps each prompt as its own one-turn conversation, for Batch.
func Prompts(texts ...string) [][]Message {
	return lo.Map(texts, func(text string, _ int) []Message {
		return Prompt(text)
	})
}

// Text returns the textual content of the message. Text parts are joined in
// order; image parts are skipped.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == PartTypeText {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// ContentParts returns the message content as parts, promoting plain
// Content to a single text part.
func (m Message) ContentParts() []Part {
	if len(m.Parts) > 0 {
		return m.Parts
	}
	if m.Content == "" {
		return nil
	}
	return []Part{TextPart(m.Content)}
}

// HasImages reports whether any part of the message is an image.
func (m Message) HasImages() bool {
	return lo.SomeBy(m.Parts, func(p Part) bool { return p.Type == PartTypeImage })
}

func (m Message) clone() Message {
	out := m
	out.Parts = append([]Part(nil), m.Parts...)
	out.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	return out
}

// ToolResponse returns the body of a tool message as a JSON object. A body
// that is already a JSON object is returned as decoded; any other value,
// including plain text, is wrapped as {"content": value}.
func (m Message) ToolResponse() map[string]any {
	text := m.Text()
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj != nil {
		return obj
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return map[string]any{"content": v}
	}
	return map[string]any{"content": text}
}
