package chat

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

const pixel = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func TestValidateRequest(t *testing.T) {
	image := HumanParts(TextPart("Guess what's in this picture!"), ImagePart(pixel))
	search := Tool{Name: "search"}
	temp := func(v float32) *float32 { return &v }

	tests := []struct {
		name     string
		model    string
		messages []Message
		opts     CallOptions
		wantErr  string
	}{
		{name: "plain prompt", model: "gemini-pro", messages: Prompt("hi")},
		{name: "empty conversation", model: "gemini-pro", wantErr: "at least one message"},
		{name: "only system", model: "gemini-pro", messages: []Message{SystemMessage("be nice")}, wantErr: "no human or ai turns"},
		{
			name:     "system after human",
			model:    "gemini-1.5-flash",
			messages: []Message{HumanMessage("hi"), SystemMessage("be nice")},
			wantErr:  "must precede",
		},
		{name: "empty human", model: "gemini-pro", messages: []Message{HumanMessage("")}, wantErr: "no content"},
		{name: "unknown role", model: "gemini-pro", messages: []Message{{Role: "robot", Content: "x"}}, wantErr: "unknown role"},
		{name: "image to text-only model", model: "gemini-pro", messages: []Message{image}, wantErr: "does not accept image"},
		{name: "single-turn image on vision model", model: "gemini-pro-vision", messages: []Message{image}},
		{
			name:     "multi-turn image on vision model",
			model:    "models/gemini-pro-vision",
			messages: []Message{image, AIMessage("a cat"), HumanMessage("sure?")},
			wantErr:  "single turn",
		},
		{
			name:     "multi-turn image on gemini 1.5",
			model:    "gemini-1.5-pro",
			messages: []Message{image, AIMessage("a cat"), HumanMessage("sure?")},
		},
		{
			name:     "tools on vision model",
			model:    "gemini-pro-vision",
			messages: Prompt("hi"),
			opts:     CallOptions{Tools: []Tool{search}},
			wantErr:  "function calling",
		},
		{
			name:     "duplicate tools",
			model:    "gemini-1.5-flash",
			messages: Prompt("hi"),
			opts:     CallOptions{Tools: []Tool{search, search}},
			wantErr:  "more than once",
		},
		{
			name:     "forced tool not declared",
			model:    "gemini-1.5-flash",
			messages: Prompt("hi"),
			opts:     CallOptions{Tools: []Tool{search}, ToolConfig: &ToolConfig{Mode: ToolModeAny, AllowedFunctionNames: []string{"lookup"}}},
			wantErr:  "not a declared tool",
		},
		{
			name:     "mode any without tools",
			model:    "gemini-1.5-flash",
			messages: Prompt("hi"),
			opts:     CallOptions{ToolConfig: &ToolConfig{Mode: ToolModeAny}},
			wantErr:  "requires at least one",
		},
		{
			name:     "unknown mode",
			model:    "gemini-1.5-flash",
			messages: Prompt("hi"),
			opts:     CallOptions{ToolConfig: &ToolConfig{Mode: "SOMETIMES"}},
			wantErr:  "unknown tool mode",
		},
		{
			name:     "temperature out of range",
			model:    "gemini-pro",
			messages: Prompt("hi"),
			opts:     CallOptions{Temperature: temp(2.5)},
			wantErr:  "temperature",
		},
		{
			name:     "top_p out of range",
			model:    "gemini-pro",
			messages: Prompt("hi"),
			opts:     CallOptions{TopP: temp(1.5)},
			wantErr:  "top_p",
		},
		{
			name:     "tool message without reference",
			model:    "gemini-pro",
			messages: []Message{HumanMessage("hi"), {Role: RoleTool, Content: "{}"}},
			wantErr:  "tool message",
		},
		{name: "unknown model is permissive", model: "my-tuned-model", messages: []Message{image, AIMessage("x"), HumanMessage("y")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRequest(LookupModel(tt.model), tt.messages, tt.opts)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			assert.True(t, errors.Is(err, ErrInvalidRequest))
		})
	}
}

func TestLookupModel(t *testing.T) {
	vision := LookupModel("models/gemini-pro-vision")
	assert.Equal(t, "gemini-pro-vision", vision.ID)
	assert.True(t, vision.Known)
	assert.True(t, vision.Capabilities.Vision)
	assert.False(t, vision.Capabilities.MultiTurnMultimodal)
	assert.False(t, vision.Capabilities.FunctionCalling)

	pro := LookupModel("gemini-pro")
	assert.False(t, pro.Capabilities.Vision)
	assert.True(t, pro.Capabilities.FunctionCalling)

	flash := LookupModel("gemini-2.0-flash-001")
	assert.Equal(t, fullCapabilities, flash.Capabilities)
	assert.Equal(t, "Gemini 2", flash.DisplayName)

	unknown := LookupModel("tunedModels/abc")
	assert.False(t, unknown.Known)
	assert.Equal(t, fullCapabilities, unknown.Capabilities)
}
