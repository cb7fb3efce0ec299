package chat

import "strings"

// Capabilities describe what request shapes a model accepts.
type Capabilities struct {
	Vision bool `json:"vision"`
	// MultiTurnMultimodal is false for models that accept images only in a
	// single-turn conversation.
	MultiTurnMultimodal bool `json:"multi_turn_multimodal"`
	FunctionCalling     bool `json:"function_calling"`
	SystemInstruction   bool `json:"system_instruction"`
}

// ModelInfo is the registry entry for a model family.
type ModelInfo struct {
	ID              string       `json:"id"`
	DisplayName     string       `json:"display_name"`
	InputTokenLimit int          `json:"input_token_limit,omitempty"`
	Capabilities    Capabilities `json:"capabilities"`
	Known           bool         `json:"known"`
}

var fullCapabilities = Capabilities{
	Vision:              true,
	MultiTurnMultimodal: true,
	FunctionCalling:     true,
	SystemInstruction:   true,
}

// keyed by name prefix; the longest matching prefix wins
var modelRegistry = map[string]ModelInfo{
	"gemini-pro-vision": {
		DisplayName:     "Gemini 1.0 Pro Vision",
		InputTokenLimit: 12288,
		Capabilities:    Capabilities{Vision: true},
	},
	"gemini-1.0-pro-vision": {
		DisplayName:     "Gemini 1.0 Pro Vision",
		InputTokenLimit: 12288,
		Capabilities:    Capabilities{Vision: true},
	},
	"gemini-pro": {
		DisplayName:     "Gemini 1.0 Pro",
		InputTokenLimit: 30720,
		Capabilities:    Capabilities{FunctionCalling: true},
	},
	"gemini-1.0-pro": {
		DisplayName:     "Gemini 1.0 Pro",
		InputTokenLimit: 30720,
		Capabilities:    Capabilities{FunctionCalling: true},
	},
	"gemini-1.5-pro": {
		DisplayName:     "Gemini 1.5 Pro",
		InputTokenLimit: 2097152,
		Capabilities:    fullCapabilities,
	},
	"gemini-1.5-flash": {
		DisplayName:     "Gemini 1.5 Flash",
		InputTokenLimit: 1048576,
		Capabilities:    fullCapabilities,
	},
	"gemini-2": {
		DisplayName:     "Gemini 2",
		InputTokenLimit: 1048576,
		Capabilities:    fullCapabilities,
	},
	"gemini-3": {
		DisplayName:     "Gemini 3",
		InputTokenLimit: 1048576,
		Capabilities:    fullCapabilities,
	},
}

// NormalizeModelName strips the "models/" resource prefix.
func NormalizeModelName(name string) string {
	return strings.TrimPrefix(strings.TrimSpace(name), "models/")
}

// LookupModel returns the registry entry for name. Unknown models get full
// capabilities so the remote service has the final word on them.
func LookupModel(name string) ModelInfo {
	id := NormalizeModelName(name)
	best := ""
	for prefix := range modelRegistry {
		if strings.HasPrefix(id, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return ModelInfo{ID: id, DisplayName: id, Capabilities: fullCapabilities}
	}
	info := modelRegistry[best]
	info.ID = id
	info.Known = true
	return info
}
