package chat

import (
	"github.com/samber/lo"
)

// validateRequest rejects conversations the target model cannot accept
// before anything is sent.
func validateRequest(info ModelInfo, messages []Message, opts CallOptions) error {
	model := info.ID
	if len(messages) == 0 {
		return InvalidRequestf(model, "at least one message is required")
	}

	seenTurn := false
	turns := 0
	hasImages := false
	for i, m := range messages {
		switch m.Role {
		case RoleSystem:
			if seenTurn {
				return InvalidRequestf(model, "system message at position %d must precede all other messages", i)
			}
			if m.HasImages() {
				return InvalidRequestf(model, "system message at position %d cannot carry images", i)
			}
			continue
		case RoleHuman:
			if len(m.ContentParts()) == 0 {
				return InvalidRequestf(model, "human message at position %d has no content", i)
			}
		case RoleAI:
			if m.HasImages() {
				return InvalidRequestf(model, "ai message at position %d cannot carry images", i)
			}
		case RoleTool:
			if m.Name == "" && m.ToolCallID == "" {
				return InvalidRequestf(model, "tool message at position %d needs a name or a tool call id", i)
			}
		default:
			return InvalidRequestf(model, "message at position %d has unknown role %q", i, m.Role)
		}
		seenTurn = true
		turns++
		hasImages = hasImages || m.HasImages()
	}
	if turns == 0 {
		return InvalidRequestf(model, "conversation has no human or ai turns")
	}

	caps := info.Capabilities
	if hasImages && !caps.Vision {
		return InvalidRequestf(model, "model does not accept image content; use a vision model")
	}
	if hasImages && !caps.MultiTurnMultimodal && turns > 1 {
		return InvalidRequestf(model, "model accepts multimodal content in a single turn only, got %d turns", turns)
	}

	return validateOptions(info, opts)
}

func validateOptions(info ModelInfo, opts CallOptions) error {
	model := info.ID
	if t := opts.Temperature; t != nil && (*t < 0 || *t > 2) {
		return InvalidRequestf(model, "temperature %.2f out of range [0, 2]", *t)
	}
	if p := opts.TopP; p != nil && (*p < 0 || *p > 1) {
		return InvalidRequestf(model, "top_p %.2f out of range [0, 1]", *p)
	}
	if k := opts.TopK; k != nil && *k < 0 {
		return InvalidRequestf(model, "top_k must not be negative")
	}
	if opts.MaxOutputTokens < 0 {
		return InvalidRequestf(model, "max_output_tokens must not be negative")
	}

	if len(opts.Tools) > 0 && !info.Capabilities.FunctionCalling {
		return InvalidRequestf(model, "model does not support function calling")
	}
	for _, t := range opts.Tools {
		if err := t.Validate(); err != nil {
			return InvalidRequestf(model, "%v", err)
		}
	}
	if dup := lo.FindDuplicates(toolNames(opts.Tools)); len(dup) > 0 {
		return InvalidRequestf(model, "tool %q declared more than once", dup[0])
	}

	tc := opts.ToolConfig
	if tc == nil {
		return nil
	}
	switch tc.Mode {
	case ToolModeAuto, ToolModeAny, ToolModeNone:
	default:
		return InvalidRequestf(model, "unknown tool mode %q", tc.Mode)
	}
	if tc.Mode == ToolModeAny && len(opts.Tools) == 0 {
		return InvalidRequestf(model, "tool mode ANY requires at least one declared tool")
	}
	declared := toolNames(opts.Tools)
	for _, name := range tc.AllowedFunctionNames {
		if !lo.Contains(declared, name) {
			return InvalidRequestf(model, "allowed function %q is not a declared tool", name)
		}
	}
	return nil
}
