package genaibackend

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"google.golang.org/genai"

	"genai-chat/internal/app/chat"
)

const (
	roleUser  = "user"
	roleModel = "model"
)

// toContents converts a prepared conversation into Gemini contents.
// Consecutive tool results are merged into one user turn.
func toContents(messages []chat.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case chat.RoleHuman:
			contents = append(contents, &genai.Content{Role: roleUser, Parts: toParts(m.ContentParts())})
		case chat.RoleAI:
			parts := aiParts(m)
			if len(parts) == 0 {
				continue
			}
			contents = append(contents, &genai.Content{Role: roleModel, Parts: parts})
		case chat.RoleTool:
			part := &genai.Part{FunctionResponse: &genai.FunctionResponse{
				Name:     m.Name,
				Response: m.ToolResponse(),
			}}
			if last := lastContent(contents); last != nil && isFunctionResponses(last) {
				last.Parts = append(last.Parts, part)
				continue
			}
			contents = append(contents, &genai.Content{Role: roleUser, Parts: []*genai.Part{part}})
		}
	}
	return contents
}

func toParts(parts []chat.Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Type == chat.PartTypeText:
			out = append(out, &genai.Part{Text: p.Text})
		case p.FileURI != "":
			out = append(out, &genai.Part{FileData: &genai.FileData{FileURI: p.FileURI, MIMEType: p.MIMEType}})
		default:
			out = append(out, &genai.Part{InlineData: &genai.Blob{Data: p.Data, MIMEType: p.MIMEType}})
		}
	}
	return out
}

func aiParts(m chat.Message) []*genai.Part {
	var parts []*genai.Part
	if text := m.Text(); text != "" {
		parts = append(parts, &genai.Part{Text: text})
	}
	for _, tc := range m.ToolCalls {
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: tc.Args}})
	}
	if len(m.ToolCalls) == 0 && m.FunctionCall != nil {
		args := map[string]any{}
		_ = json.Unmarshal([]byte(m.FunctionCall.Arguments), &args)
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{Name: m.FunctionCall.Name, Args: args}})
	}
	return parts
}

func lastContent(contents []*genai.Content) *genai.Content {
	if len(contents) == 0 {
		return nil
	}
	return contents[len(contents)-1]
}

func isFunctionResponses(c *genai.Content) bool {
	return c.Role == roleUser && len(c.Parts) > 0 &&
		lo.EveryBy(c.Parts, func(p *genai.Part) bool { return p.FunctionResponse != nil })
}

func toConfig(req *chat.Request) *genai.GenerateContentConfig {
	opts := req.Options
	cfg := &genai.GenerateContentConfig{
		Temperature:     opts.Temperature,
		TopP:            opts.TopP,
		TopK:            opts.TopK,
		MaxOutputTokens: opts.MaxOutputTokens,
		StopSequences:   opts.StopSequences,
	}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	for _, category := range opts.SafetySettings.Categories() {
		cfg.SafetySettings = append(cfg.SafetySettings, &genai.SafetySetting{
			Category:  genai.HarmCategory(category),
			Threshold: genai.HarmBlockThreshold(opts.SafetySettings[category]),
		})
	}
	if len(opts.Tools) > 0 {
		decls := lo.Map(opts.Tools, func(t chat.Tool, _ int) *genai.FunctionDeclaration {
			return &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.Parameters),
			}
		})
		cfg.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}
	if tc := opts.ToolConfig; tc != nil {
		cfg.ToolConfig = &genai.ToolConfig{FunctionCallingConfig: &genai.FunctionCallingConfig{
			Mode:                 genai.FunctionCallingConfigMode(tc.Mode),
			AllowedFunctionNames: tc.AllowedFunctionNames,
		}}
	}
	return cfg
}

func toSchema(s *chat.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Required:    s.Required,
		Enum:        s.Enum,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = lo.MapValues(s.Properties, func(p *chat.Schema, _ string) *genai.Schema {
			return toSchema(p)
		})
	}
	return out
}

// toMessage converts a complete response into an assistant message.
func toMessage(model string, resp *genai.GenerateContentResponse) (*chat.Message, error) {
	if err := checkBlocked(model, resp); err != nil {
		return nil, err
	}
	cand := resp.Candidates[0]
	msg := &chat.Message{Role: chat.RoleAI, ResponseMetadata: metadata(model, resp)}

	var text strings.Builder
	if cand.Content != nil {
		for _, p := range cand.Content.Parts {
			switch {
			case p.FunctionCall != nil:
				call := toToolCall(p.FunctionCall)
				msg.ToolCalls = append(msg.ToolCalls, call)
				if msg.FunctionCall == nil {
					msg.FunctionCall = rawFunctionCall(p.FunctionCall)
				}
			case p.Thought:
			default:
				text.WriteString(p.Text)
			}
		}
	}
	msg.Content = text.String()
	if msg.Content == "" && len(msg.ToolCalls) == 0 && cand.FinishReason == genai.FinishReasonSafety {
		return nil, blockedError(model, "response blocked by safety filters")
	}
	return msg, nil
}

// toChunk converts one streamed response. nextIndex is the number of
// function calls seen in earlier chunks.
func toChunk(model string, resp *genai.GenerateContentResponse, nextIndex int) (*chat.MessageChunk, int, error) {
	if err := checkBlocked(model, resp); err != nil {
		return nil, nextIndex, err
	}
	chunk := &chat.MessageChunk{ResponseMetadata: metadata(model, resp)}
	cand := resp.Candidates[0]
	if cand.Content == nil {
		return chunk, nextIndex, nil
	}
	var text strings.Builder
	for _, p := range cand.Content.Parts {
		switch {
		case p.FunctionCall != nil:
			call := toToolCall(p.FunctionCall)
			args, _ := json.Marshal(call.Args)
			chunk.ToolCallChunks = append(chunk.ToolCallChunks, chat.ToolCallChunk{
				ID:    call.ID,
				Name:  call.Name,
				Args:  string(args),
				Index: nextIndex,
			})
			nextIndex++
			if chunk.FunctionCall == nil {
				chunk.FunctionCall = rawFunctionCall(p.FunctionCall)
			}
		case p.Thought:
		default:
			text.WriteString(p.Text)
		}
	}
	chunk.Content = text.String()
	return chunk, nextIndex, nil
}

func toToolCall(fc *genai.FunctionCall) chat.ToolCall {
	id := fc.ID
	if id == "" {
		id = uuid.NewString()
	}
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	return chat.ToolCall{ID: id, Name: fc.Name, Args: args}
}

func rawFunctionCall(fc *genai.FunctionCall) *chat.FunctionCall {
	args := fc.Args
	if args == nil {
		args = map[string]any{}
	}
	body, _ := json.Marshal(args)
	return &chat.FunctionCall{Name: fc.Name, Arguments: string(body)}
}

func checkBlocked(model string, resp *genai.GenerateContentResponse) error {
	if resp == nil {
		return &chat.Error{Kind: chat.KindEmptyResponse, Message: "no response", Model: model}
	}
	if len(resp.Candidates) > 0 {
		return nil
	}
	if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
		reason := string(fb.BlockReason)
		if fb.BlockReasonMessage != "" {
			reason += ": " + fb.BlockReasonMessage
		}
		return blockedError(model, "prompt blocked ("+reason+")")
	}
	return &chat.Error{Kind: chat.KindEmptyResponse, Message: "response has no candidates", Model: model}
}

func blockedError(model, message string) error {
	return &chat.Error{Kind: chat.KindBlocked, Message: message, Model: model}
}

func metadata(model string, resp *genai.GenerateContentResponse) chat.ResponseMetadata {
	md := chat.ResponseMetadata{Model: model}
	if resp.ModelVersion != "" {
		md.Model = resp.ModelVersion
	}
	if len(resp.Candidates) > 0 {
		cand := resp.Candidates[0]
		md.FinishReason = string(cand.FinishReason)
		for _, r := range cand.SafetyRatings {
			md.SafetyRatings = append(md.SafetyRatings, chat.SafetyRating{
				Category:    chat.HarmCategory(r.Category),
				Probability: string(r.Probability),
				Blocked:     r.Blocked,
			})
		}
	}
	if u := resp.UsageMetadata; u != nil {
		md.Usage = &chat.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return md
}
