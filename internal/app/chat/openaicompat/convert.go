package openaicompat

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"genai-chat/internal/app/chat"
)

func (b *Backend) toRequest(req *chat.Request) (openai.ChatCompletionRequest, error) {
	opts := req.Options
	out := openai.ChatCompletionRequest{
		Model: req.Model,
		Stop:  opts.StopSequences,
	}
	if opts.Temperature != nil {
		out.Temperature = *opts.Temperature
		// go-openai omits a zero temperature; send the closest value it keeps.
		if out.Temperature == 0 {
			out.Temperature = math.SmallestNonzeroFloat32
		}
	}
	if opts.TopP != nil {
		out.TopP = *opts.TopP
	}
	if opts.MaxOutputTokens > 0 {
		out.MaxTokens = int(opts.MaxOutputTokens)
	}
	if opts.TopK != nil || len(opts.SafetySettings) > 0 {
		b.logger.Debug("top_k and safety settings are not sent over the OpenAI-compatible endpoint",
			zap.String("model", req.Model))
	}

	if req.System != "" {
		out.Messages = append(out.Messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		msg, err := toMessageParam(req.Model, m)
		if err != nil {
			return out, err
		}
		out.Messages = append(out.Messages, msg)
	}

	out.Tools = lo.Map(opts.Tools, func(t chat.Tool, _ int) openai.Tool {
		def := &openai.FunctionDefinition{Name: t.Name, Description: t.Description}
		if t.Parameters != nil {
			def.Parameters = t.Parameters
		} else {
			def.Parameters = &chat.Schema{Type: chat.TypeObject}
		}
		return openai.Tool{Type: openai.ToolTypeFunction, Function: def}
	})
	if tc := opts.ToolConfig; tc != nil && len(out.Tools) > 0 {
		out.ToolChoice = toolChoice(*tc)
	}
	return out, nil
}

func toolChoice(tc chat.ToolConfig) any {
	switch tc.Mode {
	case chat.ToolModeNone:
		return "none"
	case chat.ToolModeAny:
		if len(tc.AllowedFunctionNames) == 1 {
			return openai.ToolChoice{
				Type:     openai.ToolTypeFunction,
				Function: openai.ToolFunction{Name: tc.AllowedFunctionNames[0]},
			}
		}
		return "required"
	default:
		return "auto"
	}
}

func toMessageParam(model string, m chat.Message) (openai.ChatCompletionMessage, error) {
	switch m.Role {
	case chat.RoleAI:
		msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Text()}
		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Args)
			if err != nil {
				return msg, chat.InvalidRequestf(model, "encode tool call %s: %v", tc.Name, err)
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:       tc.ID,
				Type:     openai.ToolTypeFunction,
				Function: openai.FunctionCall{Name: tc.Name, Arguments: string(args)},
			})
		}
		return msg, nil
	case chat.RoleTool:
		body, _ := json.Marshal(m.ToolResponse())
		return openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Name:       m.Name,
			ToolCallID: m.ToolCallID,
			Content:    string(body),
		}, nil
	}

	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if !m.HasImages() {
		msg.Content = m.Text()
		return msg, nil
	}
	for _, p := range m.ContentParts() {
		if p.Type == chat.PartTypeText {
			msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeText,
				Text: p.Text,
			})
			continue
		}
		if p.FileURI != "" {
			return msg, &chat.Error{
				Kind:    chat.KindUnsupported,
				Message: "file URI images are not supported on the OpenAI-compatible endpoint",
				Model:   model,
			}
		}
		url := "data:" + p.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
		msg.MultiContent = append(msg.MultiContent, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: url},
		})
	}
	return msg, nil
}

func toMessage(model string, resp openai.ChatCompletionResponse) (*chat.Message, error) {
	if len(resp.Choices) == 0 {
		return nil, &chat.Error{Kind: chat.KindEmptyResponse, Message: "response has no choices", Model: model}
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonContentFilter && choice.Message.Content == "" {
		return nil, &chat.Error{Kind: chat.KindBlocked, Message: "response blocked by content filter", Model: model}
	}

	msg := &chat.Message{
		Role:    chat.RoleAI,
		Content: choice.Message.Content,
		ResponseMetadata: chat.ResponseMetadata{
			Model:        lo.Ternary(resp.Model != "", resp.Model, model),
			FinishReason: strings.ToUpper(string(choice.FinishReason)),
			Usage: &chat.Usage{
				PromptTokens:     resp.Usage.PromptTokens,
				CompletionTokens: resp.Usage.CompletionTokens,
				TotalTokens:      resp.Usage.TotalTokens,
			},
		},
	}
	for _, tc := range choice.Message.ToolCalls {
		id := lo.Ternary(tc.ID != "", tc.ID, uuid.NewString())
		args := map[string]any{}
		if strings.TrimSpace(tc.Function.Arguments) != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				msg.InvalidToolCalls = append(msg.InvalidToolCalls, chat.InvalidToolCall{
					ID:    id,
					Name:  tc.Function.Name,
					Args:  tc.Function.Arguments,
					Error: err.Error(),
				})
				continue
			}
		}
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{ID: id, Name: tc.Function.Name, Args: args})
		if msg.FunctionCall == nil {
			msg.FunctionCall = &chat.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments}
		}
	}
	return msg, nil
}

func toChunk(model string, resp openai.ChatCompletionStreamResponse) *chat.MessageChunk {
	chunk := &chat.MessageChunk{
		ResponseMetadata: chat.ResponseMetadata{Model: lo.Ternary(resp.Model != "", resp.Model, model)},
	}
	if u := resp.Usage; u != nil {
		chunk.ResponseMetadata.Usage = &chat.Usage{
			PromptTokens:     u.PromptTokens,
			CompletionTokens: u.CompletionTokens,
			TotalTokens:      u.TotalTokens,
		}
	}
	if len(resp.Choices) == 0 {
		return chunk
	}
	choice := resp.Choices[0]
	chunk.Content = choice.Delta.Content
	chunk.ResponseMetadata.FinishReason = strings.ToUpper(string(choice.FinishReason))
	for i, tc := range choice.Delta.ToolCalls {
		index := i
		if tc.Index != nil {
			index = *tc.Index
		}
		chunk.ToolCallChunks = append(chunk.ToolCallChunks, chat.ToolCallChunk{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Args:  tc.Function.Arguments,
			Index: index,
		})
		// The raw payload mirrors the first call, as in toMessage.
		if index == 0 && chunk.FunctionCall == nil && (tc.Function.Name != "" || tc.Function.Arguments != "") {
			chunk.FunctionCall = &chat.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments}
		}
	}
	return chunk
}
