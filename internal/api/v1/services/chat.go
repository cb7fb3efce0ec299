package services

import (
	"context"

	"genai-chat/internal/api/v1/dto"
	"genai-chat/internal/app/chat"
)

type chatService struct {
	model *chat.ChatModel
}

// NewChatService creates a ChatService over model.
func NewChatService(model *chat.ChatModel) ChatService {
	return &chatService{model: model}
}

func (s *chatService) Invoke(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error) {
	opts, err := req.Options.CallOptions()
	if err != nil {
		return nil, chat.InvalidRequestf(s.model.Model(), "%v", err)
	}
	msg, err := s.model.Invoke(ctx, dto.ToMessages(req.Messages), opts...)
	if err != nil {
		return nil, err
	}
	return dto.NewChatResponse(msg), nil
}

func (s *chatService) Stream(ctx context.Context, req dto.ChatRequest) (*chat.Stream, error) {
	opts, err := req.Options.CallOptions()
	if err != nil {
		return nil, chat.InvalidRequestf(s.model.Model(), "%v", err)
	}
	return s.model.Stream(ctx, dto.ToMessages(req.Messages), opts...)
}

// Batch reports per-item failures in the response instead of failing the
// whole request.
func (s *chatService) Batch(ctx context.Context, req dto.BatchRequest) (*dto.BatchResponse, error) {
	opts, err := req.Options.CallOptions()
	if err != nil {
		return nil, chat.InvalidRequestf(s.model.Model(), "%v", err)
	}
	inputs := make([][]chat.Message, len(req.Conversations))
	for i, conv := range req.Conversations {
		inputs[i] = dto.ToMessages(conv)
	}

	msgs, err := s.model.Batch(ctx, inputs, opts...)
	itemErrs := chat.BatchItemErrors(err)
	if err != nil && itemErrs == nil {
		return nil, err
	}

	resp := &dto.BatchResponse{Results: make([]dto.BatchItem, len(msgs))}
	for i, msg := range msgs {
		item := dto.BatchItem{Index: i, Response: dto.NewChatResponse(msg)}
		if e, ok := itemErrs[i]; ok {
			item.Error = e.Error()
			resp.Failed++
		}
		resp.Results[i] = item
	}
	return resp, nil
}

func (s *chatService) CountTokens(ctx context.Context, req dto.TokensRequest) (*dto.TokensResponse, error) {
	var (
		n   int
		err error
	)
	if len(req.Messages) > 0 {
		n, err = s.model.CountMessageTokens(ctx, dto.ToMessages(req.Messages))
	} else {
		n, err = s.model.GetNumTokens(ctx, req.Text)
	}
	if err != nil {
		return nil, err
	}
	return &dto.TokensResponse{Model: s.model.Model(), Tokens: n}, nil
}
