package services

import (
	"context"

	"genai-chat/internal/api/v1/dto"
	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/metrics"
)

// ChatService defines the interface for chat operations
type ChatService interface {
	Invoke(ctx context.Context, req dto.ChatRequest) (*dto.ChatResponse, error)
	Stream(ctx context.Context, req dto.ChatRequest) (*chat.Stream, error)
	Batch(ctx context.Context, req dto.BatchRequest) (*dto.BatchResponse, error)
	CountTokens(ctx context.Context, req dto.TokensRequest) (*dto.TokensResponse, error)
}

// StatsService defines the interface for request statistics
type StatsService interface {
	Overall() metrics.OverallStats
	Model(name string) metrics.ModelStats
}
