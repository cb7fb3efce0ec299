//go:build wireinject
// +build wireinject

package app

import (
	"context"

	"github.com/google/wire"

	"genai-chat/internal/api/server"
	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/metrics"
	"genai-chat/internal/config"
)

var chatModelSet = wire.NewSet(
	provideLogger,
	provideChatConfiguration,
	provideBackend,
	provideRegistry,
	providePrometheus,
	metrics.NewInMemory,
	provideRecorder,
	provideChatModel,
)

// InitializeChatModel builds the chat model described by settings.
func InitializeChatModel(ctx context.Context, settings *config.Settings) (*chat.ChatModel, error) {
	wire.Build(chatModelSet, provideLocalImageLoader)
	return &chat.ChatModel{}, nil
}

// InitializeServer builds the HTTP gateway around the chat model.
func InitializeServer(ctx context.Context, settings *config.Settings) (*server.Server, error) {
	wire.Build(
		chatModelSet,
		provideImageLoader,
		provideServerConfig,
		provideServiceContainer,
		provideServer,
	)
	return &server.Server{}, nil
}
