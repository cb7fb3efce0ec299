package routes

import (
	"github.com/gin-gonic/gin"

	"genai-chat/internal/api/v1/handlers"
	"genai-chat/internal/api/v1/services"
)

// ServiceContainer holds the services behind the v1 routes
type ServiceContainer struct {
	ChatService  services.ChatService
	StatsService services.StatsService
}

// RegisterRoutes registers all v1 API routes
func RegisterRoutes(router *gin.RouterGroup, container *ServiceContainer) {
	chatHandler := handlers.NewChatHandler(container.ChatService)
	chatRoutes := router.Group("/chat")
	{
		chatRoutes.POST("/invoke", chatHandler.Invoke)
		chatRoutes.POST("/stream", chatHandler.Stream)
		chatRoutes.POST("/batch", chatHandler.Batch)
		chatRoutes.POST("/tokens", chatHandler.Tokens)
	}

	if container.StatsService != nil {
		statsHandler := handlers.NewStatsHandler(container.StatsService)
		stats := router.Group("/stats")
		{
			stats.GET("", statsHandler.GetOverall)
			stats.GET("/:model", statsHandler.GetModel)
		}
	}
}
