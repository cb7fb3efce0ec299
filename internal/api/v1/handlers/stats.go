package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"genai-chat/internal/api/v1/services"
)

// StatsHandler handles statistics-related HTTP requests
type StatsHandler struct {
	service services.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(service services.StatsService) *StatsHandler {
	return &StatsHandler{
		service: service,
	}
}

// GetOverall handles GET /api/v1/stats
// @Summary Request statistics across models
// @Tags stats
// @Produce json
// @Success 200 {object} metrics.OverallStats
// @Router /api/v1/stats [get]
func (h *StatsHandler) GetOverall(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Overall())
}

// GetModel handles GET /api/v1/stats/:model
// @Summary Request statistics of one model
// @Tags stats
// @Produce json
// @Param model path string true "Model name"
// @Success 200 {object} metrics.ModelStats
// @Router /api/v1/stats/{model} [get]
func (h *StatsHandler) GetModel(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Model(c.Param("model")))
}
