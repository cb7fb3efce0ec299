package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"genai-chat/internal/api/errors"
	"genai-chat/internal/api/middleware"
	"genai-chat/internal/api/v1/dto"
	"genai-chat/internal/api/v1/services"
	"genai-chat/internal/app/chat"
)

// ChatHandler handles chat model HTTP requests
type ChatHandler struct {
	service services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(service services.ChatService) *ChatHandler {
	return &ChatHandler{service: service}
}

// Invoke handles POST /api/v1/chat/invoke
// @Summary Send one conversation
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.ChatRequest true "Conversation and options"
// @Success 200 {object} dto.ChatResponse
// @Failure 400 {object} errors.APIError
// @Failure 422 {object} errors.APIError
// @Failure 429 {object} errors.APIError
// @Router /api/v1/chat/invoke [post]
func (h *ChatHandler) Invoke(c *gin.Context) {
	var req dto.ChatRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp, err := h.service.Invoke(c.Request.Context(), req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stream handles POST /api/v1/chat/stream. Every chunk is sent as a "chunk"
// event; the stream ends with a "done" event holding the gathered message
// or an "error" event.
// @Summary Stream the reply to one conversation
// @Tags chat
// @Accept json
// @Produce text/event-stream
// @Param request body dto.ChatRequest true "Conversation and options"
// @Success 200 {object} dto.ChunkResponse
// @Failure 400 {object} errors.APIError
// @Router /api/v1/chat/stream [post]
func (h *ChatHandler) Stream(c *gin.Context) {
	var req dto.ChatRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	stream, err := h.service.Stream(c.Request.Context(), req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer stream.Close()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	gathered := &chat.MessageChunk{}
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			c.SSEvent("done", dto.NewChatResponse(gathered.Message()))
			c.Writer.Flush()
			return
		}
		if err != nil {
			apiErr := errors.FromChatError(err)
			apiErr.RequestID = middleware.GetRequestID(c)
			_ = c.Error(err)
			c.SSEvent("error", apiErr)
			c.Writer.Flush()
			return
		}
		gathered = gathered.Add(chunk)
		c.SSEvent("chunk", dto.NewChunkResponse(chunk))
		c.Writer.Flush()
	}
}

// Batch handles POST /api/v1/chat/batch
// @Summary Send several conversations
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.BatchRequest true "Conversations and shared options"
// @Success 200 {object} dto.BatchResponse
// @Failure 422 {object} errors.APIError
// @Router /api/v1/chat/batch [post]
func (h *ChatHandler) Batch(c *gin.Context) {
	var req dto.BatchRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp, err := h.service.Batch(c.Request.Context(), req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Tokens handles POST /api/v1/chat/tokens
// @Summary Count prompt tokens
// @Tags chat
// @Accept json
// @Produce json
// @Param request body dto.TokensRequest true "Text or conversation"
// @Success 200 {object} dto.TokensResponse
// @Failure 501 {object} errors.APIError
// @Router /api/v1/chat/tokens [post]
func (h *ChatHandler) Tokens(c *gin.Context) {
	var req dto.TokensRequest
	if err := middleware.ValidateRequest(c, &req); err != nil {
		middleware.HandleError(c, err)
		return
	}

	resp, err := h.service.CountTokens(c.Request.Context(), req)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
