package test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"genai-chat/internal/api/server"
	v1routes "genai-chat/internal/api/v1/routes"
	"genai-chat/internal/api/v1/services"
	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/chat/imageloader"
	"genai-chat/internal/app/metrics"
	"genai-chat/internal/app/testutil"
)

type harness struct {
	router  *gin.Engine
	backend *testutil.MockBackend
	stats   *metrics.InMemory
}

func setupTestRouter(t *testing.T, model string, opts ...chat.Option) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := testutil.NewMockBackend()
	stats := metrics.NewInMemory()
	reg := prometheus.NewRegistry()
	prom, err := metrics.NewPrometheus(reg)
	require.NoError(t, err)

	opts = append([]chat.Option{chat.WithRecorder(metrics.Multi{stats, prom})}, opts...)
	m, err := chat.New(backend, chat.Config{Model: model}, opts...)
	require.NoError(t, err)

	srv := server.NewServer(server.Config{Host: "127.0.0.1", Port: "0", Environment: "test"},
		&v1routes.ServiceContainer{
			ChatService:  services.NewChatService(m),
			StatsService: services.NewStatsService(stats),
		}, reg, zap.NewNop())
	return &harness{router: srv.Router(), backend: backend, stats: stats}
}

func (h *harness) post(t *testing.T, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestChatHandler_Invoke(t *testing.T) {
	tests := []struct {
		name           string
		model          string
		request        any
		setupMocks     func(*testutil.MockBackend)
		expectedStatus int
		validateBody   func(*testing.T, map[string]interface{})
	}{
		{
			name:  "successful invoke",
			model: "gemini-1.5-flash",
			request: map[string]any{
				"messages": []map[string]any{{"role": "user", "content": "This is a test. Say 'foo'"}},
				"options":  map[string]any{"temperature": 0.2},
			},
			setupMocks: func(b *testutil.MockBackend) {
				b.On("Generate", mock.Anything, mock.MatchedBy(func(r *chat.Request) bool {
					return r.Options.Temperature != nil && *r.Options.Temperature == 0.2
				})).Return(&chat.Message{
					Role:             chat.RoleAI,
					Content:          "foo",
					ResponseMetadata: chat.ResponseMetadata{FinishReason: "STOP", Usage: &chat.Usage{PromptTokens: 7, CompletionTokens: 1, TotalTokens: 8}},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "foo", body["content"])
				assert.Equal(t, "STOP", body["finish_reason"])
				assert.Equal(t, "gemini-1.5-flash", body["model"])
			},
		},
		{
			name:           "validation error - missing messages",
			model:          "gemini-1.5-flash",
			request:        map[string]any{},
			setupMocks:     func(*testutil.MockBackend) {},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "validation", body["kind"])
				assert.NotNil(t, body["details"])
			},
		},
		{
			name:  "validation error - unknown role",
			model: "gemini-1.5-flash",
			request: map[string]any{
				"messages": []map[string]any{{"role": "narrator", "content": "hi"}},
			},
			setupMocks:     func(*testutil.MockBackend) {},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				details := body["details"].(map[string]interface{})
				assert.Equal(t, "must be one of system human user ai assistant model tool", details["messages[0].role"])
			},
		},
		{
			name:  "validation error - unknown safety threshold",
			model: "gemini-1.5-flash",
			request: map[string]any{
				"messages": []map[string]any{{"role": "user", "content": "hi"}},
				"options":  map[string]any{"safety_settings": map[string]string{"harassment": "sometimes"}},
			},
			setupMocks:     func(*testutil.MockBackend) {},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:  "image to a text-only model is a bad request",
			model: "gemini-pro",
			request: map[string]any{
				"messages": []map[string]any{{"role": "user", "content": "What is this?", "images": []string{testutil.TinyPNGDataURL}}},
			},
			setupMocks:     func(*testutil.MockBackend) {},
			expectedStatus: http.StatusBadRequest,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "bad_request", body["kind"])
				assert.Equal(t, "invalid_request", body["code"])
				assert.NotEmpty(t, body["request_id"])
			},
		},
		{
			name:  "upstream rate limit",
			model: "gemini-1.5-flash",
			request: map[string]any{
				"messages": []map[string]any{{"role": "user", "content": "hi"}},
			},
			setupMocks: func(b *testutil.MockBackend) {
				b.On("Generate", mock.Anything, mock.Anything).
					Return(nil, chat.FromHTTPStatus(http.StatusTooManyRequests, "quota exhausted", "gemini-1.5-flash", nil))
			},
			expectedStatus: http.StatusTooManyRequests,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "rate_limited", body["kind"])
				assert.Equal(t, true, body["retryable"])
			},
		},
		{
			name:  "prompt blocked",
			model: "gemini-1.5-flash",
			request: map[string]any{
				"messages": []map[string]any{{"role": "user", "content": "hi"}},
			},
			setupMocks: func(b *testutil.MockBackend) {
				b.On("Generate", mock.Anything, mock.Anything).
					Return(nil, &chat.Error{Kind: chat.KindBlocked, Message: "prompt blocked (SAFETY)"})
			},
			expectedStatus: http.StatusUnprocessableEntity,
			validateBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "blocked", body["kind"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestRouter(t, tt.model)
			tt.setupMocks(h.backend)

			w := h.post(t, "/api/v1/chat/invoke", tt.request)

			assert.Equal(t, tt.expectedStatus, w.Code, w.Body.String())
			if tt.validateBody != nil {
				tt.validateBody(t, decode(t, w))
			}
		})
	}
}

func TestChatHandler_InvokeForcedTool(t *testing.T) {
	h := setupTestRouter(t, "gemini-1.5-flash")
	h.backend.On("Generate", mock.Anything, mock.MatchedBy(func(r *chat.Request) bool {
		return r.Options.ToolConfig != nil &&
			r.Options.ToolConfig.Mode == chat.ToolModeAny &&
			assert.ObjectsAreEqual([]string{"search"}, r.Options.ToolConfig.AllowedFunctionNames)
	})).Return(&chat.Message{
		Role:      chat.RoleAI,
		ToolCalls: []chat.ToolCall{{ID: "1", Name: "search", Args: map[string]any{"query": "weather"}}},
	}, nil)

	w := h.post(t, "/api/v1/chat/invoke", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": "Search the weather"}},
		"options": map[string]any{
			"tools": []map[string]any{{
				"name":        "search",
				"description": "Web search",
				"parameters": map[string]any{
					"type":       "object",
					"properties": map[string]any{"query": map[string]any{"type": "string"}},
					"required":   []string{"query"},
				},
			}},
			"tool_choice": "search",
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "", body["content"])
	calls := body["tool_calls"].([]interface{})
	require.Len(t, calls, 1)
	assert.Equal(t, "search", calls[0].(map[string]interface{})["name"])
}

func TestChatHandler_InvokeRejectsServerSideImages(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(testutil.TinyPNGBytes(t))
	}))
	defer upstream.Close()

	h := setupTestRouter(t, "gemini-1.5-flash", chat.WithImageLoader(imageloader.New()))
	secret := testutil.WriteTinyPNG(t)

	for _, ref := range []string{secret, "file://" + secret, upstream.URL + "/pixel.png"} {
		w := h.post(t, "/api/v1/chat/invoke", map[string]any{
			"messages": []map[string]any{{"role": "user", "content": "What is this?", "images": []string{ref}}},
		})
		assert.Equal(t, http.StatusBadRequest, w.Code, ref)
		assert.Equal(t, "bad_request", decode(t, w)["kind"], ref)
	}
	assert.Zero(t, hits.Load())
	assert.Empty(t, h.backend.Requests())
}

func TestChatHandler_Stream(t *testing.T) {
	h := setupTestRouter(t, "gemini-1.5-flash")
	h.backend.On("Stream", mock.Anything, mock.Anything).Return(testutil.TextChunks("I'm ", "Pickle ", "Rick"))

	w := h.post(t, "/api/v1/chat/stream", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": "Who are you?"}},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/event-stream")

	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 4)
	var text strings.Builder
	for _, ev := range events[:3] {
		assert.Equal(t, "chunk", ev.name)
		text.WriteString(ev.data["content"].(string))
	}
	assert.Equal(t, "I'm Pickle Rick", text.String())
	assert.Equal(t, "done", events[3].name)
	assert.Equal(t, "I'm Pickle Rick", events[3].data["content"])
}

func TestChatHandler_StreamError(t *testing.T) {
	h := setupTestRouter(t, "gemini-1.5-flash")
	h.backend.On("Stream", mock.Anything, mock.Anything).Return(testutil.Chunks(
		chat.FromHTTPStatus(http.StatusServiceUnavailable, "overloaded", "gemini-1.5-flash", nil),
		&chat.MessageChunk{Content: "partial"},
	))

	w := h.post(t, "/api/v1/chat/stream", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	})
	events := parseSSE(t, w.Body.String())
	require.Len(t, events, 2)
	assert.Equal(t, "chunk", events[0].name)
	assert.Equal(t, "error", events[1].name)
	assert.Equal(t, "service_unavailable", events[1].data["kind"])
}

func TestChatHandler_StreamRejectsBeforeStreaming(t *testing.T) {
	h := setupTestRouter(t, "gemini-pro-vision")

	w := h.post(t, "/api/v1/chat/stream", map[string]any{
		"messages": []map[string]any{
			{"role": "user", "content": "Guess a number"},
			{"role": "assistant", "content": "2"},
			{"role": "user", "content": "What is this?", "images": []string{testutil.TinyPNGDataURL}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	h.backend.AssertNotCalled(t, "Stream", mock.Anything, mock.Anything)
}

func TestChatHandler_Batch(t *testing.T) {
	h := setupTestRouter(t, "gemini-1.5-flash")
	h.backend.On("Generate", mock.Anything, mock.Anything).Return(func(_ context.Context, r *chat.Request) *chat.Message {
		return &chat.Message{Role: chat.RoleAI, Content: "Echo: " + r.Messages[len(r.Messages)-1].Text()}
	}, nil)

	w := h.post(t, "/api/v1/chat/batch", map[string]any{
		"conversations": [][]map[string]any{
			{{"role": "user", "content": "How much is 2+2?"}},
			{{"role": "user", "content": "How much is 3+3?"}},
			{{"role": "system", "content": "late"}, {"role": "user", "content": "x"}, {"role": "system", "content": "too late"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decode(t, w)
	results := body["results"].([]interface{})
	require.Len(t, results, 3)
	first := results[0].(map[string]interface{})
	assert.Equal(t, "Echo: How much is 2+2?", first["response"].(map[string]interface{})["content"])
	second := results[1].(map[string]interface{})
	assert.Equal(t, "Echo: How much is 3+3?", second["response"].(map[string]interface{})["content"])
	third := results[2].(map[string]interface{})
	assert.Nil(t, third["response"])
	assert.NotEmpty(t, third["error"])
	assert.Equal(t, float64(1), body["failed"])
}

func TestChatHandler_Tokens(t *testing.T) {
	h := setupTestRouter(t, "gemini-pro")
	h.backend.On("CountTokens", mock.Anything, mock.MatchedBy(func(r *chat.Request) bool {
		return len(r.Messages) == 1 && r.Messages[0].Text() == "How are you?"
	})).Return(4, nil)

	w := h.post(t, "/api/v1/chat/tokens", map[string]any{"text": "How are you?"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, float64(4), body["tokens"])
	assert.Equal(t, "gemini-pro", body["model"])

	w = h.post(t, "/api/v1/chat/tokens", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestChatHandler_TokensUnsupported(t *testing.T) {
	h := setupTestRouter(t, "gemini-pro")
	h.backend.On("CountTokens", mock.Anything, mock.Anything).
		Return(0, &chat.Error{Kind: chat.KindUnsupported, Message: "token counting is not available"})

	w := h.post(t, "/api/v1/chat/tokens", map[string]any{"text": "How are you?"})
	assert.Equal(t, http.StatusNotImplemented, w.Code)
}

func TestStatsAndMetrics(t *testing.T) {
	h := setupTestRouter(t, "gemini-1.5-flash")
	h.backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI, Content: "ok"}, nil)
	require.Equal(t, http.StatusOK, h.post(t, "/api/v1/chat/invoke", map[string]any{
		"messages": []map[string]any{{"role": "user", "content": "hi"}},
	}).Code)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats/gemini-1.5-flash", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["successful_requests"])

	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/stats", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["total_requests"])

	w = httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "genai_chat_requests_total")
}

func TestHealthAndRequestID(t *testing.T) {
	h := setupTestRouter(t, "gemini-1.5-flash")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get("X-Request-ID"))
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

type sseEvent struct {
	name string
	data map[string]interface{}
}

func parseSSE(t *testing.T, body string) []sseEvent {
	t.Helper()
	var events []sseEvent
	var current sseEvent
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event:"):
			current.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			raw := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := json.Unmarshal([]byte(raw), &current.data); err != nil {
				t.Fatalf("bad event data %q: %v", raw, err)
			}
		case line == "" && current.name != "":
			events = append(events, current)
			current = sseEvent{}
		}
	}
	if current.name != "" {
		events = append(events, current)
	}
	require.NoError(t, scanner.Err())
	return events
}
