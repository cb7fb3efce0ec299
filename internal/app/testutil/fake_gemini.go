package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
)

// Wire shapes of the Gemini REST API, limited to what the fake inspects.

type GeminiRequest struct {
	Contents          []GeminiContent         `json:"contents"`
	SystemInstruction *GeminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *GeminiGenerationConfig `json:"generationConfig,omitempty"`
	SafetySettings    []GeminiSafetySetting   `json:"safetySettings,omitempty"`
	Tools             []GeminiTool            `json:"tools,omitempty"`
	ToolConfig        *GeminiToolConfig       `json:"toolConfig,omitempty"`
}

type GeminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []GeminiPart `json:"parts"`
}

type GeminiPart struct {
	Text             string                  `json:"text,omitempty"`
	InlineData       *GeminiBlob             `json:"inlineData,omitempty"`
	FileData         *GeminiFileData         `json:"fileData,omitempty"`
	FunctionCall     *GeminiFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *GeminiFunctionResponse `json:"functionResponse,omitempty"`
}

type GeminiBlob struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type GeminiFileData struct {
	MIMEType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri"`
}

type GeminiFunctionCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

type GeminiFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type GeminiGenerationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"topP,omitempty"`
	TopK            *float64 `json:"topK,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
	StopSequences   []string `json:"stopSequences,omitempty"`
}

type GeminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type GeminiTool struct {
	FunctionDeclarations []GeminiFunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type GeminiFunctionDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type GeminiToolConfig struct {
	FunctionCallingConfig *struct {
		Mode                 string   `json:"mode,omitempty"`
		AllowedFunctionNames []string `json:"allowedFunctionNames,omitempty"`
	} `json:"functionCallingConfig,omitempty"`
}

// RecordedRequest is one call received by FakeGemini.
type RecordedRequest struct {
	Method string
	Model  string
	Path   string
	APIKey string
	Body   GeminiRequest
}

// FakeGemini is an httptest server speaking the subset of the Gemini REST
// API used by the genai SDK: generateContent, streamGenerateContent (SSE)
// and countTokens.
//
// Replies are deterministic. Without Reply set, the model echoes the last
// user text as "Echo: <text>". A turn answering a function call gets
// "Tool result: <json>". When the request forces a tool (mode ANY) or a
// declared tool has an entry in FunctionArgs, the reply is a function call.
type FakeGemini struct {
	Server *httptest.Server

	mu            sync.Mutex
	requests      []RecordedRequest
	reply         string
	status        int
	statusMessage string
	blockPrompt   bool
	functionArgs  map[string]map[string]any
	streamPieces  int
}

// NewFakeGemini starts a fake server that is closed with the test.
func NewFakeGemini(t testing.TB) *FakeGemini {
	t.Helper()
	f := &FakeGemini{
		functionArgs: map[string]map[string]any{},
		streamPieces: 3,
	}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the base URL to configure the SDK with.
func (f *FakeGemini) URL() string { return f.Server.URL }

// SetReply fixes the text of every reply.
func (f *FakeGemini) SetReply(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = text
}

// FailWith makes every request fail with an API error of the given HTTP
// status. Status 0 restores normal replies.
func (f *FakeGemini) FailWith(status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status, f.statusMessage = status, message
}

// BlockPrompts makes generate calls report the prompt as blocked.
func (f *FakeGemini) BlockPrompts(block bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockPrompt = block
}

// SetFunctionArgs makes the model call tool name with args whenever the
// tool is declared.
func (f *FakeGemini) SetFunctionArgs(name string, args map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.functionArgs[name] = args
}

// SetStreamPieces sets how many SSE events a streamed text reply is split
// into.
func (f *FakeGemini) SetStreamPieces(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n > 0 {
		f.streamPieces = n
	}
}

// Requests returns the calls received so far.
func (f *FakeGemini) Requests() []RecordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]RecordedRequest(nil), f.requests...)
}

// LastRequest returns the most recent call. It fails the test when none
// was received.
func (f *FakeGemini) LastRequest(t testing.TB) RecordedRequest {
	t.Helper()
	reqs := f.Requests()
	if len(reqs) == 0 {
		t.Fatal("fake gemini received no requests")
	}
	return reqs[len(reqs)-1]
}

var tokenPattern = regexp.MustCompile(`\w+|[^\w\s]`)

// CountTokens is the fake tokenizer: words and punctuation marks each
// count as one token, so "How are you?" is 4 tokens.
func CountTokens(text string) int {
	return len(tokenPattern.FindAllString(text, -1))
}

func (f *FakeGemini) handle(w http.ResponseWriter, r *http.Request) {
	// /v1beta/models/gemini-pro:generateContent
	_, resource, ok := strings.Cut(r.URL.Path, "/models/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	model, method, ok := strings.Cut(resource, ":")
	if !ok {
		http.NotFound(w, r)
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	var body GeminiRequest
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			writeAPIError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
			return
		}
	}

	f.mu.Lock()
	f.requests = append(f.requests, RecordedRequest{
		Method: method,
		Model:  model,
		Path:   r.URL.Path,
		APIKey: apiKey(r),
		Body:   body,
	})
	status, statusMessage := f.status, f.statusMessage
	f.mu.Unlock()

	if status != 0 {
		writeAPIError(w, status, statusMessage)
		return
	}

	switch method {
	case "generateContent":
		writeJSON(w, f.generate(model, body))
	case "streamGenerateContent":
		f.stream(w, model, body)
	case "countTokens":
		writeJSON(w, map[string]any{"totalTokens": countContents(body.Contents)})
	default:
		writeAPIError(w, http.StatusNotFound, fmt.Sprintf("method %s not found", method))
	}
}

func (f *FakeGemini) generate(model string, body GeminiRequest) map[string]any {
	f.mu.Lock()
	blocked := f.blockPrompt
	f.mu.Unlock()
	if blocked {
		return map[string]any{
			"promptFeedback": map[string]any{"blockReason": "SAFETY"},
			"modelVersion":   model,
		}
	}

	parts := f.replyParts(body)
	return map[string]any{
		"candidates": []any{map[string]any{
			"content":      map[string]any{"role": "model", "parts": parts},
			"finishReason": "STOP",
			"safetyRatings": []any{map[string]any{
				"category":    "HARM_CATEGORY_DANGEROUS_CONTENT",
				"probability": "NEGLIGIBLE",
			}},
		}},
		"usageMetadata": usage(body, parts),
		"modelVersion":  model,
	}
}

func (f *FakeGemini) stream(w http.ResponseWriter, model string, body GeminiRequest) {
	parts := f.replyParts(body)

	f.mu.Lock()
	pieces := f.streamPieces
	f.mu.Unlock()

	var events []map[string]any
	for _, p := range parts {
		text, isText := p["text"].(string)
		if !isText {
			events = append(events, candidateEvent([]map[string]any{p}))
			continue
		}
		for _, piece := range splitText(text, pieces) {
			events = append(events, candidateEvent([]map[string]any{{"text": piece}}))
		}
	}
	if len(events) == 0 {
		events = append(events, candidateEvent(nil))
	}
	last := events[len(events)-1]
	last["candidates"].([]any)[0].(map[string]any)["finishReason"] = "STOP"
	last["usageMetadata"] = usage(body, parts)
	last["modelVersion"] = model

	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

func candidateEvent(parts []map[string]any) map[string]any {
	content := map[string]any{"role": "model"}
	if parts != nil {
		content["parts"] = parts
	}
	return map[string]any{
		"candidates": []any{map[string]any{"content": content}},
	}
}

// replyParts decides the model turn for a request.
func (f *FakeGemini) replyParts(body GeminiRequest) []map[string]any {
	f.mu.Lock()
	reply := f.reply
	functionArgs := make(map[string]map[string]any, len(f.functionArgs))
	for k, v := range f.functionArgs {
		functionArgs[k] = v
	}
	f.mu.Unlock()

	last := lastUserContent(body.Contents)
	answeringTool := last != nil && len(last.Parts) > 0 && last.Parts[0].FunctionResponse != nil

	if name := f.pickTool(body, functionArgs, answeringTool); name != "" {
		args := functionArgs[name]
		if args == nil {
			args = map[string]any{}
		}
		return []map[string]any{{"functionCall": map[string]any{"name": name, "args": args}}}
	}

	if answeringTool {
		responses := make([]any, 0, len(last.Parts))
		for _, p := range last.Parts {
			if p.FunctionResponse != nil {
				responses = append(responses, p.FunctionResponse.Response)
			}
		}
		var payload any = responses
		if len(responses) == 1 {
			payload = responses[0]
		}
		data, _ := json.Marshal(payload)
		return []map[string]any{{"text": "Tool result: " + string(data)}}
	}

	if reply != "" {
		return []map[string]any{{"text": reply}}
	}
	return []map[string]any{{"text": "Echo: " + userText(last)}}
}

func (f *FakeGemini) pickTool(body GeminiRequest, functionArgs map[string]map[string]any, answeringTool bool) string {
	var declared []string
	for _, t := range body.Tools {
		for _, d := range t.FunctionDeclarations {
			declared = append(declared, d.Name)
		}
	}
	if len(declared) == 0 {
		return ""
	}

	mode, allowed := "AUTO", []string(nil)
	if tc := body.ToolConfig; tc != nil && tc.FunctionCallingConfig != nil {
		if tc.FunctionCallingConfig.Mode != "" {
			mode = tc.FunctionCallingConfig.Mode
		}
		allowed = tc.FunctionCallingConfig.AllowedFunctionNames
	}

	switch mode {
	case "NONE":
		return ""
	case "ANY":
		if len(allowed) > 0 {
			return allowed[0]
		}
		return declared[0]
	}
	if answeringTool {
		return ""
	}
	for _, name := range declared {
		if _, ok := functionArgs[name]; ok {
			return name
		}
	}
	return ""
}

func lastUserContent(contents []GeminiContent) *GeminiContent {
	for i := len(contents) - 1; i >= 0; i-- {
		if contents[i].Role == "user" || contents[i].Role == "" {
			return &contents[i]
		}
	}
	return nil
}

func userText(c *GeminiContent) string {
	if c == nil {
		return ""
	}
	texts := make([]string, 0, len(c.Parts))
	for _, p := range c.Parts {
		if p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

func countContents(contents []GeminiContent) int {
	n := 0
	for _, c := range contents {
		for _, p := range c.Parts {
			n += CountTokens(p.Text)
		}
	}
	return n
}

func usage(body GeminiRequest, parts []map[string]any) map[string]any {
	prompt := countContents(body.Contents)
	if body.SystemInstruction != nil {
		prompt += countContents([]GeminiContent{*body.SystemInstruction})
	}
	completion := 0
	for _, p := range parts {
		if text, ok := p["text"].(string); ok {
			completion += CountTokens(text)
		}
	}
	return map[string]any{
		"promptTokenCount":     prompt,
		"candidatesTokenCount": completion,
		"totalTokenCount":      prompt + completion,
	}
}

// splitText cuts text into at most n pieces on rune boundaries. The pieces
// concatenate back to text.
func splitText(text string, n int) []string {
	runes := []rune(text)
	if n <= 1 || len(runes) <= 1 {
		return []string{text}
	}
	if n > len(runes) {
		n = len(runes)
	}
	size := (len(runes) + n - 1) / n
	var out []string
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

func apiKey(r *http.Request) string {
	if key := r.Header.Get("x-goog-api-key"); key != "" {
		return key
	}
	return r.URL.Query().Get("key")
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    status,
			"message": message,
			"status":  statusName(status),
		},
	})
}

func statusName(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "INVALID_ARGUMENT"
	case http.StatusUnauthorized:
		return "UNAUTHENTICATED"
	case http.StatusForbidden:
		return "PERMISSION_DENIED"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusTooManyRequests:
		return "RESOURCE_EXHAUSTED"
	case http.StatusServiceUnavailable:
		return "UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
