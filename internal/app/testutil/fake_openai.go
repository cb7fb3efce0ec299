package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type OpenAIRequest struct {
	Model       string          `json:"model"`
	Messages    []OpenAIMessage `json:"messages"`
	Tools       []OpenAITool    `json:"tools,omitempty"`
	ToolChoice  json.RawMessage `json:"tool_choice,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
}

type OpenAIMessage struct {
	Role       string           `json:"role"`
	Content    json.RawMessage  `json:"content,omitempty"`
	Name       string           `json:"name,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	ToolCalls  []OpenAIToolCall `json:"tool_calls,omitempty"`
}

// Text returns the message text whether content is a string or an array
// of parts.
func (m OpenAIMessage) Text() string {
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var parts []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	_ = json.Unmarshal(m.Content, &parts)
	texts := make([]string, 0, len(parts))
	for _, p := range parts {
		if p.Type == "text" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

type OpenAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string         `json:"name"`
		Description string         `json:"description,omitempty"`
		Parameters  map[string]any `json:"parameters,omitempty"`
	} `json:"function"`
}

type OpenAIToolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

// FakeOpenAI serves /chat/completions with the reply rules of FakeGemini:
// echo the last user text, report tool results, and call a tool when it is
// forced or has FunctionArgs configured.
type FakeOpenAI struct {
	Server *httptest.Server

	mu           sync.Mutex
	requests     []OpenAIRequest
	reply        string
	status       int
	functionArgs map[string]map[string]any
}

func NewFakeOpenAI(t testing.TB) *FakeOpenAI {
	t.Helper()
	f := &FakeOpenAI{functionArgs: map[string]map[string]any{}}
	f.Server = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.Server.Close)
	return f
}

func (f *FakeOpenAI) URL() string { return f.Server.URL }

func (f *FakeOpenAI) SetReply(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reply = text
}

func (f *FakeOpenAI) FailWith(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
}

func (f *FakeOpenAI) SetFunctionArgs(name string, args map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.functionArgs[name] = args
}

func (f *FakeOpenAI) Requests() []OpenAIRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OpenAIRequest(nil), f.requests...)
}

func (f *FakeOpenAI) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
		http.NotFound(w, r)
		return
	}
	var body OpenAIRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, err.Error())
		return
	}

	f.mu.Lock()
	f.requests = append(f.requests, body)
	status, reply := f.status, f.reply
	functionArgs := make(map[string]map[string]any, len(f.functionArgs))
	for k, v := range f.functionArgs {
		functionArgs[k] = v
	}
	f.mu.Unlock()

	if status != 0 {
		writeOpenAIError(w, status, http.StatusText(status))
		return
	}

	text, call := openAIReply(body, reply, functionArgs)
	if body.Stream {
		f.stream(w, body, text, call)
		return
	}

	message := map[string]any{"role": "assistant", "content": text}
	finish := "stop"
	if call != nil {
		message["tool_calls"] = []any{call}
		finish = "tool_calls"
	}
	writeJSON(w, map[string]any{
		"id":      "chatcmpl-fake",
		"object":  "chat.completion",
		"model":   body.Model,
		"choices": []any{map[string]any{"index": 0, "message": message, "finish_reason": finish}},
		"usage":   openAIUsage(body, text),
	})
}

func (f *FakeOpenAI) stream(w http.ResponseWriter, body OpenAIRequest, text string, call map[string]any) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)

	var events []map[string]any
	delta := func(d map[string]any, finish any) map[string]any {
		return map[string]any{
			"id":      "chatcmpl-fake",
			"object":  "chat.completion.chunk",
			"model":   body.Model,
			"choices": []any{map[string]any{"index": 0, "delta": d, "finish_reason": finish}},
		}
	}
	if call != nil {
		fn := call["function"].(map[string]any)
		args := fn["arguments"].(string)
		half := len(args) / 2
		events = append(events,
			delta(map[string]any{"tool_calls": []any{map[string]any{
				"index": 0, "id": call["id"], "type": "function",
				"function": map[string]any{"name": fn["name"], "arguments": args[:half]},
			}}}, nil),
			delta(map[string]any{"tool_calls": []any{map[string]any{
				"index": 0, "function": map[string]any{"arguments": args[half:]},
			}}}, "tool_calls"),
		)
	} else {
		for _, piece := range splitText(text, 3) {
			events = append(events, delta(map[string]any{"role": "assistant", "content": piece}, nil))
		}
		events = append(events, delta(map[string]any{}, "stop"))
	}
	events = append(events, map[string]any{
		"id":      "chatcmpl-fake",
		"object":  "chat.completion.chunk",
		"model":   body.Model,
		"choices": []any{},
		"usage":   openAIUsage(body, text),
	})

	flusher, _ := w.(http.Flusher)
	for _, ev := range events {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "data: %s\n\n", data)
		if flusher != nil {
			flusher.Flush()
		}
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
}

func openAIReply(body OpenAIRequest, reply string, functionArgs map[string]map[string]any) (string, map[string]any) {
	var last *OpenAIMessage
	if n := len(body.Messages); n > 0 {
		last = &body.Messages[n-1]
	}
	answeringTool := last != nil && last.Role == "tool"

	if name := openAIPickTool(body, functionArgs, answeringTool); name != "" {
		args := functionArgs[name]
		if args == nil {
			args = map[string]any{}
		}
		raw, _ := json.Marshal(args)
		return "", map[string]any{
			"id":       "call_" + name,
			"type":     "function",
			"function": map[string]any{"name": name, "arguments": string(raw)},
		}
	}
	if answeringTool {
		return "Tool result: " + last.Text(), nil
	}
	if reply != "" {
		return reply, nil
	}
	for i := len(body.Messages) - 1; i >= 0; i-- {
		if body.Messages[i].Role == "user" {
			return "Echo: " + body.Messages[i].Text(), nil
		}
	}
	return "Echo: ", nil
}

func openAIPickTool(body OpenAIRequest, functionArgs map[string]map[string]any, answeringTool bool) string {
	if len(body.Tools) == 0 {
		return ""
	}
	var choice string
	if err := json.Unmarshal(body.ToolChoice, &choice); err != nil && len(body.ToolChoice) > 0 {
		var forced struct {
			Function struct {
				Name string `json:"name"`
			} `json:"function"`
		}
		if err := json.Unmarshal(body.ToolChoice, &forced); err == nil && forced.Function.Name != "" {
			return forced.Function.Name
		}
	}
	switch choice {
	case "none":
		return ""
	case "required":
		return body.Tools[0].Function.Name
	}
	if answeringTool {
		return ""
	}
	for _, t := range body.Tools {
		if _, ok := functionArgs[t.Function.Name]; ok {
			return t.Function.Name
		}
	}
	return ""
}

func openAIUsage(body OpenAIRequest, completion string) map[string]any {
	prompt := 0
	for _, m := range body.Messages {
		prompt += CountTokens(m.Text())
	}
	c := CountTokens(completion)
	return map[string]any{
		"prompt_tokens":     prompt,
		"completion_tokens": c,
		"total_tokens":      prompt + c,
	}
}

func writeOpenAIError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": message,
			"type":    "invalid_request_error",
			"code":    status,
		},
	})
}
