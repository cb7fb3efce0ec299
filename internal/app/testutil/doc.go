// Package testutil provides test doubles for the chat client.
//
// FakeGemini (fake_gemini.go) is an httptest server implementing the
// Gemini REST calls the genai SDK makes: generateContent,
// streamGenerateContent over SSE and countTokens. Replies are
// deterministic so tests can compare streamed and blocking output, force
// tool calls and count tokens:
//
//	fake := testutil.NewFakeGemini(t)
//	fake.SetFunctionArgs("search", map[string]any{"query": "weather"})
//	backend, _ := genaibackend.New(ctx, genaibackend.Config{APIKey: "k", BaseURL: fake.URL()}, nil)
//
// FakeOpenAI (fake_openai.go) serves the OpenAI-compatible chat completions
// endpoint with the same reply rules.
//
// MockBackend (mock_backend.go) is a testify mock of chat.Backend for tests
// that script replies directly.
//
// Fixtures (fixtures.go) hold a tiny PNG image and sample prompts.
package testutil
