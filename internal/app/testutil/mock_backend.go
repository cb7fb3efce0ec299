package testutil

import (
	"context"
	"iter"
	"sync"

	"github.com/stretchr/testify/mock"

	"genai-chat/internal/app/chat"
)

// MockBackend is a testify mock of chat.Backend. Expectations are set with
// On("Generate", ...), On("Stream", ...) and On("CountTokens", ...).
// Generate may also return a func(context.Context, *chat.Request)
// *chat.Message to compute the reply per request. A fixed *chat.Message is
// copied per call. Every received request is kept for inspection.
type MockBackend struct {
	mock.Mock

	mu       sync.Mutex
	requests []*chat.Request
}

func NewMockBackend() *MockBackend {
	return &MockBackend{}
}

func (m *MockBackend) Name() string { return "mock" }

func (m *MockBackend) Generate(ctx context.Context, req *chat.Request) (*chat.Message, error) {
	m.record(req)
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, *chat.Request) *chat.Message); ok {
		return fn(ctx, req), args.Error(1)
	}
	msg, _ := args.Get(0).(*chat.Message)
	if msg != nil {
		// One Return value serves every call; hand each caller its own copy.
		fresh := *msg
		msg = &fresh
	}
	return msg, args.Error(1)
}

func (m *MockBackend) Stream(ctx context.Context, req *chat.Request) iter.Seq2[*chat.MessageChunk, error] {
	m.record(req)
	args := m.Called(ctx, req)
	return args.Get(0).(iter.Seq2[*chat.MessageChunk, error])
}

func (m *MockBackend) CountTokens(ctx context.Context, req *chat.Request) (int, error) {
	m.record(req)
	args := m.Called(ctx, req)
	return args.Int(0), args.Error(1)
}

// Requests returns the requests received so far.
func (m *MockBackend) Requests() []*chat.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*chat.Request(nil), m.requests...)
}

func (m *MockBackend) record(req *chat.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
}

// Chunks returns a sequence yielding chunks in order, then err if non-nil.
func Chunks(err error, chunks ...*chat.MessageChunk) iter.Seq2[*chat.MessageChunk, error] {
	return func(yield func(*chat.MessageChunk, error) bool) {
		for _, c := range chunks {
			if !yield(c, nil) {
				return
			}
		}
		if err != nil {
			yield(nil, err)
		}
	}
}

// TextChunks returns a sequence of text-only chunks.
func TextChunks(texts ...string) iter.Seq2[*chat.MessageChunk, error] {
	chunks := make([]*chat.MessageChunk, len(texts))
	for i, t := range texts {
		chunks[i] = &chat.MessageChunk{Content: t}
	}
	return Chunks(nil, chunks...)
}
