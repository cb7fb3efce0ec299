package chat_test

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/metrics"
	"genai-chat/internal/app/testutil"
)

func newModel(t *testing.T, backend chat.Backend, cfg chat.Config, opts ...chat.Option) *chat.ChatModel {
	t.Helper()
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}
	m, err := chat.New(backend, cfg, opts...)
	require.NoError(t, err)
	return m
}

func TestInvoke_ReturnsBackendMessage(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).
		Return(&chat.Message{Role: chat.RoleAI, Content: "foo"}, nil).Once()

	recorder := metrics.NewInMemory()
	m := newModel(t, backend, chat.Config{}, chat.WithRecorder(recorder))

	msg, err := m.Invoke(context.Background(), chat.Prompt("This is a test. Say 'foo'"))
	require.NoError(t, err)
	assert.Equal(t, "foo", msg.Content)
	assert.Equal(t, "gemini-1.5-flash", msg.ResponseMetadata.Model)
	assert.Equal(t, int64(1), recorder.Model("gemini-1.5-flash").SuccessfulRequests)
	backend.AssertExpectations(t)
}

// sharedReplyBackend answers every Generate with the same message.
type sharedReplyBackend struct {
	*testutil.MockBackend
	reply *chat.Message
}

func (b sharedReplyBackend) Generate(context.Context, *chat.Request) (*chat.Message, error) {
	return b.reply, nil
}

func TestInvoke_LeavesBackendMessageUntouched(t *testing.T) {
	backend := sharedReplyBackend{MockBackend: testutil.NewMockBackend(), reply: &chat.Message{Role: chat.RoleAI, Content: "ok"}}
	m := newModel(t, backend, chat.Config{MaxConcurrency: 4})

	got, err := m.Batch(context.Background(), chat.Prompts("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, msg := range got {
		assert.NotSame(t, backend.reply, msg)
		assert.Equal(t, "gemini-1.5-flash", msg.ResponseMetadata.Model)
	}
	assert.Empty(t, backend.reply.ResponseMetadata.Model)
}

func TestInvoke_InvalidRequestNeverReachesBackend(t *testing.T) {
	backend := testutil.NewMockBackend()
	core, logs := observer.New(zapcore.WarnLevel)
	recorder := metrics.NewInMemory()
	m := newModel(t, backend, chat.Config{Model: "gemini-pro"},
		chat.WithLogger(zap.New(core)), chat.WithRecorder(recorder))

	_, err := m.Invoke(context.Background(), []chat.Message{
		chat.HumanParts(chat.TextPart("What is this?"), chat.ImagePart(testutil.TinyPNGDataURL)),
	})

	require.ErrorIs(t, err, chat.ErrInvalidRequest)
	assert.Empty(t, backend.Requests())
	assert.Equal(t, 1, logs.FilterMessage("chat request failed").Len())
	assert.Equal(t, int64(1), recorder.Model("gemini-pro").ErrorBreakdown["invalid_request"])
}

func TestInvoke_BackendErrorIsReturned(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).
		Return(nil, chat.FromHTTPStatus(429, "quota exceeded", "gemini-1.5-flash", nil))

	m := newModel(t, backend, chat.Config{})
	_, err := m.Invoke(context.Background(), chat.Prompt("hi"))

	assert.ErrorIs(t, err, chat.ErrRateLimited)
	assert.True(t, chat.IsRetryable(err))
}

func TestBind_DoesNotMutateReceiver(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI}, nil)

	base := newModel(t, backend, chat.Config{})
	search := chat.Tool{Name: "search", Description: "Search the web"}
	bound := base.BindTools([]chat.Tool{search}, chat.WithToolChoice("search"), chat.WithTemperature(0.1))

	assert.Empty(t, base.Defaults().Tools)
	assert.Nil(t, base.Defaults().ToolConfig)
	assert.Nil(t, base.Defaults().Temperature)

	_, err := base.Invoke(context.Background(), chat.Prompt("hi"))
	require.NoError(t, err)
	_, err = bound.Invoke(context.Background(), chat.Prompt("hi"))
	require.NoError(t, err)

	reqs := backend.Requests()
	require.Len(t, reqs, 2)
	assert.Empty(t, reqs[0].Options.Tools)
	assert.Len(t, reqs[1].Options.Tools, 1)
	assert.Equal(t, &chat.ToolConfig{Mode: chat.ToolModeAny, AllowedFunctionNames: []string{"search"}}, reqs[1].Options.ToolConfig)
	assert.Equal(t, float32(0.1), *reqs[1].Options.Temperature)
}

func TestWithTools_ReplacesSameName(t *testing.T) {
	m := newModel(t, testutil.NewMockBackend(), chat.Config{}).
		BindTools([]chat.Tool{{Name: "a", Description: "old"}, {Name: "b"}}).
		BindTools([]chat.Tool{{Name: "a", Description: "new"}})

	tools := m.Defaults().Tools
	require.Len(t, tools, 2)
	assert.Equal(t, "b", tools[0].Name)
	assert.Equal(t, "new", tools[1].Description)
}

func TestStream_RecvAndCollect(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Stream", mock.Anything, mock.Anything).Return(testutil.TextChunks("Hel", "lo", "!"))

	m := newModel(t, backend, chat.Config{})
	s, err := m.Stream(context.Background(), chat.Prompt("hi"))
	require.NoError(t, err)

	first, err := s.Recv()
	require.NoError(t, err)
	assert.Equal(t, "Hel", first.Content)

	rest, err := s.Collect()
	require.NoError(t, err)
	assert.Equal(t, "lo!", rest.Content)

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, s.Close())
}

func TestStream_ErrorIsTerminal(t *testing.T) {
	boom := chat.Unavailablef("gemini-1.5-flash", errors.New("connection reset"), "stream broke")
	backend := testutil.NewMockBackend()
	backend.On("Stream", mock.Anything, mock.Anything).
		Return(testutil.Chunks(boom, &chat.MessageChunk{Content: "partial"}))

	m := newModel(t, backend, chat.Config{})
	s, err := m.Stream(context.Background(), chat.Prompt("hi"))
	require.NoError(t, err)

	gathered, err := s.Collect()
	assert.ErrorIs(t, err, chat.ErrUnavailable)
	assert.Equal(t, "partial", gathered.Content)

	_, err = s.Recv()
	assert.ErrorIs(t, err, chat.ErrUnavailable)
}

func TestStream_CloseStopsBackend(t *testing.T) {
	var produced atomic.Int32
	seq := func(yield func(*chat.MessageChunk, error) bool) {
		for i := 0; i < 100; i++ {
			produced.Add(1)
			if !yield(&chat.MessageChunk{Content: "x"}, nil) {
				return
			}
		}
	}
	backend := testutil.NewMockBackend()
	backend.On("Stream", mock.Anything, mock.Anything).Return(iterSeq(seq))

	m := newModel(t, backend, chat.Config{})
	s, err := m.Stream(context.Background(), chat.Prompt("hi"))
	require.NoError(t, err)

	_, err = s.Recv()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, int32(1), produced.Load())
}

func TestStream_InvalidRequestReturnedUpFront(t *testing.T) {
	backend := testutil.NewMockBackend()
	m := newModel(t, backend, chat.Config{Model: "gemini-pro-vision"})

	_, err := m.Stream(context.Background(), []chat.Message{
		chat.HumanParts(chat.ImagePart(testutil.TinyPNGDataURL)),
		chat.AIMessage("a pixel"),
		chat.HumanMessage("what color?"),
	})
	assert.ErrorIs(t, err, chat.ErrInvalidRequest)
	assert.Empty(t, backend.Requests())
}

func TestStreamAsync(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Stream", mock.Anything, mock.Anything).Return(testutil.TextChunks("a", "b", "c"))

	m := newModel(t, backend, chat.Config{})
	var text string
	for ev := range m.StreamAsync(context.Background(), chat.Prompt("hi")) {
		require.NoError(t, ev.Err)
		text += ev.Chunk.Content
	}
	assert.Equal(t, "abc", text)
}

func TestStreamAsync_DeliversErrorEvent(t *testing.T) {
	m := newModel(t, testutil.NewMockBackend(), chat.Config{})

	var events []chat.StreamEvent
	for ev := range m.StreamAsync(context.Background(), nil) {
		events = append(events, ev)
	}
	require.Len(t, events, 1)
	assert.ErrorIs(t, events[0].Err, chat.ErrInvalidRequest)
}

func TestStreamAsync_CancelStopsDelivery(t *testing.T) {
	seq := func(yield func(*chat.MessageChunk, error) bool) {
		for {
			if !yield(&chat.MessageChunk{Content: "x"}, nil) {
				return
			}
		}
	}
	backend := testutil.NewMockBackend()
	backend.On("Stream", mock.Anything, mock.Anything).Return(iterSeq(seq))
	m := newModel(t, backend, chat.Config{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := m.StreamAsync(ctx, chat.Prompt("hi"))
	<-ch
	cancel()

	done := make(chan struct{})
	go func() {
		for range ch {
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream channel not closed after cancel")
	}
}

func TestInvokeAsync(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI, Content: "bar"}, nil)
	m := newModel(t, backend, chat.Config{})

	first := m.InvokeAsync(context.Background(), chat.Prompt("This is a test, say 'bar'"))
	second := m.InvokeAsync(context.Background(), chat.Prompt("again"))

	for _, ch := range []<-chan chat.Result{first, second} {
		res, ok := <-ch
		require.True(t, ok)
		require.NoError(t, res.Err)
		assert.Equal(t, "bar", res.Message.Content)
		_, ok = <-ch
		assert.False(t, ok, "channel closed after one result")
	}
}

func TestBatch_PreservesOrder(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(func(_ context.Context, req *chat.Request) *chat.Message {
		// reverse latency so completion order differs from input order
		text := req.Messages[0].Text()
		time.Sleep(time.Duration(10-len(text)) * time.Millisecond)
		return &chat.Message{Role: chat.RoleAI, Content: "re: " + text}
	}, nil)

	m := newModel(t, backend, chat.Config{MaxConcurrency: 3})
	prompts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	got, err := m.Batch(context.Background(), chat.Prompts(prompts...))
	require.NoError(t, err)
	require.Len(t, got, len(prompts))
	for i, p := range prompts {
		assert.Equal(t, "re: "+p, got[i].Content)
	}
}

func TestBatch_BoundedConcurrency(t *testing.T) {
	var inFlight, peak atomic.Int32
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(func(context.Context, *chat.Request) *chat.Message {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return &chat.Message{Role: chat.RoleAI}
	}, nil)

	m := newModel(t, backend, chat.Config{MaxConcurrency: 2})
	_, err := m.Batch(context.Background(), chat.Prompts("1", "2", "3", "4", "5", "6"))
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBatch_PartialFailure(t *testing.T) {
	backend := testutil.NewMockBackend()
	m := newModel(t, backend, chat.Config{})
	backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI, Content: "ok"}, nil)

	inputs := [][]chat.Message{chat.Prompt("fine"), nil, chat.Prompt("also fine")}
	got, err := m.Batch(context.Background(), inputs)

	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrInvalidRequest)
	assert.Contains(t, err.Error(), "batch item 1")
	itemErrs := chat.BatchItemErrors(err)
	require.Len(t, itemErrs, 1)
	assert.ErrorIs(t, itemErrs[1], chat.ErrInvalidRequest)
	require.Len(t, got, 3)
	assert.Equal(t, "ok", got[0].Content)
	assert.Nil(t, got[1])
	assert.Equal(t, "ok", got[2].Content)
}

func TestBatch_Empty(t *testing.T) {
	m := newModel(t, testutil.NewMockBackend(), chat.Config{})
	got, err := m.Batch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBatchAsync(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI, Content: "x"}, nil)
	m := newModel(t, backend, chat.Config{})

	res := <-m.BatchAsync(context.Background(), chat.Prompts(testutil.Prompts...))
	require.NoError(t, res.Err)
	assert.Len(t, res.Messages, len(testutil.Prompts))
}

func TestBatchNotify(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI, Content: "x"}, nil)
	m := newModel(t, backend, chat.Config{})

	var calls atomic.Int32
	var failed atomic.Int32
	_, err := m.BatchNotify(context.Background(), [][]chat.Message{chat.Prompt("a"), nil, chat.Prompt("b")},
		func(_ int, err error) {
			calls.Add(1)
			if err != nil {
				failed.Add(1)
			}
		})
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, int32(1), failed.Load())
}

func TestGetNumTokens(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("CountTokens", mock.Anything, mock.MatchedBy(func(req *chat.Request) bool {
		return len(req.Messages) == 1 && req.Messages[0].Text() == "How are you?"
	})).Return(4, nil)

	m := newModel(t, backend, chat.Config{Model: "gemini-pro"})
	n, err := m.GetNumTokens(context.Background(), "How are you?")
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	backend.AssertExpectations(t)
}

func iterSeq(f func(func(*chat.MessageChunk, error) bool)) iter.Seq2[*chat.MessageChunk, error] {
	return f
}
