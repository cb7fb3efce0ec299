package chat

import (
	"context"
	"io"
)

// Result is the outcome of InvokeAsync.
type Result struct {
	Message *Message
	Err     error
}

// StreamEvent carries either a chunk or the error that ended a stream.
type StreamEvent struct {
	Chunk *MessageChunk
	Err   error
}

// BatchResult is the outcome of BatchAsync.
type BatchResult struct {
	Messages []*Message
	Err      error
}

// InvokeAsync runs Invoke on a new goroutine. The channel yields exactly one
// Result and is then closed.
func (m *ChatModel) InvokeAsync(ctx context.Context, messages []Message, opts ...CallOption) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		defer close(ch)
		msg, err := m.Invoke(ctx, messages, opts...)
		ch <- Result{Message: msg, Err: err}
	}()
	return ch
}

// StreamAsync runs Stream on a new goroutine and delivers every chunk on the
// returned channel. A failure is delivered as a final event with Err set.
// The channel is closed when the stream ends or ctx is cancelled.
func (m *ChatModel) StreamAsync(ctx context.Context, messages []Message, opts ...CallOption) <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		s, err := m.Stream(ctx, messages, opts...)
		if err != nil {
			send(ctx, ch, StreamEvent{Err: err})
			return
		}
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if err == io.EOF {
				return
			}
			if err != nil {
				send(ctx, ch, StreamEvent{Err: err})
				return
			}
			if !send(ctx, ch, StreamEvent{Chunk: chunk}) {
				return
			}
		}
	}()
	return ch
}

// BatchAsync runs Batch on a new goroutine. The channel yields exactly one
// BatchResult and is then closed.
func (m *ChatModel) BatchAsync(ctx context.Context, inputs [][]Message, opts ...CallOption) <-chan BatchResult {
	ch := make(chan BatchResult, 1)
	go func() {
		defer close(ch)
		msgs, err := m.Batch(ctx, inputs, opts...)
		ch <- BatchResult{Messages: msgs, Err: err}
	}()
	return ch
}

func send[T any](ctx context.Context, ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	case <-ctx.Done():
		return false
	}
}
