package chat

import (
	"context"
	"io"
	"iter"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Stream is a finite sequence of message chunks. It cannot be restarted.
// A Stream is not safe for concurrent Recv calls.
type Stream struct {
	next func() (*MessageChunk, error, bool)
	stop func()

	done     bool
	err      error
	closeOne sync.Once
	finish   func(err error, usage *Usage)
	usage    *Usage
}

func newStream(seq iter.Seq2[*MessageChunk, error], finish func(error, *Usage)) *Stream {
	next, stop := iter.Pull2(seq)
	return &Stream{next: next, stop: stop, finish: finish}
}

// Recv returns the next chunk, or io.EOF after the last one.
func (s *Stream) Recv() (*MessageChunk, error) {
	if s.done {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	chunk, err, ok := s.next()
	switch {
	case !ok:
		s.end(nil)
		return nil, io.EOF
	case err != nil:
		s.end(err)
		return nil, err
	}
	if chunk == nil {
		chunk = &MessageChunk{}
	}
	if u := chunk.ResponseMetadata.Usage; u != nil {
		copied := *u
		s.usage = &copied
	}
	return chunk, nil
}

// Close abandons the stream. Remaining chunks are discarded. It is safe to
// call Close more than once and after Recv returned io.EOF.
func (s *Stream) Close() error {
	if !s.done {
		s.end(nil)
	}
	return nil
}

// Collect gathers every remaining chunk into one. The chunks received
// before an error are returned along with it.
func (s *Stream) Collect() (*MessageChunk, error) {
	var gathered *MessageChunk
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			if gathered == nil {
				gathered = &MessageChunk{}
			}
			return gathered, nil
		}
		if err != nil {
			return gathered, err
		}
		gathered = gathered.Add(chunk)
	}
}

func (s *Stream) end(err error) {
	s.done = true
	s.err = err
	s.closeOne.Do(func() {
		s.stop()
		if s.finish != nil {
			s.finish(err, s.usage)
		}
	})
}

// Stream sends one conversation and returns its reply as chunks. Request
// shape errors are returned before anything is sent.
func (m *ChatModel) Stream(ctx context.Context, messages []Message, opts ...CallOption) (*Stream, error) {
	start := time.Now()
	req, err := m.prepare(ctx, messages, opts)
	if err != nil {
		m.fail("stream", start, err)
		return nil, err
	}
	m.logger.Debug("chat request",
		zap.String("op", "stream"),
		zap.Int("messages", len(req.Messages)),
		zap.Int("tools", len(req.Options.Tools)),
		zap.Strings("tags", req.Options.Tags))

	return newStream(m.backend.Stream(ctx, req), func(err error, usage *Usage) {
		if err != nil {
			m.fail("stream", start, err)
			return
		}
		m.succeed("stream", start, usage)
	}), nil
}
