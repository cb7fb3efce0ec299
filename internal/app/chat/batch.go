package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch sends every conversation as an independent request, at most
// MaxConcurrency at a time. The result has one entry per input, in input
// order. Failed entries are nil and their errors are returned together,
// each prefixed with the index of its input.
func (m *ChatModel) Batch(ctx context.Context, inputs [][]Message, opts ...CallOption) ([]*Message, error) {
	return m.BatchNotify(ctx, inputs, nil, opts...)
}

// BatchNotify is Batch with a callback run as each input completes. done
// may be called concurrently and may be nil.
func (m *ChatModel) BatchNotify(ctx context.Context, inputs [][]Message, done func(index int, err error), opts ...CallOption) ([]*Message, error) {
	results := make([]*Message, len(inputs))
	if len(inputs) == 0 {
		return results, nil
	}
	start := time.Now()

	errs := make([]error, len(inputs))
	var g errgroup.Group
	g.SetLimit(m.cfg.MaxConcurrency)
	for i, messages := range inputs {
		g.Go(func() error {
			results[i], errs[i] = m.Invoke(ctx, messages, opts...)
			if done != nil {
				done(i, errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	var merr *multierror.Error
	failed := 0
	for i, err := range errs {
		if err != nil {
			failed++
			merr = multierror.Append(merr, &BatchItemError{Index: i, Err: err})
		}
	}
	m.logger.Debug("chat batch finished",
		zap.Int("size", len(inputs)),
		zap.Int("failed", failed),
		zap.Duration("latency", time.Since(start)))
	return results, merr.ErrorOrNil()
}

// BatchItemError is the failure of one Batch input.
type BatchItemError struct {
	Index int
	Err   error
}

func (e *BatchItemError) Error() string {
	return fmt.Sprintf("batch item %d: %v", e.Index, e.Err)
}

func (e *BatchItemError) Unwrap() error {
	return e.Err
}

// BatchItemErrors splits an error returned by Batch by input index.
func BatchItemErrors(err error) map[int]error {
	var merr *multierror.Error
	if !errors.As(err, &merr) {
		return nil
	}
	out := make(map[int]error, len(merr.Errors))
	for _, e := range merr.Errors {
		var item *BatchItemError
		if errors.As(e, &item) {
			out[item.Index] = item.Err
		}
	}
	return out
}
