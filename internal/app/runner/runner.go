// Package runner sends files of prompts through a chat model in one
// batch, with a progress bar.
package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"genai-chat/internal/app/chat"
)

// Result is the outcome of one prompt.
type Result struct {
	Index    int
	Prompt   string
	Response *chat.Message
	Err      error

	// Elapsed is the time from the start of the batch until this prompt
	// finished.
	Elapsed time.Duration
}

// Text returns the reply text, or "" for failed prompts.
func (r Result) Text() string {
	if r.Response == nil {
		return ""
	}
	return r.Response.Text()
}

type Runner struct {
	model    *chat.ChatModel
	progress ProgressConfig
	logger   *zap.Logger
}

func NewRunner(model *chat.ChatModel, progress ProgressConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{model: model, progress: progress, logger: logger}
}

// Run sends every prompt as its own conversation, prefixed by system when
// it is not empty. Failed prompts are reported in their Result; the
// returned error is the aggregated batch error.
func (r *Runner) Run(ctx context.Context, prompts []string, system string, opts ...chat.CallOption) ([]Result, error) {
	inputs := make([][]chat.Message, len(prompts))
	for i, p := range prompts {
		if system != "" {
			inputs[i] = []chat.Message{chat.SystemMessage(system), chat.HumanMessage(p)}
		} else {
			inputs[i] = chat.Prompt(p)
		}
	}

	bar := newProgress(r.progress, len(prompts), fmt.Sprintf("Prompting %s", r.model.Model()))

	start := time.Now()
	elapsed := make([]time.Duration, len(prompts))
	msgs, err := r.model.BatchNotify(ctx, inputs, func(i int, err error) {
		elapsed[i] = time.Since(start)
		bar.done(err)
		if err != nil {
			r.logger.Warn("prompt failed", zap.Int("index", i), zap.Error(err))
		}
	}, opts...)
	bar.finish()

	itemErrs := chat.BatchItemErrors(err)
	results := make([]Result, len(prompts))
	for i := range prompts {
		results[i] = Result{
			Index:    i,
			Prompt:   prompts[i],
			Response: msgs[i],
			Err:      itemErrs[i],
			Elapsed:  elapsed[i],
		}
	}
	return results, err
}

// ReadPrompts reads one prompt per line. Blank lines and lines starting
// with # are skipped.
func ReadPrompts(r io.Reader) ([]string, error) {
	var prompts []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	return prompts, nil
}
