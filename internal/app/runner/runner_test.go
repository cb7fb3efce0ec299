package runner_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"

	"genai-chat/internal/app/chat"
	"genai-chat/internal/app/runner"
	"genai-chat/internal/app/runner/export"
	"genai-chat/internal/app/testutil"
)

func echoModel(t *testing.T) (*chat.ChatModel, *testutil.MockBackend) {
	t.Helper()
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.Anything).Return(func(_ context.Context, r *chat.Request) *chat.Message {
		last := r.Messages[len(r.Messages)-1].Text()
		return &chat.Message{
			Role:    chat.RoleAI,
			Content: "Echo: " + last,
			ResponseMetadata: chat.ResponseMetadata{
				FinishReason: "STOP",
				Usage:        &chat.Usage{PromptTokens: testutil.CountTokens(last), CompletionTokens: 2, TotalTokens: testutil.CountTokens(last) + 2},
			},
		}
	}, nil)
	m, err := chat.New(backend, chat.Config{Model: "gemini-1.5-flash", MaxConcurrency: 2})
	require.NoError(t, err)
	return m, backend
}

func TestReadPrompts(t *testing.T) {
	prompts, err := runner.ReadPrompts(strings.NewReader("How much is 2+2?\n\n# comment\n  How much is 3+3?  \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"How much is 2+2?", "How much is 3+3?"}, prompts)
}

func TestRunner_Run(t *testing.T) {
	m, backend := echoModel(t)
	var progress bytes.Buffer
	r := runner.NewRunner(m, runner.ProgressConfig{Enabled: true, Writer: &progress}, nil)

	results, err := r.Run(context.Background(), testutil.Prompts, "Answer briefly.")
	require.NoError(t, err)
	require.Len(t, results, len(testutil.Prompts))
	for i, res := range results {
		assert.Equal(t, i, res.Index)
		assert.Equal(t, testutil.Prompts[i], res.Prompt)
		assert.Equal(t, "Echo: "+testutil.Prompts[i], res.Text())
		assert.NoError(t, res.Err)
	}

	for _, req := range backend.Requests() {
		assert.Equal(t, "Answer briefly.", req.System)
	}
	assert.NotEmpty(t, progress.String())
}

func TestRunner_RunReportsFailures(t *testing.T) {
	backend := testutil.NewMockBackend()
	backend.On("Generate", mock.Anything, mock.MatchedBy(func(r *chat.Request) bool {
		return r.Messages[0].Text() == "bad"
	})).Return(nil, chat.FromHTTPStatus(500, "boom", "gemini-1.5-flash", nil))
	backend.On("Generate", mock.Anything, mock.Anything).Return(&chat.Message{Role: chat.RoleAI, Content: "fine"}, nil)
	m, err := chat.New(backend, chat.Config{Model: "gemini-1.5-flash"})
	require.NoError(t, err)

	results, err := runner.NewRunner(m, runner.ProgressConfig{}, nil).Run(context.Background(), []string{"good", "bad"}, "")
	require.Error(t, err)
	assert.Equal(t, "fine", results[0].Text())
	assert.Empty(t, results[1].Text())
	assert.ErrorIs(t, results[1].Err, chat.ErrUnavailable)
}

func TestToExcel(t *testing.T) {
	m, _ := echoModel(t)
	results, err := runner.NewRunner(m, runner.ProgressConfig{}, nil).Run(context.Background(), []string{"How are you?"}, "")
	require.NoError(t, err)
	results = append(results, runner.Result{Index: 1, Prompt: "failed one", Err: chat.ErrRateLimited})

	path := filepath.Join(t.TempDir(), "results.xlsx")
	require.NoError(t, export.ToExcel(results, path))

	file, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet := file.Sheets[0]
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Prompt", sheet.Rows[0].Cells[1].Value)
	assert.Equal(t, "How are you?", sheet.Rows[1].Cells[1].Value)
	assert.Equal(t, "Echo: How are you?", sheet.Rows[1].Cells[2].Value)
	assert.Equal(t, "STOP", sheet.Rows[1].Cells[3].Value)
	assert.Equal(t, "4", sheet.Rows[1].Cells[4].Value)
	assert.Contains(t, sheet.Rows[2].Cells[7].Value, "rate limited")
}

func TestShouldShowProgress(t *testing.T) {
	assert.True(t, runner.ShouldShowProgress(true))
	assert.False(t, runner.IsTTY(&bytes.Buffer{}))
}

func TestRunner_ProgressRendersWithoutTerminal(t *testing.T) {
	m, _ := echoModel(t)
	var out bytes.Buffer
	r := runner.NewRunner(m, runner.ProgressConfig{Enabled: true, Writer: &out}, nil)

	_, err := r.Run(context.Background(), []string{"How are you?"}, "")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Prompting gemini-1.5-flash")
}
