package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemory_RecordSuccessAndFailure(t *testing.T) {
	m := NewInMemory()

	m.RecordSuccess("gemini-1.5-flash", "invoke", 100*time.Millisecond, 4, 10)
	m.RecordSuccess("gemini-1.5-flash", "stream", 200*time.Millisecond, 6, 20)
	m.RecordFailure("gemini-1.5-flash", "invoke", "rate_limited")

	stats := m.Model("gemini-1.5-flash")
	assert.Equal(t, int64(3), stats.TotalRequests)
	assert.Equal(t, int64(2), stats.SuccessfulRequests)
	assert.Equal(t, int64(1), stats.FailedRequests)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 1e-9)
	assert.InDelta(t, 120.0, stats.AverageLatencyMs, 1e-9)
	assert.Equal(t, int64(10), stats.PromptTokens)
	assert.Equal(t, int64(30), stats.CompletionTokens)
	assert.Equal(t, int64(2), stats.Operations["invoke"])
	assert.Equal(t, int64(1), stats.ErrorBreakdown["rate_limited"])
	assert.True(t, stats.IsHealthy)
}

func TestInMemory_UnhealthyAfterRepeatedFailures(t *testing.T) {
	m := NewInMemory()
	for i := 0; i < 10; i++ {
		m.RecordFailure("gemini-pro", "invoke", "unavailable")
	}
	assert.False(t, m.Model("gemini-pro").IsHealthy)
}

func TestInMemory_ModelReturnsCopy(t *testing.T) {
	m := NewInMemory()
	m.RecordFailure("gemini-pro", "invoke", "blocked")

	stats := m.Model("gemini-pro")
	stats.ErrorBreakdown["blocked"] = 99

	assert.Equal(t, int64(1), m.Model("gemini-pro").ErrorBreakdown["blocked"])
	assert.Equal(t, ModelStats{Model: "unknown"}, m.Model("unknown"))
}

func TestInMemory_Overall(t *testing.T) {
	m := NewInMemory()
	m.RecordSuccess("a", "invoke", 50*time.Millisecond, 0, 0)
	m.RecordSuccess("b", "invoke", 10*time.Millisecond, 0, 0)
	m.RecordFailure("b", "invoke", "unknown")

	overall := m.Overall()
	assert.Equal(t, 2, overall.TotalModels)
	assert.Equal(t, int64(3), overall.TotalRequests)
	assert.Equal(t, int64(2), overall.SuccessfulRequests)
	assert.Equal(t, "b", overall.FastestModel)
	assert.Equal(t, []string{"a", "b"}, m.Models())

	m.Reset()
	assert.Empty(t, m.Models())
}

func TestInMemory_Concurrent(t *testing.T) {
	m := NewInMemory()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordSuccess("gemini-2.0-flash", "batch", time.Millisecond, 1, 1)
			_ = m.Overall()
		}()
	}
	wg.Wait()
	assert.Equal(t, int64(50), m.Model("gemini-2.0-flash").TotalRequests)
}

func TestPrometheus(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	require.NoError(t, err)

	p.RecordSuccess("gemini-1.5-flash", "invoke", time.Second, 3, 7)
	p.RecordFailure("gemini-1.5-flash", "invoke", "rate_limited")

	assert.Equal(t, 1.0, testutil.ToFloat64(p.requests.WithLabelValues("gemini-1.5-flash", "invoke", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.failures.WithLabelValues("gemini-1.5-flash", "invoke", "rate_limited")))
	assert.Equal(t, 7.0, testutil.ToFloat64(p.tokens.WithLabelValues("gemini-1.5-flash", "completion")))

	_, err = NewPrometheus(reg)
	assert.Error(t, err, "registering twice must fail")
}

func TestMulti(t *testing.T) {
	a, b := NewInMemory(), NewInMemory()
	var r Recorder = Multi{a, b, Nop{}}
	r.RecordSuccess("m", "invoke", time.Millisecond, 0, 0)
	r.RecordFailure("m", "invoke", "blocked")

	assert.Equal(t, int64(2), a.Model("m").TotalRequests)
	assert.Equal(t, int64(2), b.Model("m").TotalRequests)
}
