package metrics

import (
	"sort"
	"sync"
	"time"
)

// ModelStats aggregates observations for one model.
type ModelStats struct {
	Model              string           `json:"model"`
	TotalRequests      int64            `json:"total_requests"`
	SuccessfulRequests int64            `json:"successful_requests"`
	FailedRequests     int64            `json:"failed_requests"`
	SuccessRate        float64          `json:"success_rate"`
	AverageLatencyMs   float64          `json:"average_latency_ms"`
	PromptTokens       int64            `json:"prompt_tokens"`
	CompletionTokens   int64            `json:"completion_tokens"`
	Operations         map[string]int64 `json:"operations"`
	ErrorBreakdown     map[string]int64 `json:"error_breakdown"`
	LastUsed           int64            `json:"last_used"`
	IsHealthy          bool             `json:"is_healthy"`
}

// OverallStats summarizes every model seen so far.
type OverallStats struct {
	TotalModels        int                   `json:"total_models"`
	TotalRequests      int64                 `json:"total_requests"`
	SuccessfulRequests int64                 `json:"successful_requests"`
	OverallSuccessRate float64               `json:"overall_success_rate"`
	FastestModel       string                `json:"fastest_model,omitempty"`
	Models             map[string]ModelStats `json:"models"`
}

// InMemory keeps per-model statistics in process memory.
type InMemory struct {
	mu    sync.RWMutex
	stats map[string]*ModelStats
	now   func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		stats: make(map[string]*ModelStats),
		now:   time.Now,
	}
}

func (m *InMemory) RecordSuccess(model, operation string, latency time.Duration, promptTokens, completionTokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(model)
	stats.TotalRequests++
	stats.SuccessfulRequests++
	stats.Operations[operation]++
	stats.PromptTokens += int64(promptTokens)
	stats.CompletionTokens += int64(completionTokens)
	stats.LastUsed = m.now().Unix()
	stats.IsHealthy = true

	ms := float64(latency.Milliseconds())
	if stats.AverageLatencyMs == 0 {
		stats.AverageLatencyMs = ms
	} else {
		// weighted toward recent calls
		stats.AverageLatencyMs = stats.AverageLatencyMs*0.8 + ms*0.2
	}
	stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)
}

func (m *InMemory) RecordFailure(model, operation, errorKind string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := m.getOrCreate(model)
	stats.TotalRequests++
	stats.FailedRequests++
	stats.Operations[operation]++
	stats.ErrorBreakdown[errorKind]++
	stats.LastUsed = m.now().Unix()
	stats.SuccessRate = float64(stats.SuccessfulRequests) / float64(stats.TotalRequests)

	if stats.TotalRequests >= 10 && stats.SuccessRate < 0.5 {
		stats.IsHealthy = false
	}
}

// Model returns a copy of the statistics for model. The zero value is
// returned for a model that was never observed.
func (m *InMemory) Model(model string) ModelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats, ok := m.stats[model]
	if !ok {
		return ModelStats{Model: model}
	}
	return stats.copy()
}

// Overall returns statistics across all models.
func (m *InMemory) Overall() OverallStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := OverallStats{
		TotalModels: len(m.stats),
		Models:      make(map[string]ModelStats, len(m.stats)),
	}
	var fastest float64
	for name, stats := range m.stats {
		out.TotalRequests += stats.TotalRequests
		out.SuccessfulRequests += stats.SuccessfulRequests
		out.Models[name] = stats.copy()
		if stats.AverageLatencyMs > 0 && (fastest == 0 || stats.AverageLatencyMs < fastest) {
			fastest = stats.AverageLatencyMs
			out.FastestModel = name
		}
	}
	if out.TotalRequests > 0 {
		out.OverallSuccessRate = float64(out.SuccessfulRequests) / float64(out.TotalRequests)
	}
	return out
}

// Models returns the observed model names, sorted.
func (m *InMemory) Models() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset drops all statistics.
func (m *InMemory) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats = make(map[string]*ModelStats)
}

// must be called with the write lock held
func (m *InMemory) getOrCreate(model string) *ModelStats {
	stats, ok := m.stats[model]
	if !ok {
		stats = &ModelStats{
			Model:          model,
			Operations:     make(map[string]int64),
			ErrorBreakdown: make(map[string]int64),
			IsHealthy:      true,
		}
		m.stats[model] = stats
	}
	return stats
}

func (s *ModelStats) copy() ModelStats {
	out := *s
	out.Operations = copyCounts(s.Operations)
	out.ErrorBreakdown = copyCounts(s.ErrorBreakdown)
	return out
}

func copyCounts(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
