package services

import "genai-chat/internal/app/metrics"

type statsService struct {
	stats *metrics.InMemory
}

// NewStatsService exposes the in-memory request statistics.
func NewStatsService(stats *metrics.InMemory) StatsService {
	return &statsService{stats: stats}
}

func (s *statsService) Overall() metrics.OverallStats {
	return s.stats.Overall()
}

func (s *statsService) Model(name string) metrics.ModelStats {
	return s.stats.Model(name)
}
