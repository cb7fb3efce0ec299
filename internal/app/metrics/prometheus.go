package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus exports observations as Prometheus collectors.
type Prometheus struct {
	requests *prometheus.CounterVec
	failures *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	tokens   *prometheus.CounterVec
}

// NewPrometheus creates the collectors and registers them with reg.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genai_chat",
			Name:      "requests_total",
			Help:      "Chat operations by model, operation and outcome.",
		}, []string{"model", "operation", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genai_chat",
			Name:      "failures_total",
			Help:      "Failed chat operations by error kind.",
		}, []string{"model", "operation", "kind"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "genai_chat",
			Name:      "request_duration_seconds",
			Help:      "Latency of successful chat operations.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"model", "operation"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "genai_chat",
			Name:      "tokens_total",
			Help:      "Tokens reported by the service.",
		}, []string{"model", "direction"}),
	}
	for _, c := range []prometheus.Collector{p.requests, p.failures, p.latency, p.tokens} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (p *Prometheus) RecordSuccess(model, operation string, latency time.Duration, promptTokens, completionTokens int) {
	p.requests.WithLabelValues(model, operation, "success").Inc()
	p.latency.WithLabelValues(model, operation).Observe(latency.Seconds())
	if promptTokens > 0 {
		p.tokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		p.tokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

func (p *Prometheus) RecordFailure(model, operation, errorKind string) {
	p.requests.WithLabelValues(model, operation, "failure").Inc()
	p.failures.WithLabelValues(model, operation, errorKind).Inc()
}
