// Package metrics records per-model request statistics for chat calls.
package metrics

import "time"

// Recorder receives one observation per chat operation.
type Recorder interface {
	// RecordSuccess records a completed operation and the tokens it used.
	RecordSuccess(model, operation string, latency time.Duration, promptTokens, completionTokens int)
	// RecordFailure records a failed operation classified by errorKind.
	RecordFailure(model, operation, errorKind string)
}

// Nop discards all observations.
type Nop struct{}

func (Nop) RecordSuccess(string, string, time.Duration, int, int) {}
func (Nop) RecordFailure(string, string, string)                  {}

// Multi fans each observation out to several recorders.
type Multi []Recorder

func (m Multi) RecordSuccess(model, operation string, latency time.Duration, promptTokens, completionTokens int) {
	for _, r := range m {
		r.RecordSuccess(model, operation, latency, promptTokens, completionTokens)
	}
}

func (m Multi) RecordFailure(model, operation, errorKind string) {
	for _, r := range m {
		r.RecordFailure(model, operation, errorKind)
	}
}
