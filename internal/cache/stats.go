package cache

import "sync/atomic"

// ExecutionStats holds rolling per-task counters. All fields are updated
// atomically so concurrent executions and batch validations can fold in
// results without coordination.
type ExecutionStats struct {
	taskID string

	executions     atomic.Int64
	failures       atomic.Int64
	sampled        atomic.Int64
	valid          atomic.Int64
	invalid        atomic.Int64
	latencyMicroSum atomic.Int64
}

// NewExecutionStats creates an empty counter set for a task.
func NewExecutionStats(taskID string) *ExecutionStats {
	return &ExecutionStats{taskID: taskID}
}

// RecordExecution folds one execution into the counters.
func (s *ExecutionStats) RecordExecution(latencyMS float64, success, sampled bool) {
	s.executions.Add(1)
	if !success {
		s.failures.Add(1)
	}
	if sampled {
		s.sampled.Add(1)
	}
	s.latencyMicroSum.Add(int64(latencyMS * 1000))
}

// RecordValidation folds one validation verdict into the counters.
func (s *ExecutionStats) RecordValidation(valid bool) {
	if valid {
		s.valid.Add(1)
	} else {
		s.invalid.Add(1)
	}
}

// StatsSnapshot is a point-in-time copy of the counters.
type StatsSnapshot struct {
	TaskID       string  `json:"task_id"`
	Executions   int64   `json:"executions"`
	Failures     int64   `json:"failures"`
	Sampled      int64   `json:"sampled"`
	Valid        int64   `json:"valid"`
	Invalid      int64   `json:"invalid"`
	AccuracyRate float64 `json:"accuracy_rate"` // valid/(valid+invalid), 0 when unvalidated
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Snapshot reads the counters. Individual fields are consistent; the set as
// a whole may straddle concurrent updates, which is fine for reporting.
func (s *ExecutionStats) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		TaskID:     s.taskID,
		Executions: s.executions.Load(),
		Failures:   s.failures.Load(),
		Sampled:    s.sampled.Load(),
		Valid:      s.valid.Load(),
		Invalid:    s.invalid.Load(),
	}
	if scored := snap.Valid + snap.Invalid; scored > 0 {
		snap.AccuracyRate = float64(snap.Valid) / float64(scored)
	}
	if snap.Executions > 0 {
		snap.AvgLatencyMS = float64(s.latencyMicroSum.Load()) / 1000 / float64(snap.Executions)
	}
	return snap
}
