// Package model defines the core data types shared across the Loopai
// generation-execution-validation pipeline: task specifications, generated
// program artifacts, execution records and validation results.
package model

import (
	"encoding/json"
	"time"
)

// Document is a structured input or output value. Inputs and outputs cross
// the process boundary as JSON, so values follow encoding/json conventions
// (numbers decode as float64).
type Document map[string]any

// Clone returns a deep copy of the document via a JSON round trip.
func (d Document) Clone() Document {
	if d == nil {
		return nil
	}
	raw, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var out Document
	if json.Unmarshal(raw, &out) != nil {
		return nil
	}
	return out
}

// ExamplePair is one input/output example attached to a task.
type ExamplePair struct {
	Input  Document `json:"input"`
	Output any      `json:"output"`
}

// Task is an immutable task specification. Program versions are generated
// against it; the task itself never changes after creation.
type Task struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	InputSchema   Document      `json:"input_schema"`
	OutputSchema  Document      `json:"output_schema"`
	Examples      []ExamplePair `json:"examples,omitempty"`
	Constraints   string        `json:"constraints,omitempty"`
	TargetRuntime string        `json:"target_runtime"` // e.g. "python3"
	SamplingRate  float64       `json:"sampling_rate"`  // 0.0-1.0, 0 means use the configured default
	CreatedAt     time.Time     `json:"created_at"`
}

// ComplexityMetrics describes a generated program's size and complexity.
type ComplexityMetrics struct {
	LinesOfCode          int `json:"lines_of_code"`
	CyclomaticComplexity int `json:"cyclomatic_complexity"`
	EstimatedTokens      int `json:"estimated_tokens"`
}

// ProgramArtifact is one generated program version for a task. Immutable
// once produced; the artifact cache owns the stored copy.
type ProgramArtifact struct {
	TaskID      string            `json:"task_id"`
	Version     int               `json:"version"`
	Source      string            `json:"source"`
	Language    string            `json:"language"` // e.g. "python"
	Complexity  ComplexityMetrics `json:"complexity"`
	GeneratedAt time.Time         `json:"generated_at"`
}

// ExecutionOutcome classifies how an execution ended.
type ExecutionOutcome string

const (
	OutcomeSuccess         ExecutionOutcome = "success"
	OutcomeTimeout         ExecutionOutcome = "timeout"
	OutcomeResourceLimit   ExecutionOutcome = "resource_limit"
	OutcomeMalformedOutput ExecutionOutcome = "malformed_output"
	OutcomeRuntimeCrash    ExecutionOutcome = "runtime_crash"
)

// ExecutionRecord is the immutable result of one sandboxed execution.
// Exactly one record is produced per execution, success or failure.
type ExecutionRecord struct {
	TaskID        string           `json:"task_id"`
	Version       int              `json:"version"`
	Input         Document         `json:"input"`
	Output        Document         `json:"output,omitempty"` // nil unless Outcome is success
	Outcome       ExecutionOutcome `json:"outcome"`
	Error         string           `json:"error,omitempty"`
	LatencyMS     float64          `json:"latency_ms"`
	Sampled       bool             `json:"sampled"`
	CorrelationID string           `json:"correlation_id,omitempty"` // caller-supplied, optional
	ExecutedAt    time.Time        `json:"executed_at"`
}

// ValidationItem pairs an actual output with its expected output for scoring.
type ValidationItem struct {
	CorrelationID string   `json:"correlation_id"`
	Input         Document `json:"input,omitempty"`
	Actual        any      `json:"actual"`
	Expected      any      `json:"expected"`
}

// ValidationResult is the verdict for one item. Confidence is set only when
// a partial-similarity metric applies (structured documents); a strict
// boolean match leaves it nil.
type ValidationResult struct {
	CorrelationID string   `json:"correlation_id"`
	Valid         bool     `json:"valid"`
	Message       string   `json:"message,omitempty"`
	Confidence    *float64 `json:"confidence,omitempty"` // 0.0-1.0
}

// BatchValidationReport summarizes an ordered batch of validations.
// Results preserve one-to-one positional correspondence with the request.
type BatchValidationReport struct {
	BatchID      string             `json:"batch_id"`
	TaskID       string             `json:"task_id"`
	TotalItems   int                `json:"total_items"`
	ValidCount   int                `json:"valid_count"`
	InvalidCount int                `json:"invalid_count"`
	AccuracyRate float64            `json:"accuracy_rate"` // valid/total, 0 when total is 0
	Results      []ValidationResult `json:"results"`
	Duration     time.Duration      `json:"duration"`
}
