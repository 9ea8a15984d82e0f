// Package store persists execution records and batch validation reports.
// The pipeline treats it as an optional collaborator: a nil store is a
// valid configuration and the core never depends on durability.
package store

import (
	"time"

	"loopai/internal/model"
)

// DefaultDBPath is the default relative path for the SQLite DB.
// Open() creates the parent dir (e.g. .loopai).
const DefaultDBPath = ".loopai/loopai.db"

// ExecutionSummary aggregates stored executions for reporting.
type ExecutionSummary struct {
	Count        int64   `json:"count"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

// Store is the persistence facade. Domain and CLI use only this interface;
// the implementation is SQLite or in-memory.
type Store interface {
	// Executions
	SaveExecution(rec *model.ExecutionRecord) (int64, error)
	ListExecutions(taskID string, limit int) ([]*model.ExecutionRecord, error)
	SummarizeExecutions(taskID string, since time.Time) (*ExecutionSummary, error)
	// Validation reports
	SaveReport(report *model.BatchValidationReport) (int64, error)
	GetReport(batchID string) (*model.BatchValidationReport, error)

	Close() error
}
