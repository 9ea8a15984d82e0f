package store

import (
	"fmt"
	"sync"
	"time"

	"loopai/internal/model"
)

// MemStore implements Store in memory. Used by tests and by deployments
// that run without persistence.
type MemStore struct {
	mu         sync.RWMutex
	executions []*model.ExecutionRecord
	nextID     int64
	reports    map[string]*model.BatchValidationReport
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{reports: make(map[string]*model.BatchValidationReport)}
}

// SaveExecution implements Store.
func (s *MemStore) SaveExecution(rec *model.ExecutionRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	copied := *rec
	s.executions = append(s.executions, &copied)
	return s.nextID, nil
}

// ListExecutions implements Store. Newest first.
func (s *MemStore) ListExecutions(taskID string, limit int) ([]*model.ExecutionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*model.ExecutionRecord
	for i := len(s.executions) - 1; i >= 0; i-- {
		if s.executions[i].TaskID != taskID {
			continue
		}
		out = append(out, s.executions[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// SummarizeExecutions implements Store.
func (s *MemStore) SummarizeExecutions(taskID string, since time.Time) (*ExecutionSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum := &ExecutionSummary{}
	var latencyTotal float64
	for _, rec := range s.executions {
		if rec.TaskID != taskID || rec.ExecutedAt.Before(since) {
			continue
		}
		sum.Count++
		latencyTotal += rec.LatencyMS
	}
	if sum.Count > 0 {
		sum.AvgLatencyMS = latencyTotal / float64(sum.Count)
	}
	return sum, nil
}

// SaveReport implements Store.
func (s *MemStore) SaveReport(report *model.BatchValidationReport) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *report
	s.reports[report.BatchID] = &copied
	return int64(len(s.reports)), nil
}

// GetReport implements Store.
func (s *MemStore) GetReport(batchID string) (*model.BatchValidationReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	report, ok := s.reports[batchID]
	if !ok {
		return nil, fmt.Errorf("report %s not found", batchID)
	}
	return report, nil
}

// Close implements Store.
func (s *MemStore) Close() error { return nil }
