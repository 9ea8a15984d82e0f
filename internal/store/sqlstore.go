package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"loopai/internal/model"
)

// nullStr converts a sql.NullString to a plain string (empty if null).
func nullStr(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// SqlStore implements Store with SQLite.
type SqlStore struct {
	db *sql.DB
}

// Open opens or creates a SQLite DB at path and runs migrations.
// Creates the parent directory (e.g. .loopai) if it does not exist.
func Open(path string) (*SqlStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	s := &SqlStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SqlStore) migrate() error {
	var tableCount int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableCount)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableCount == 0 {
		if _, err := s.db.Exec(schemaV1); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version(version) VALUES(?)", schemaVersionV1); err != nil {
			return fmt.Errorf("set schema version: %w", err)
		}
		return nil
	}

	var v int
	err = s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&v)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("read schema version: %w", err)
	}
	if v != schemaVersionV1 {
		return fmt.Errorf("unknown schema version %d", v)
	}
	return nil
}

// Close closes the underlying database.
func (s *SqlStore) Close() error { return s.db.Close() }

// SaveExecution persists one execution record.
func (s *SqlStore) SaveExecution(rec *model.ExecutionRecord) (int64, error) {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return 0, fmt.Errorf("encode input: %w", err)
	}
	var output any
	if rec.Output != nil {
		raw, err := json.Marshal(rec.Output)
		if err != nil {
			return 0, fmt.Errorf("encode output: %w", err)
		}
		output = string(raw)
	}
	res, err := s.db.Exec(`INSERT INTO executions
		(task_id, version, correlation_id, input, output, outcome, error, latency_ms, sampled, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID, rec.Version, rec.CorrelationID, string(input), output,
		string(rec.Outcome), rec.Error, rec.LatencyMS, rec.Sampled,
		rec.ExecutedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert execution: %w", err)
	}
	return res.LastInsertId()
}

// ListExecutions returns the most recent executions for a task, newest
// first. limit <= 0 means no limit.
func (s *SqlStore) ListExecutions(taskID string, limit int) ([]*model.ExecutionRecord, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT version, correlation_id, input, output, outcome, error, latency_ms, sampled, executed_at
		FROM executions WHERE task_id = ? ORDER BY id DESC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*model.ExecutionRecord
	for rows.Next() {
		rec := &model.ExecutionRecord{TaskID: taskID}
		var corr, output, errMsg sql.NullString
		var input, executedAt string
		var outcome string
		if err := rows.Scan(&rec.Version, &corr, &input, &output, &outcome, &errMsg,
			&rec.LatencyMS, &rec.Sampled, &executedAt); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		rec.CorrelationID = nullStr(corr)
		rec.Error = nullStr(errMsg)
		rec.Outcome = model.ExecutionOutcome(outcome)
		if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
			return nil, fmt.Errorf("decode input: %w", err)
		}
		if output.Valid {
			if err := json.Unmarshal([]byte(output.String), &rec.Output); err != nil {
				return nil, fmt.Errorf("decode output: %w", err)
			}
		}
		if t, err := time.Parse(time.RFC3339Nano, executedAt); err == nil {
			rec.ExecutedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SummarizeExecutions aggregates executions for a task since the given time.
func (s *SqlStore) SummarizeExecutions(taskID string, since time.Time) (*ExecutionSummary, error) {
	var count int64
	var avg sql.NullFloat64
	err := s.db.QueryRow(`SELECT COUNT(*), AVG(latency_ms) FROM executions
		WHERE task_id = ? AND executed_at >= ?`,
		taskID, since.UTC().Format(time.RFC3339Nano)).Scan(&count, &avg)
	if err != nil {
		return nil, fmt.Errorf("summarize executions: %w", err)
	}
	sum := &ExecutionSummary{Count: count}
	if avg.Valid {
		sum.AvgLatencyMS = avg.Float64
	}
	return sum, nil
}

// SaveReport persists a batch validation report. Results are stored as one
// JSON payload; the summary columns stay queryable.
func (s *SqlStore) SaveReport(report *model.BatchValidationReport) (int64, error) {
	results, err := json.Marshal(report.Results)
	if err != nil {
		return 0, fmt.Errorf("encode results: %w", err)
	}
	res, err := s.db.Exec(`INSERT INTO validation_reports
		(batch_id, task_id, total, valid, invalid, accuracy, duration_ms, results, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.BatchID, report.TaskID, report.TotalItems, report.ValidCount,
		report.InvalidCount, report.AccuracyRate,
		float64(report.Duration.Microseconds())/1000, string(results),
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("insert report: %w", err)
	}
	return res.LastInsertId()
}

// GetReport loads a report by batch id. Returns sql.ErrNoRows if absent.
func (s *SqlStore) GetReport(batchID string) (*model.BatchValidationReport, error) {
	report := &model.BatchValidationReport{BatchID: batchID}
	var results string
	var durationMS float64
	err := s.db.QueryRow(`SELECT task_id, total, valid, invalid, accuracy, duration_ms, results
		FROM validation_reports WHERE batch_id = ?`, batchID).
		Scan(&report.TaskID, &report.TotalItems, &report.ValidCount,
			&report.InvalidCount, &report.AccuracyRate, &durationMS, &results)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", batchID, err)
	}
	report.Duration = time.Duration(durationMS * float64(time.Millisecond))
	if err := json.Unmarshal([]byte(results), &report.Results); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return report, nil
}
