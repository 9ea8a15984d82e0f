package validate

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"loopai/internal/metrics"
	"loopai/internal/model"
)

// ValidateBatch scores an ordered batch of items. Items are processed
// concurrently, but each result lands at its request position, so the
// report's results list matches the input order regardless of completion
// order. A single item's failure never aborts the rest of the batch.
func (e *Engine) ValidateBatch(ctx context.Context, taskID string, items []model.ValidationItem) *model.BatchValidationReport {
	start := time.Now()
	results := make([]model.ValidationResult, len(items))

	g := new(errgroup.Group)
	g.SetLimit(e.workers)
	for i, item := range items {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = model.ValidationResult{
					CorrelationID: item.CorrelationID,
					Message:       "validation canceled before item was scored",
				}
				return nil
			}
			results[i] = e.ValidateOne(item)
			return nil
		})
	}
	// Workers never return errors; failures are item-scoped results.
	_ = g.Wait()

	report := &model.BatchValidationReport{
		BatchID:    uuid.NewString(),
		TaskID:     taskID,
		TotalItems: len(items),
		Results:    results,
		Duration:   time.Since(start),
	}
	for _, r := range results {
		if r.Valid {
			report.ValidCount++
			metrics.ValidationItems.WithLabelValues("valid").Inc()
		} else {
			report.InvalidCount++
			metrics.ValidationItems.WithLabelValues("invalid").Inc()
		}
	}
	if report.TotalItems > 0 {
		report.AccuracyRate = float64(report.ValidCount) / float64(report.TotalItems)
	}

	e.logger.InfoContext(ctx, "batch validated",
		"batch", report.BatchID, "task", taskID,
		"total", report.TotalItems, "valid", report.ValidCount,
		"accuracy", report.AccuracyRate, "duration", report.Duration)
	return report
}
