// Package runtime wires the generation-execution-validation pipeline:
// cache-backed generation, sandboxed execution, sampling, validation and
// optional persistence. It is constructed explicitly at process start and
// torn down at shutdown; there are no hidden process-wide singletons.
package runtime

import (
	"context"
	"fmt"
	"log/slog"

	"loopai/internal/cache"
	"loopai/internal/logging"
	"loopai/internal/metrics"
	"loopai/internal/model"
	"loopai/internal/sampling"
	"loopai/internal/store"
	"loopai/internal/validate"
)

// Generator produces artifacts for (task, version). Implemented by
// *generate.Orchestrator.
type Generator interface {
	Generate(ctx context.Context, task *model.Task, version int, constraints string) (*model.ProgramArtifact, error)
}

// Executor runs one artifact against one input. Implemented by
// *sandbox.Sandbox.
type Executor interface {
	Execute(ctx context.Context, artifact *model.ProgramArtifact, input model.Document, correlationID string) *model.ExecutionRecord
}

// Oracle supplies expected outputs for sampled executions that arrived
// without one. Optional.
type Oracle interface {
	ExpectedOutput(ctx context.Context, task *model.Task, input model.Document) (any, error)
}

// Options collects the runtime's collaborators. Cache, Generator, Executor,
// Sampler and Validator are required; Oracle and Store are optional.
type Options struct {
	Cache     *cache.Cache
	Generator Generator
	Executor  Executor
	Sampler   *sampling.Controller
	Validator *validate.Engine
	Oracle    Oracle
	Store     store.Store
	Logger    *slog.Logger
}

// Runtime is the pipeline facade exposed to the CLI and HTTP surfaces.
type Runtime struct {
	cache     *cache.Cache
	generator Generator
	executor  Executor
	sampler   *sampling.Controller
	validator *validate.Engine
	oracle    Oracle
	store     store.Store
	logger    *slog.Logger
}

// New assembles a runtime from its collaborators.
func New(opts Options) (*Runtime, error) {
	switch {
	case opts.Cache == nil:
		return nil, fmt.Errorf("runtime: cache is required")
	case opts.Generator == nil:
		return nil, fmt.Errorf("runtime: generator is required")
	case opts.Executor == nil:
		return nil, fmt.Errorf("runtime: executor is required")
	case opts.Sampler == nil:
		return nil, fmt.Errorf("runtime: sampler is required")
	case opts.Validator == nil:
		return nil, fmt.Errorf("runtime: validator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Runtime{
		cache:     opts.Cache,
		generator: opts.Generator,
		executor:  opts.Executor,
		sampler:   opts.Sampler,
		validator: opts.Validator,
		oracle:    opts.Oracle,
		store:     opts.Store,
		logger:    logger,
	}, nil
}

// StartSweeper begins periodic cache eviction; it stops when ctx ends.
// Long-lived surfaces call this once at startup.
func (r *Runtime) StartSweeper(ctx context.Context) {
	r.cache.StartSweeper(ctx)
}

// Generate obtains the task's artifact without executing it.
func (r *Runtime) Generate(ctx context.Context, task *model.Task, version int) (*model.ProgramArtifact, error) {
	return r.generator.Generate(ctx, task, version, task.Constraints)
}

// RunResult is one pass through the pipeline: the execution record plus the
// validation verdict when the execution was sampled and scorable.
type RunResult struct {
	Record     *model.ExecutionRecord  `json:"record"`
	Validation *model.ValidationResult `json:"validation,omitempty"`
}

// Run executes the task's program for one input: generate (or hit the
// cache), execute in the sandbox, decide sampling, validate when sampled
// and an expected output is available, then record statistics. expected may
// be nil; with an oracle configured it is filled in for sampled executions.
func (r *Runtime) Run(ctx context.Context, task *model.Task, version int, input model.Document, expected any, correlationID string) (*RunResult, error) {
	artifact, err := r.generator.Generate(ctx, task, version, task.Constraints)
	if err != nil {
		return nil, err
	}

	record := r.executor.Execute(ctx, artifact, input, correlationID)
	record.Sampled = r.sampler.ShouldSample(task.ID)
	if record.Sampled {
		metrics.SampledExecutions.Inc()
	}

	stats := r.cache.EnsureStats(task.ID)
	stats.RecordExecution(record.LatencyMS, record.Outcome == model.OutcomeSuccess, record.Sampled)

	result := &RunResult{Record: record}
	if record.Sampled && record.Outcome == model.OutcomeSuccess {
		result.Validation = r.validateSampled(ctx, task, record, expected)
		if result.Validation != nil {
			stats.RecordValidation(result.Validation.Valid)
		}
	}

	if r.store != nil {
		if _, err := r.store.SaveExecution(record); err != nil {
			// Persistence is best-effort; the record already went to the caller.
			r.logger.WarnContext(ctx, "save execution failed", "task", task.ID, "err", err)
		}
	}
	return result, nil
}

// validateSampled scores a sampled execution. Returns nil when no expected
// output can be obtained; the execution stays sampled but unscored.
func (r *Runtime) validateSampled(ctx context.Context, task *model.Task, record *model.ExecutionRecord, expected any) *model.ValidationResult {
	if expected == nil {
		if r.oracle == nil {
			return nil
		}
		var err error
		expected, err = r.oracle.ExpectedOutput(ctx, task, record.Input)
		if err != nil {
			r.logger.WarnContext(ctx, "oracle query failed", "task", task.ID, "err", err)
			return nil
		}
	}
	result := r.validator.ValidateOne(model.ValidationItem{
		CorrelationID: record.CorrelationID,
		Input:         record.Input,
		Actual:        record.Output,
		Expected:      expected,
	})
	return &result
}

// ValidateBatch scores a batch, folds the verdicts into the task's rolling
// statistics, and persists the report when a store is configured.
func (r *Runtime) ValidateBatch(ctx context.Context, taskID string, items []model.ValidationItem) *model.BatchValidationReport {
	report := r.validator.ValidateBatch(ctx, taskID, items)

	stats := r.cache.EnsureStats(taskID)
	for _, res := range report.Results {
		stats.RecordValidation(res.Valid)
	}

	if r.store != nil {
		if _, err := r.store.SaveReport(report); err != nil {
			r.logger.WarnContext(ctx, "save report failed", "batch", report.BatchID, "err", err)
		}
	}
	return report
}

// Stats returns the task's rolling counters, if present.
func (r *Runtime) Stats(taskID string) (cache.StatsSnapshot, bool) {
	stats, ok := r.cache.Stats(taskID)
	if !ok {
		return cache.StatsSnapshot{}, false
	}
	return stats.Snapshot(), true
}

// Close tears the runtime down.
func (r *Runtime) Close() error {
	if r.store != nil {
		return r.store.Close()
	}
	return nil
}
