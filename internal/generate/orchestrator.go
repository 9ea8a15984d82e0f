// Package generate obtains program artifacts for tasks. It is cache-first,
// collapses concurrent requests for the same (task, version) into one
// synthesis call, and retries transport-class failures up to a configured
// attempt ceiling. Terminal collaborator failures are never retried and
// never cached.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"loopai/internal/cache"
	"loopai/internal/config"
	"loopai/internal/logging"
	"loopai/internal/metrics"
	"loopai/internal/model"
	"loopai/internal/synthesis"
)

// Synthesizer is the collaborator contract consumed by the orchestrator.
// *synthesis.Client implements it; tests substitute fakes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req *synthesis.Request) (*synthesis.Response, error)
}

// Orchestrator coordinates cache lookups, single-flight synthesis and
// retries.
type Orchestrator struct {
	cache          *cache.Cache
	synth          Synthesizer
	maxAttempts    int
	attemptTimeout time.Duration
	logger         *slog.Logger
	flight         singleflight.Group
}

// New creates an orchestrator. cache may not be nil (use a disabled cache
// to turn caching off).
func New(c *cache.Cache, synth Synthesizer, cfg config.SynthesisConfig, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Orchestrator{
		cache:          c,
		synth:          synth,
		maxAttempts:    cfg.MaxAttempts,
		attemptTimeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		logger:         logger,
	}
}

// Generate returns the program artifact for (task, version), from cache when
// possible. Concurrent callers for the same key share one in-flight
// synthesis call and all receive its result, success or failure.
func (o *Orchestrator) Generate(ctx context.Context, task *model.Task, version int, constraints string) (*model.ProgramArtifact, error) {
	if task == nil {
		return nil, fmt.Errorf("generate: task is required")
	}
	if artifact, ok := o.cache.Get(task.ID, version); ok {
		metrics.CacheHits.Inc()
		return artifact, nil
	}
	metrics.CacheMisses.Inc()

	key := fmt.Sprintf("%s:v%d", task.ID, version)
	v, err, shared := o.flight.Do(key, func() (any, error) {
		return o.generateUncached(ctx, task, version, constraints)
	})
	if shared {
		o.logger.DebugContext(ctx, "generation shared with in-flight call", "key", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*model.ProgramArtifact), nil
}

func (o *Orchestrator) generateUncached(ctx context.Context, task *model.Task, version int, constraints string) (*model.ProgramArtifact, error) {
	// A second caller can land here after the first flight completed but
	// before it observed the cache; the populated cache answers it.
	if artifact, ok := o.cache.Get(task.ID, version); ok {
		return artifact, nil
	}

	req := &synthesis.Request{
		TaskID:        task.ID,
		TaskName:      task.Name,
		Description:   task.Description,
		InputSchema:   task.InputSchema,
		OutputSchema:  task.OutputSchema,
		Examples:      task.Examples,
		Constraints:   constraints,
		TargetRuntime: task.TargetRuntime,
		Version:       version,
	}

	var lastFailure *model.GenerationFailure
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		metrics.GenerationAttempts.Inc()
		resp, err := o.synthesizeOnce(ctx, req)
		if err == nil {
			artifact := o.buildArtifact(task, version, resp)
			o.cache.Put(task.ID, version, artifact)
			o.logger.InfoContext(ctx, "artifact generated",
				"task", task.ID, "version", version, "attempt", attempt,
				"loc", artifact.Complexity.LinesOfCode)
			return artifact, nil
		}

		lastFailure = classify(err, task.ID, version)
		if !lastFailure.Retryable() {
			break
		}
		o.logger.WarnContext(ctx, "synthesis attempt failed",
			"task", task.ID, "version", version, "attempt", attempt,
			"kind", string(lastFailure.Kind), "err", err)
		if ctx.Err() != nil {
			// The caller is gone; stop burning attempts.
			break
		}
	}
	metrics.GenerationFailures.Inc()
	return nil, lastFailure
}

func (o *Orchestrator) synthesizeOnce(ctx context.Context, req *synthesis.Request) (*synthesis.Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, o.attemptTimeout)
	defer cancel()
	return o.synth.Synthesize(attemptCtx, req)
}

// classify maps a synthesis error onto the generation failure taxonomy.
func classify(err error, taskID string, version int) *model.GenerationFailure {
	f := &model.GenerationFailure{TaskID: taskID, Version: version, Err: err}
	var terminal *synthesis.TerminalError
	switch {
	case errors.As(err, &terminal):
		f.Kind = model.GenerationTerminal
		f.Message = terminal.Message
		f.Err = nil
	case errors.Is(err, context.DeadlineExceeded):
		f.Kind = model.GenerationTimeout
		f.Message = "synthesis attempt timed out"
	default:
		f.Kind = model.GenerationTransport
		f.Message = "synthesis transport failure"
	}
	return f
}

func (o *Orchestrator) buildArtifact(task *model.Task, version int, resp *synthesis.Response) *model.ProgramArtifact {
	language := resp.Language
	if language == "" {
		language = task.TargetRuntime
	}
	complexity := resp.Complexity
	if complexity == (model.ComplexityMetrics{}) {
		complexity = EstimateComplexity(resp.SourceCode)
	}
	generatedAt := resp.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	return &model.ProgramArtifact{
		TaskID:      task.ID,
		Version:     version,
		Source:      resp.SourceCode,
		Language:    language,
		Complexity:  complexity,
		GeneratedAt: generatedAt,
	}
}
