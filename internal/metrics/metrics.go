// Package metrics exposes the pipeline's Prometheus instrumentation.
// Collectors are registered on the default registry and served by the HTTP
// runtime's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts artifact cache hits in the generation path.
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "artifact_cache_hits_total",
		Help:      "Artifact cache hits during generation.",
	})

	// CacheMisses counts artifact cache misses in the generation path.
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "artifact_cache_misses_total",
		Help:      "Artifact cache misses during generation.",
	})

	// GenerationAttempts counts individual synthesis attempts, retries
	// included.
	GenerationAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "generation_attempts_total",
		Help:      "Synthesis collaborator attempts, including retries.",
	})

	// GenerationFailures counts generations that exhausted retries or hit a
	// terminal collaborator failure.
	GenerationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "generation_failures_total",
		Help:      "Generations surfaced to callers as failures.",
	})

	// Executions counts sandbox executions by outcome.
	Executions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "executions_total",
		Help:      "Sandbox executions by outcome.",
	}, []string{"outcome"})

	// ExecutionLatency observes end-to-end execution latency including
	// process startup.
	ExecutionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "loopai",
		Name:      "execution_latency_seconds",
		Help:      "End-to-end sandbox execution latency.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	// SampledExecutions counts executions selected for validation.
	SampledExecutions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "sampled_executions_total",
		Help:      "Executions selected for validation by the sampler.",
	})

	// ValidationItems counts validated items by verdict.
	ValidationItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "loopai",
		Name:      "validation_items_total",
		Help:      "Validated items by verdict.",
	}, []string{"verdict"})
)
