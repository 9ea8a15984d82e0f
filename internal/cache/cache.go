// Package cache implements the TTL-keyed artifact cache. It holds generated
// program artifacts, task metadata and per-task execution statistics, each
// category under its own time-to-live. Expired entries are treated as misses
// and evicted lazily on access or by the periodic sweeper.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"loopai/internal/config"
	"loopai/internal/logging"
	"loopai/internal/model"
)

type artifactKey struct {
	taskID  string
	version int
}

type entry[T any] struct {
	value   T
	expires time.Time
}

func (e entry[T]) expired(now time.Time) bool { return now.After(e.expires) }

// Cache is a process-local TTL store. It provides no durability across
// restarts. A disabled cache misses on every Get and ignores every Put;
// callers must treat that as a valid configuration.
type Cache struct {
	cfg    config.CacheConfig
	logger *slog.Logger
	now    func() time.Time // injectable for TTL tests

	mu        sync.RWMutex
	artifacts map[artifactKey]entry[*model.ProgramArtifact]
	tasks     map[string]entry[*model.Task]
	stats     map[string]entry[*ExecutionStats]
}

// New creates a cache with the given TTL configuration.
func New(cfg config.CacheConfig, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Cache{
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		artifacts: make(map[artifactKey]entry[*model.ProgramArtifact]),
		tasks:     make(map[string]entry[*model.Task]),
		stats:     make(map[string]entry[*ExecutionStats]),
	}
}

// Get returns the cached artifact for (taskID, version), or a miss if the
// entry is absent, expired or the cache is disabled.
func (c *Cache) Get(taskID string, version int) (*model.ProgramArtifact, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	key := artifactKey{taskID, version}

	c.mu.RLock()
	e, ok := c.artifacts[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if e.expired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock: a concurrent Put may have renewed it.
		if cur, ok := c.artifacts[key]; ok && cur.expired(c.now()) {
			delete(c.artifacts, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.value, true
}

// Put stores an artifact under the configured artifact TTL. No-op when the
// cache is disabled.
func (c *Cache) Put(taskID string, version int, artifact *model.ProgramArtifact) {
	if !c.cfg.Enabled || artifact == nil {
		return
	}
	c.mu.Lock()
	c.artifacts[artifactKey{taskID, version}] = entry[*model.ProgramArtifact]{
		value:   artifact,
		expires: c.now().Add(c.cfg.ArtifactTTL()),
	}
	c.mu.Unlock()
}

// GetTask returns cached task metadata, or a miss.
func (c *Cache) GetTask(taskID string) (*model.Task, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.tasks[taskID]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

// PutTask stores task metadata under the task TTL.
func (c *Cache) PutTask(task *model.Task) {
	if !c.cfg.Enabled || task == nil {
		return
	}
	c.mu.Lock()
	c.tasks[task.ID] = entry[*model.Task]{
		value:   task,
		expires: c.now().Add(c.cfg.TaskTTL()),
	}
	c.mu.Unlock()
}

// Stats returns the live statistics entry for a task, or a miss.
func (c *Cache) Stats(taskID string) (*ExecutionStats, bool) {
	if !c.cfg.Enabled {
		return nil, false
	}
	c.mu.RLock()
	e, ok := c.stats[taskID]
	c.mu.RUnlock()
	if !ok || e.expired(c.now()) {
		return nil, false
	}
	return e.value, true
}

// EnsureStats returns the statistics entry for a task, creating one under
// the stats TTL if missing. With a disabled cache it returns a detached
// entry that is never retained, so counters are still safe to bump.
func (c *Cache) EnsureStats(taskID string) *ExecutionStats {
	if !c.cfg.Enabled {
		return NewExecutionStats(taskID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.stats[taskID]; ok && !e.expired(c.now()) {
		return e.value
	}
	st := NewExecutionStats(taskID)
	c.stats[taskID] = entry[*ExecutionStats]{value: st, expires: c.now().Add(c.cfg.StatsTTL())}
	return st
}

// Invalidate drops a single artifact entry.
func (c *Cache) Invalidate(taskID string, version int) {
	c.mu.Lock()
	delete(c.artifacts, artifactKey{taskID, version})
	c.mu.Unlock()
}

// StartSweeper runs periodic eviction until ctx is canceled. Lazy eviction
// on access already guarantees expired entries are never returned; the
// sweeper only bounds memory for keys that are no longer read.
func (c *Cache) StartSweeper(ctx context.Context) {
	interval := time.Duration(c.cfg.SweepSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := c.sweep(); n > 0 {
					c.logger.Debug("cache sweep", "evicted", n)
				}
			}
		}
	}()
}

func (c *Cache) sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	evicted := 0
	for k, e := range c.artifacts {
		if e.expired(now) {
			delete(c.artifacts, k)
			evicted++
		}
	}
	for k, e := range c.tasks {
		if e.expired(now) {
			delete(c.tasks, k)
			evicted++
		}
	}
	for k, e := range c.stats {
		if e.expired(now) {
			delete(c.stats, k)
			evicted++
		}
	}
	return evicted
}
