// Package sampling decides which executions are forwarded to validation.
// Decisions are probabilistic, independent across executions, and cheap
// enough to sit on the hot execution path.
package sampling

import (
	"fmt"
	"math/rand/v2"
	"sync"
)

// Controller holds per-task sampling rates with a configured default.
type Controller struct {
	mu          sync.RWMutex
	defaultRate float64
	rates       map[string]float64
}

// NewController creates a controller. defaultRate applies to tasks without
// an explicit rate; rates may be nil.
func NewController(defaultRate float64, rates map[string]float64) (*Controller, error) {
	if defaultRate < 0 || defaultRate > 1 {
		return nil, fmt.Errorf("sampling: default rate %v out of [0,1]", defaultRate)
	}
	c := &Controller{defaultRate: defaultRate, rates: make(map[string]float64)}
	for task, rate := range rates {
		if err := c.SetRate(task, rate); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Rate returns the effective sampling rate for a task.
func (c *Controller) Rate(taskID string) float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if rate, ok := c.rates[taskID]; ok {
		return rate
	}
	return c.defaultRate
}

// SetRate overrides the rate for one task at runtime.
func (c *Controller) SetRate(taskID string, rate float64) error {
	if rate < 0 || rate > 1 {
		return fmt.Errorf("sampling: rate %v for task %s out of [0,1]", rate, taskID)
	}
	c.mu.Lock()
	c.rates[taskID] = rate
	c.mu.Unlock()
	return nil
}

// ShouldSample draws one independent decision for an execution of the task.
// The decision is recorded on the execution record by the caller and never
// revisited.
func (c *Controller) ShouldSample(taskID string) bool {
	rate := c.Rate(taskID)
	if rate <= 0 {
		return false
	}
	if rate >= 1 {
		return true
	}
	return rand.Float64() < rate
}
