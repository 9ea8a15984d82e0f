package cache

import (
	"testing"
	"time"

	"loopai/internal/config"
	"loopai/internal/model"
)

func testConfig() config.CacheConfig {
	return config.CacheConfig{
		Enabled:         true,
		TaskTTLMinutes:  60,
		ArtifactTTLMins: 30,
		StatsTTLMinutes: 15,
		SweepSeconds:    60,
	}
}

func artifact(taskID string, version int) *model.ProgramArtifact {
	return &model.ProgramArtifact{TaskID: taskID, Version: version, Source: "print({})"}
}

func TestCache_PutGet(t *testing.T) {
	c := New(testConfig(), nil)

	if _, ok := c.Get("t1", 1); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.Put("t1", 1, artifact("t1", 1))
	got, ok := c.Get("t1", 1)
	if !ok {
		t.Fatal("expected hit after Put")
	}
	if got.TaskID != "t1" || got.Version != 1 {
		t.Errorf("wrong artifact: %+v", got)
	}

	// Different version is a different key.
	if _, ok := c.Get("t1", 2); ok {
		t.Error("expected miss for version 2")
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	c := New(testConfig(), nil)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("t1", 1, artifact("t1", 1))
	if _, ok := c.Get("t1", 1); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(29 * time.Minute)
	if _, ok := c.Get("t1", 1); !ok {
		t.Fatal("expected hit just inside TTL")
	}

	now = now.Add(2 * time.Minute)
	if _, ok := c.Get("t1", 1); ok {
		t.Fatal("expected miss after TTL")
	}
}

func TestCache_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	c := New(cfg, nil)

	c.Put("t1", 1, artifact("t1", 1))
	if _, ok := c.Get("t1", 1); ok {
		t.Error("disabled cache must miss")
	}

	c.PutTask(&model.Task{ID: "t1"})
	if _, ok := c.GetTask("t1"); ok {
		t.Error("disabled cache must miss on tasks")
	}

	// EnsureStats still hands back a usable counter set.
	st := c.EnsureStats("t1")
	st.RecordExecution(10, true, false)
	if st.Snapshot().Executions != 1 {
		t.Error("detached stats must still count")
	}
	if _, ok := c.Stats("t1"); ok {
		t.Error("disabled cache must not retain stats")
	}
}

func TestCache_Invalidate(t *testing.T) {
	c := New(testConfig(), nil)
	c.Put("t1", 1, artifact("t1", 1))
	c.Put("t1", 2, artifact("t1", 2))

	c.Invalidate("t1", 1)
	if _, ok := c.Get("t1", 1); ok {
		t.Error("invalidated entry must miss")
	}
	if _, ok := c.Get("t1", 2); !ok {
		t.Error("other versions must survive invalidation")
	}
}

func TestCache_EnsureStatsReuses(t *testing.T) {
	c := New(testConfig(), nil)
	a := c.EnsureStats("t1")
	b := c.EnsureStats("t1")
	if a != b {
		t.Fatal("EnsureStats must return the same entry for a live task")
	}

	a.RecordExecution(5, true, true)
	got, ok := c.Stats("t1")
	if !ok {
		t.Fatal("expected stats hit")
	}
	if got.Snapshot().Executions != 1 {
		t.Errorf("expected 1 execution, got %d", got.Snapshot().Executions)
	}
}

func TestCache_Sweep(t *testing.T) {
	c := New(testConfig(), nil)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("old", 1, artifact("old", 1))
	c.PutTask(&model.Task{ID: "old"})
	c.EnsureStats("old")

	now = now.Add(2 * time.Hour)
	c.Put("fresh", 1, artifact("fresh", 1))

	if n := c.sweep(); n != 3 {
		t.Errorf("expected 3 evictions, got %d", n)
	}
	if _, ok := c.Get("fresh", 1); !ok {
		t.Error("fresh entry must survive the sweep")
	}
}

func TestExecutionStats_Snapshot(t *testing.T) {
	st := NewExecutionStats("t1")
	st.RecordExecution(10, true, true)
	st.RecordExecution(20, false, false)
	st.RecordValidation(true)
	st.RecordValidation(true)
	st.RecordValidation(false)

	snap := st.Snapshot()
	if snap.TaskID != "t1" {
		t.Errorf("task id: %q", snap.TaskID)
	}
	if snap.Executions != 2 || snap.Failures != 1 || snap.Sampled != 1 {
		t.Errorf("counters: %+v", snap)
	}
	if snap.Valid != 2 || snap.Invalid != 1 {
		t.Errorf("verdicts: %+v", snap)
	}
	if want := 2.0 / 3.0; snap.AccuracyRate != want {
		t.Errorf("accuracy: got %v want %v", snap.AccuracyRate, want)
	}
	if snap.AvgLatencyMS != 15 {
		t.Errorf("avg latency: got %v want 15", snap.AvgLatencyMS)
	}
}

func TestExecutionStats_EmptyAccuracy(t *testing.T) {
	snap := NewExecutionStats("t1").Snapshot()
	if snap.AccuracyRate != 0 || snap.AvgLatencyMS != 0 {
		t.Errorf("empty stats must report zeroes: %+v", snap)
	}
}
