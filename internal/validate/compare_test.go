package validate

import (
	"math"
	"testing"

	"loopai/internal/config"
	"loopai/internal/model"
)

func testEngine() *Engine {
	return NewEngine(config.ValidateConfig{NumericTolerance: 1e-4, BatchWorkers: 4}, nil)
}

func TestValidateOne_Verdicts(t *testing.T) {
	e := testEngine()

	cases := []struct {
		name     string
		actual   any
		expected any
		valid    bool
	}{
		{
			"exact match",
			map[string]any{"total": 42.0, "name": "x"},
			map[string]any{"total": 42.0, "name": "x"},
			true,
		},
		{
			"within tolerance",
			map[string]any{"total": 5.0000001},
			map[string]any{"total": 5.0},
			true,
		},
		{
			"outside tolerance",
			map[string]any{"total": 5.01},
			map[string]any{"total": 5.0},
			false,
		},
		{
			"type mismatch number vs string",
			map[string]any{"total": 5.0},
			map[string]any{"total": "5"},
			false,
		},
		{
			"missing key",
			map[string]any{"a": 1.0},
			map[string]any{"a": 1.0, "b": 2.0},
			false,
		},
		{
			"nested match",
			map[string]any{"user": map[string]any{"id": 1.0, "tags": []any{"a", "b"}}},
			map[string]any{"user": map[string]any{"id": 1.0, "tags": []any{"a", "b"}}},
			true,
		},
		{
			"array order matters",
			map[string]any{"tags": []any{"b", "a"}},
			map[string]any{"tags": []any{"a", "b"}},
			false,
		},
		{
			"scalar match",
			42.0,
			42.0,
			true,
		},
		{
			"scalar mismatch",
			42.0,
			43.0,
			false,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := e.ValidateOne(model.ValidationItem{
				CorrelationID: "c1", Actual: tc.actual, Expected: tc.expected,
			})
			if got.Valid != tc.valid {
				t.Errorf("valid: got %v want %v (%s)", got.Valid, tc.valid, got.Message)
			}
			if got.CorrelationID != "c1" {
				t.Errorf("correlation id: %q", got.CorrelationID)
			}
		})
	}
}

func TestValidateOne_Idempotent(t *testing.T) {
	e := testEngine()
	item := model.ValidationItem{
		CorrelationID: "c1",
		Actual:        map[string]any{"a": 1.0, "b": 2.0},
		Expected:      map[string]any{"a": 1.0, "b": 3.0},
	}

	first := e.ValidateOne(item)
	second := e.ValidateOne(item)
	if first.Valid != second.Valid {
		t.Error("repeated validation must give the same verdict")
	}
	if (first.Confidence == nil) != (second.Confidence == nil) {
		t.Fatal("confidence presence must be stable")
	}
	if first.Confidence != nil && *first.Confidence != *second.Confidence {
		t.Errorf("confidence drifted: %v vs %v", *first.Confidence, *second.Confidence)
	}
}

func TestValidateOne_Confidence(t *testing.T) {
	e := testEngine()

	// Two of three leaf fields match.
	got := e.ValidateOne(model.ValidationItem{
		Actual:   map[string]any{"a": 1.0, "b": 2.0, "c": 9.0},
		Expected: map[string]any{"a": 1.0, "b": 2.0, "c": 3.0},
	})
	if got.Valid {
		t.Fatal("expected invalid")
	}
	if got.Confidence == nil {
		t.Fatal("structured mismatch must carry confidence")
	}
	if want := 2.0 / 3.0; math.Abs(*got.Confidence-want) > 1e-9 {
		t.Errorf("confidence: got %v want %v", *got.Confidence, want)
	}
}

func TestValidateOne_ConfidenceUnionOfPaths(t *testing.T) {
	e := testEngine()

	// One shared matching leaf plus one extra leaf on each side: 1 of 3.
	got := e.ValidateOne(model.ValidationItem{
		Actual:   map[string]any{"a": 1.0, "extra": true},
		Expected: map[string]any{"a": 1.0, "missing": false},
	})
	if got.Confidence == nil {
		t.Fatal("expected confidence")
	}
	if want := 1.0 / 3.0; math.Abs(*got.Confidence-want) > 1e-9 {
		t.Errorf("confidence: got %v want %v", *got.Confidence, want)
	}
}

func TestValidateOne_ScalarMismatchHasNoConfidence(t *testing.T) {
	e := testEngine()
	got := e.ValidateOne(model.ValidationItem{Actual: 1.0, Expected: 2.0})
	if got.Valid {
		t.Fatal("expected invalid")
	}
	if got.Confidence != nil {
		t.Error("scalar comparisons are strict, no partial credit")
	}
}

func TestValidateOne_NoExpected(t *testing.T) {
	e := testEngine()
	got := e.ValidateOne(model.ValidationItem{Actual: map[string]any{"a": 1.0}})
	if got.Valid {
		t.Fatal("missing expected output cannot be valid")
	}
	if got.Message == "" {
		t.Error("result must explain the failure")
	}
}

func TestValidateOne_MalformedActual(t *testing.T) {
	e := testEngine()
	got := e.ValidateOne(model.ValidationItem{
		Actual:   map[string]any{"bad": func() {}}, // not JSON-encodable
		Expected: map[string]any{"a": 1.0},
	})
	if got.Valid {
		t.Fatal("malformed actual cannot be valid")
	}
	if got.Message == "" {
		t.Error("result must explain the failure")
	}
}

func TestFieldSimilarity_NumericLeavesUseTolerance(t *testing.T) {
	e := testEngine()
	got := e.fieldSimilarity(
		map[string]any{"a": 5.0000001, "b": "x"},
		map[string]any{"a": 5.0, "b": "y"},
	)
	if want := 0.5; got != want {
		t.Errorf("similarity: got %v want %v", got, want)
	}
}
