// Package validate scores actual program outputs against expected outputs.
// Comparison is structural: same keys, recursively equal values, with a
// small configurable tolerance on numeric leaves. Batch validation is
// per-item fault-isolated and preserves request order exactly.
package validate

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"loopai/internal/config"
	"loopai/internal/logging"
	"loopai/internal/model"
)

// Engine performs output comparison. It never mutates tasks or artifacts;
// validating the same item twice yields the same result.
type Engine struct {
	tolerance float64
	workers   int
	logger    *slog.Logger
}

// NewEngine creates a validation engine.
func NewEngine(cfg config.ValidateConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{
		tolerance: cfg.NumericTolerance,
		workers:   cfg.BatchWorkers,
		logger:    logger,
	}
}

// ValidateOne scores a single item. Processing errors (malformed documents,
// comparison panics) surface as an invalid result with a message, never as
// a Go error — the item is the failure scope.
func (e *Engine) ValidateOne(item model.ValidationItem) (result model.ValidationResult) {
	result = model.ValidationResult{CorrelationID: item.CorrelationID}
	defer func() {
		if r := recover(); r != nil {
			result.Valid = false
			result.Confidence = nil
			result.Message = fmt.Sprintf("comparison error: %v", r)
		}
	}()

	actual, err := normalize(item.Actual)
	if err != nil {
		result.Message = fmt.Sprintf("malformed actual output: %v", err)
		return result
	}
	expected, err := normalize(item.Expected)
	if err != nil {
		result.Message = fmt.Sprintf("malformed expected output: %v", err)
		return result
	}
	if expected == nil {
		result.Message = "no expected output to compare against"
		return result
	}

	if cmp.Equal(expected, actual, cmpopts.EquateApprox(0, e.tolerance)) {
		result.Valid = true
		result.Message = "outputs match"
		return result
	}

	result.Message = "outputs differ"
	actualDoc, aOK := actual.(map[string]any)
	expectedDoc, eOK := expected.(map[string]any)
	if aOK && eOK {
		// Partial-similarity metric applies only to structured documents;
		// scalar mismatches stay a strict boolean verdict.
		confidence := e.fieldSimilarity(actualDoc, expectedDoc)
		result.Confidence = &confidence
	}
	return result
}

// normalize canonicalizes a value through a JSON round trip so comparisons
// see the wire types (float64 numbers, map[string]any objects) regardless
// of how the caller built the value.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// fieldSimilarity is the confidence metric: the fraction of matching leaf
// fields over the union of leaf paths of both documents. Numeric leaves
// match within the engine tolerance; a path present on only one side counts
// as a mismatch.
func (e *Engine) fieldSimilarity(actual, expected map[string]any) float64 {
	actualLeaves := map[string]any{}
	expectedLeaves := map[string]any{}
	collectLeaves("", actual, actualLeaves)
	collectLeaves("", expected, expectedLeaves)

	union := map[string]struct{}{}
	for path := range actualLeaves {
		union[path] = struct{}{}
	}
	for path := range expectedLeaves {
		union[path] = struct{}{}
	}
	if len(union) == 0 {
		return 0
	}

	matching := 0
	for path := range union {
		av, aOK := actualLeaves[path]
		ev, eOK := expectedLeaves[path]
		if aOK && eOK && e.leafEqual(av, ev) {
			matching++
		}
	}
	return float64(matching) / float64(len(union))
}

func (e *Engine) leafEqual(a, b any) bool {
	af, aNum := a.(float64)
	bf, bNum := b.(float64)
	if aNum && bNum {
		return math.Abs(af-bf) <= e.tolerance
	}
	if aNum != bNum {
		return false
	}
	return a == b
}

// collectLeaves flattens a JSON value into path → scalar leaf entries.
// Array elements use their index as a path segment.
func collectLeaves(prefix string, v any, out map[string]any) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			collectLeaves(joinPath(prefix, k), child, out)
		}
		if len(val) == 0 {
			out[prefix] = "{}" // marker so empty objects still count as a leaf
		}
	case []any:
		for i, child := range val {
			collectLeaves(joinPath(prefix, strconv.Itoa(i)), child, out)
		}
		if len(val) == 0 {
			out[prefix] = "[]"
		}
	default:
		out[prefix] = val
	}
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
