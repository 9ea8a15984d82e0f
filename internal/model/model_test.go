package model

import (
	"errors"
	"strings"
	"testing"
)

func TestDocument_Clone(t *testing.T) {
	orig := Document{"a": 1.0, "nested": map[string]any{"b": "x"}}
	clone := orig.Clone()

	clone["a"] = 2.0
	clone["nested"].(map[string]any)["b"] = "y"

	if orig["a"] != 1.0 {
		t.Error("clone must not alias top-level values")
	}
	if orig["nested"].(map[string]any)["b"] != "x" {
		t.Error("clone must not alias nested values")
	}
}

func TestDocument_CloneNil(t *testing.T) {
	var d Document
	if d.Clone() != nil {
		t.Error("nil document clones to nil")
	}
}

func TestGenerationFailure_Retryable(t *testing.T) {
	cases := []struct {
		kind GenerationFailureKind
		want bool
	}{
		{GenerationTimeout, true},
		{GenerationTransport, true},
		{GenerationTerminal, false},
	}
	for _, tc := range cases {
		f := &GenerationFailure{Kind: tc.kind}
		if f.Retryable() != tc.want {
			t.Errorf("%s: retryable = %v, want %v", tc.kind, f.Retryable(), tc.want)
		}
	}
}

func TestGenerationFailure_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	f := &GenerationFailure{Kind: GenerationTransport, TaskID: "t1", Version: 2, Message: "m", Err: cause}

	if !errors.Is(f, cause) {
		t.Error("failure must unwrap to its cause")
	}
	msg := f.Error()
	if msg == "" {
		t.Fatal("empty error string")
	}
	for _, want := range []string{"transport", "t1", "v2", "connection reset"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
}
