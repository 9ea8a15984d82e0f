package model

import "fmt"

// GenerationFailureKind is a stable classification for generation failures.
// Transient kinds (timeout, transport) may be retried by the orchestrator;
// terminal failures are surfaced immediately.
type GenerationFailureKind string

const (
	GenerationTimeout   GenerationFailureKind = "timeout"
	GenerationTransport GenerationFailureKind = "transport"
	GenerationTerminal  GenerationFailureKind = "terminal"
)

// GenerationFailure is a typed failure from the generation orchestrator.
type GenerationFailure struct {
	Kind    GenerationFailureKind
	TaskID  string
	Version int
	Message string
	Err     error // underlying transport error, if any
}

func (f *GenerationFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("generation %s for %s v%d: %s: %v", f.Kind, f.TaskID, f.Version, f.Message, f.Err)
	}
	return fmt.Sprintf("generation %s for %s v%d: %s", f.Kind, f.TaskID, f.Version, f.Message)
}

func (f *GenerationFailure) Unwrap() error { return f.Err }

// Retryable reports whether the orchestrator may retry this failure.
// Only transport-class failures (including per-attempt timeouts) retry;
// a collaborator that answered success=false is terminal.
func (f *GenerationFailure) Retryable() bool {
	return f.Kind == GenerationTimeout || f.Kind == GenerationTransport
}
