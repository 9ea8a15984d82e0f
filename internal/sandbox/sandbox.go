// Package sandbox runs generated program artifacts against single inputs in
// an isolated child process. The contract with the artifact is fixed: one
// JSON document on stdin, exactly one JSON document on stdout, bounded by a
// hard wall-clock timeout and CPU/memory ceilings. The artifact is an opaque
// black box behind that contract, never an in-process callable.
//
// Every call produces exactly one ExecutionRecord, and no child process
// survives the call on any exit path, including caller cancellation.
package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"loopai/internal/config"
	"loopai/internal/logging"
	"loopai/internal/metrics"
	"loopai/internal/model"
)

// stderrSnippetLen bounds how much captured stderr ends up in records.
const stderrSnippetLen = 512

// reapGrace is how long Wait may linger after the kill before abandoning
// stuck pipe copies.
const reapGrace = 2 * time.Second

// Sandbox executes artifacts under the configured resource bounds. Every
// invocation is independent; the zero concurrency assumptions make it safe
// for concurrent use.
type Sandbox struct {
	cfg    config.SandboxConfig
	logger *slog.Logger
	now    func() time.Time
}

// New creates a sandbox from configuration.
func New(cfg config.SandboxConfig, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sandbox{cfg: cfg, logger: logger, now: time.Now}
}

// Execute runs the artifact against one input. It always returns a record;
// failures are encoded in the record's outcome, never as a Go error, so the
// caller can apply its own retry policy.
func (s *Sandbox) Execute(ctx context.Context, artifact *model.ProgramArtifact, input model.Document, correlationID string) *model.ExecutionRecord {
	start := s.now()

	record := func(outcome model.ExecutionOutcome, output model.Document, errMsg string) *model.ExecutionRecord {
		latency := float64(s.now().Sub(start).Microseconds()) / 1000
		metrics.Executions.WithLabelValues(string(outcome)).Inc()
		metrics.ExecutionLatency.Observe(latency / 1000)
		return &model.ExecutionRecord{
			TaskID:        artifact.TaskID,
			Version:       artifact.Version,
			Input:         input,
			Output:        output,
			Outcome:       outcome,
			Error:         errMsg,
			LatencyMS:     latency,
			CorrelationID: correlationID,
			ExecutedAt:    start.UTC(),
		}
	}

	profile, ok := s.cfg.Runtimes[artifact.Language]
	if !ok {
		return record(model.OutcomeRuntimeCrash, nil,
			fmt.Sprintf("no runtime profile for language %q", artifact.Language))
	}

	dir, err := os.MkdirTemp("", "loopai-exec-")
	if err != nil {
		return record(model.OutcomeRuntimeCrash, nil, fmt.Sprintf("create workdir: %v", err))
	}
	defer os.RemoveAll(dir)

	programPath := filepath.Join(dir, "program"+sourceExt(artifact.Language))
	if err := os.WriteFile(programPath, []byte(artifact.Source), 0o600); err != nil {
		return record(model.OutcomeRuntimeCrash, nil, fmt.Sprintf("write program: %v", err))
	}

	stdin, err := json.Marshal(input)
	if err != nil {
		return record(model.OutcomeRuntimeCrash, nil, fmt.Sprintf("encode input: %v", err))
	}

	timeout := time.Duration(s.cfg.TimeoutMS) * time.Millisecond
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	name, args := wrapWithLimits(profile, programPath, s.cfg.CPUSeconds, s.cfg.MemoryLimitMB)
	cmd := exec.CommandContext(execCtx, name, args...)
	cmd.Dir = dir
	// Minimal environment: nothing that grants network proxies, interpreter
	// plugins or caller secrets leaks into the child.
	cmd.Env = []string{"PATH=" + os.Getenv("PATH"), "HOME=" + dir}
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcGroup(cmd)
	cmd.Cancel = func() error {
		killProcGroup(cmd)
		return os.ErrProcessDone
	}
	cmd.WaitDelay = reapGrace

	runErr := cmd.Run()

	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		s.logger.WarnContext(ctx, "execution timed out",
			"task", artifact.TaskID, "version", artifact.Version, "timeout", timeout)
		return record(model.OutcomeTimeout, nil,
			fmt.Sprintf("execution exceeded %s wall clock", timeout))
	case execCtx.Err() != nil:
		// Caller-initiated cancellation. The process group is already dead.
		return record(model.OutcomeRuntimeCrash, nil, "execution canceled by caller")
	}

	if runErr != nil {
		if outcome, ok := limitOutcome(runErr); ok {
			return record(outcome, nil,
				fmt.Sprintf("resource limit exceeded: %v", runErr))
		}
		return record(model.OutcomeRuntimeCrash, nil,
			fmt.Sprintf("runtime exited: %v: %s", runErr, snippet(stderr.Bytes())))
	}

	output, err := parseSingleDocument(stdout.Bytes())
	if err != nil {
		return record(model.OutcomeMalformedOutput, nil, err.Error())
	}
	return record(model.OutcomeSuccess, output, "")
}

// parseSingleDocument decodes stdout as exactly one JSON document. Missing
// output, undecodable output and trailing content are all malformed — there
// is no partial success.
func parseSingleDocument(raw []byte) (model.Document, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("no output document on stdout")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("output is not valid JSON: %v: %s", err, snippet(trimmed))
	}
	if dec.More() {
		return nil, fmt.Errorf("more than one document on stdout")
	}

	switch v := value.(type) {
	case map[string]any:
		return model.Document(v), nil
	default:
		// Scalar and array outputs are carried under a fixed key so the
		// record's output is always a document.
		return model.Document{"result": v}, nil
	}
}

func sourceExt(language string) string {
	switch {
	case strings.HasPrefix(language, "python"):
		return ".py"
	case language == "javascript", language == "node":
		return ".js"
	case language == "sh", language == "shell":
		return ".sh"
	default:
		return ".src"
	}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrSnippetLen {
		s = s[:stderrSnippetLen] + "..."
	}
	return s
}
