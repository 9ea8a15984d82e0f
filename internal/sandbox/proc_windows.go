//go:build windows

package sandbox

import (
	"os/exec"

	"loopai/internal/config"
	"loopai/internal/model"
)

func setProcGroup(cmd *exec.Cmd) {}

func killProcGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

// wrapWithLimits runs the runtime directly on Windows; rlimit-style CPU and
// memory ceilings are not available, so only the wall-clock timeout binds.
func wrapWithLimits(profile config.RuntimeProfile, programPath string, cpuSeconds, memoryMB int) (string, []string) {
	args := append([]string{}, profile.Args...)
	args = append(args, programPath)
	return profile.Command, args
}

func limitOutcome(runErr error) (model.ExecutionOutcome, bool) {
	return "", false
}
