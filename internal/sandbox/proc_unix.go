//go:build !windows

package sandbox

import (
	"errors"
	"fmt"
	"os/exec"
	"syscall"

	"loopai/internal/config"
	"loopai/internal/model"
)

// setProcGroup places the child in its own process group so the whole tree
// can be terminated at once.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcGroup terminates the child and everything it spawned.
func killProcGroup(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	pid := cmd.Process.Pid
	if pid <= 0 {
		return
	}
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid > 0 {
		// Negative PGID targets the full process group (interpreter + any
		// children it forked).
		_ = syscall.Kill(-pgid, syscall.SIGKILL)
		return
	}
	_ = cmd.Process.Kill()
}

// wrapWithLimits builds the interpreter invocation behind a shell that
// applies CPU and address-space rlimits before exec'ing the runtime. The
// limits bind the whole process group; exceeding them surfaces as a signal
// exit classified by limitOutcome.
func wrapWithLimits(profile config.RuntimeProfile, programPath string, cpuSeconds, memoryMB int) (string, []string) {
	script := fmt.Sprintf(`ulimit -t %d 2>/dev/null; ulimit -v %d 2>/dev/null; exec "$@"`,
		cpuSeconds, memoryMB*1024)
	args := []string{"-c", script, "loopai-sandbox", profile.Command}
	args = append(args, profile.Args...)
	args = append(args, programPath)
	return "/bin/sh", args
}

// limitOutcome classifies signal-type exits caused by resource ceilings.
// SIGXCPU is the CPU rlimit; SIGKILL here is the kernel reclaiming memory
// (the sandbox's own timeout kill is handled before this point).
func limitOutcome(runErr error) (model.ExecutionOutcome, bool) {
	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		return "", false
	}
	status, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok || !status.Signaled() {
		return "", false
	}
	switch status.Signal() {
	case syscall.SIGXCPU, syscall.SIGKILL:
		return model.OutcomeResourceLimit, true
	default:
		return "", false
	}
}
