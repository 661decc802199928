package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// ExecResult carries the outcome of one shell command.
type ExecResult struct {
	Stdout    string
	Stderr    string
	ExitCode  int
	TimedOut  bool
	Truncated bool
	Duration  time.Duration
}

// Executor runs shell commands with a hard wall-clock timeout. Commands run
// in their own process group so a timeout kills the whole tree, not just
// the shell.
type Executor struct {
	DefaultTimeout time.Duration
	MaxOutput      int
}

// Run executes command through bash -c in workingDir. A zero timeout falls
// back to DefaultTimeout. Timeouts and nonzero exits are reported in the
// result, not as errors; the error return covers spawn failures only.
func (e *Executor) Run(ctx context.Context, command, workingDir string, timeout time.Duration) (ExecResult, error) {
	if strings.TrimSpace(command) == "" {
		return ExecResult{}, fmt.Errorf("command is required")
	}

	if timeout <= 0 {
		timeout = e.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/bash", "-c", command)
	if workingDir != "" {
		cmd.Dir = workingDir
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()

	res := ExecResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			res.TimedOut = true
			res.ExitCode = -1
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
			}
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			res.ExitCode = exitErr.ExitCode()
		} else {
			return res, fmt.Errorf("execute command: %w", err)
		}
	}

	maxOutput := e.MaxOutput
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutput
	}
	var outTruncated, errTruncated bool
	res.Stdout, outTruncated = TruncateOutput(res.Stdout, maxOutput)
	res.Stderr, errTruncated = TruncateOutput(res.Stderr, maxOutput)
	res.Truncated = outTruncated || errTruncated

	return res, nil
}

// FormatExecResult renders a command outcome for the model. Sections are
// emitted only when non-empty so quiet successes stay short.
func FormatExecResult(res ExecResult) string {
	var b strings.Builder
	if res.Stdout != "" {
		fmt.Fprintf(&b, "Stdout:\n%s\n", res.Stdout)
	}
	if res.Stderr != "" {
		fmt.Fprintf(&b, "Stderr:\n%s\n", res.Stderr)
	}
	if res.ExitCode != 0 {
		fmt.Fprintf(&b, "Return code: %d\n", res.ExitCode)
	}
	if b.Len() == 0 {
		return "Command produced no output."
	}
	return b.String()
}
