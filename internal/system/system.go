package system

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

type Runner interface {
	Run(ctx context.Context, cmd string, args ...string) (stdout, stderr string, err error)
}

type NoopRunner struct{}

func (NoopRunner) Run(ctx context.Context, cmd string, args ...string) (string, string, error) {
	return "", "", nil
}

// ShellRunner executes commands directly, resolving them through PATH.
// It returns stdout, stderr, and an error if the command exits non-zero.
type ShellRunner struct{}

func (ShellRunner) Run(ctx context.Context, cmd string, args ...string) (string, string, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	var outBuf, errBuf bytes.Buffer
	c.Stdout = &outBuf
	c.Stderr = &errBuf
	err := c.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return outBuf.String(), errBuf.String(), fmt.Errorf("exit %d: %w", exitErr.ExitCode(), err)
		}
		return outBuf.String(), errBuf.String(), err
	}
	return outBuf.String(), errBuf.String(), nil
}

// CommandOutput runs shell command lines (reload_cmd, cmd[] labels) through
// `sh -c` and returns their stdout.
type CommandOutput struct {
	Runner Runner
	Shell  string
}

func (c CommandOutput) Output(ctx context.Context, command string) (string, error) {
	runner := c.Runner
	if runner == nil {
		runner = ShellRunner{}
	}
	shell := c.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	stdout, stderr, err := runner.Run(ctx, shell, "-c", command)
	if err != nil {
		if s := strings.TrimSpace(stderr); s != "" {
			return stdout, fmt.Errorf("command %q failed: %w: %s", command, err, s)
		}
		return stdout, fmt.Errorf("command %q failed: %w", command, err)
	}
	return stdout, nil
}
