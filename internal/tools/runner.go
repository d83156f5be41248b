package tools

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process is
// killed on context expiry.
const waitDelay = time.Second

// Command is one process invocation.
type Command struct {
	Name  string
	Args  []string
	Env   []string
	Stdin []byte
}

// Output is the captured result of a finished process.
type Output struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int32
}

// CommandRunner abstracts process execution for runtime adapters.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner executes commands on the local host. Env entries are appended to
// the current process environment.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, c Command) (Output, error) {
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Env = append(os.Environ(), c.Env...)
	if c.Stdin != nil {
		cmd.Stdin = bytes.NewReader(c.Stdin)
	}
	cmd.WaitDelay = waitDelay
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	out := Output{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err == nil {
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		out.ExitCode = int32(exitErr.ExitCode())
		return out, err
	}

	out.ExitCode = 1
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		out.ExitCode = 127
	}
	return out, err
}

// RunnerFunc adapts a function into a CommandRunner.
type RunnerFunc func(ctx context.Context, cmd Command) (Output, error)

func (f RunnerFunc) Run(ctx context.Context, cmd Command) (Output, error) {
	return f(ctx, cmd)
}
