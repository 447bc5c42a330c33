package install

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the captured outcome of a child process.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner is an interface for running external commands.
type CommandRunner interface {
	// Run waits for the command to exit. A non-zero exit is reported in
	// Result.ExitCode; the error is reserved for failures to start or wait.
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// DefaultCommandRunner uses os/exec to run commands.
type DefaultCommandRunner struct{}

func (DefaultCommandRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	if err != nil {
		res.ExitCode = -1
		return res, err
	}
	return res, nil
}
