package supervisor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
)

// ProcessHandle exposes the streams and lifecycle of a spawned engine
// process. The supervisor is its exclusive owner.
type ProcessHandle interface {
	Stdout() io.Reader
	Stderr() io.Reader
	Signal(sig os.Signal) error
	Wait() (int, error)
	Pid() int
}

// Runner abstracts process spawning for testability.
type Runner interface {
	Start(ctx context.Context, name string, args ...string) (ProcessHandle, error)
}

// execRunner spawns real processes via os/exec.
type execRunner struct{}

// NewExecRunner returns the production process runner.
func NewExecRunner() Runner {
	return &execRunner{}
}

// Start launches the command with piped stdout and stderr.
func (r *execRunner) Start(ctx context.Context, name string, args ...string) (ProcessHandle, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &execHandle{cmd: cmd, stdout: stdout, stderr: stderr}, nil
}

// execHandle wraps one running exec.Cmd.
type execHandle struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser
}

// Stdout returns the process standard output stream.
func (h *execHandle) Stdout() io.Reader { return h.stdout }

// Stderr returns the process standard error stream.
func (h *execHandle) Stderr() io.Reader { return h.stderr }

// Signal forwards an OS signal to the process.
func (h *execHandle) Signal(sig os.Signal) error {
	if h.cmd.Process == nil {
		return errors.New("process not started")
	}
	return h.cmd.Process.Signal(sig)
}

// Wait blocks until process exit and returns the exit code.
func (h *execHandle) Wait() (int, error) {
	err := h.cmd.Wait()
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), nil
	}
	return -1, err
}

// Pid returns the OS process id.
func (h *execHandle) Pid() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}
