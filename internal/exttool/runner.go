package exttool

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"

	"go.uber.org/zap"
)

// Invocation is a fully resolved command line.
type Invocation struct {
	Program string
	Args    []string
	Dir     string
}

// Runner starts external tools with the user's terminal attached and waits
// for them to exit.
type Runner struct {
	Logger *zap.Logger

	// OnInvoke, when set, is called with every invocation before it starts.
	OnInvoke func(Invocation)

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// NewRunner returns a runner wired to the process's standard streams.
func NewRunner(logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		Logger: logger,
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

// Run executes inv and blocks until it exits. The context is only checked
// before the process starts; a running tool is never interrupted.
func (r *Runner) Run(ctx context.Context, inv Invocation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	log := r.logger().With(
		zap.String("program", inv.Program),
		zap.Strings("args", inv.Args),
	)
	log.Debug("invoking external tool")
	if r.OnInvoke != nil {
		r.OnInvoke(inv)
	}

	cmd := exec.Command(inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Stdin = r.Stdin
	cmd.Stdout = r.Stdout
	cmd.Stderr = r.Stderr

	if err := cmd.Start(); err != nil {
		log.Debug("external tool failed to start", zap.Error(err))
		return &FailedToExecuteError{Tool: inv.Program, Err: err}
	}

	err := cmd.Wait()
	if err == nil {
		log.Debug("external tool finished")
		return nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return &FailedToExecuteError{Tool: inv.Program, Err: err}
	}
	code := exitErr.ExitCode()
	log.Debug("external tool exited unsuccessfully", zap.Int("exit_code", code))
	if code < 0 {
		return &ToolAbortedError{ExitCode: code, Signaled: true}
	}
	return &ToolAbortedError{ExitCode: code}
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
