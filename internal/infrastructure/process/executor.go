// Package process runs dispatched tools as child processes that share the
// dispatcher's terminal.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"

	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// Executor implements ports.ProcessExecutor
type Executor struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	env    []string
	logger logrus.FieldLogger
}

// NewExecutor creates an executor wired to the dispatcher's own stdio and environment
func NewExecutor(logger logrus.FieldLogger) *Executor {
	return &Executor{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		env:    os.Environ(),
		logger: logger,
	}
}

// NewExecutorWithIO creates an executor with explicit streams and base environment.
// A nil env inherits the current environment.
func NewExecutorWithIO(stdin io.Reader, stdout, stderr io.Writer, env []string, logger logrus.FieldLogger) *Executor {
	if env == nil {
		env = os.Environ()
	}
	return &Executor{stdin: stdin, stdout: stdout, stderr: stderr, env: env, logger: logger}
}

// Run starts cmd, waits for it and returns its exit code. Termination signals
// received meanwhile are relayed to the child; a child killed by a signal
// yields 128+signal. Cancelling ctx does not kill the child.
func (e *Executor) Run(_ context.Context, cmd domain.Command) (int, error) {
	//nolint:gosec // G204: running the requested tool is the whole point
	execCmd := exec.Command(cmd.Executable(), cmd.Args()...)
	execCmd.Stdin = e.stdin
	execCmd.Stdout = e.stdout
	execCmd.Stderr = e.stderr
	execCmd.Env = e.env

	// Interactive signals reach the child through the terminal's process group,
	// so the dispatcher only has to outlive them.
	relay := make(chan os.Signal, 4)
	signal.Notify(relay, append(append([]os.Signal(nil), forwardedSignals...), interactiveSignals...)...)
	defer signal.Stop(relay)

	e.logger.WithField("command", cmd.String()).Debug("starting child process")

	if err := execCmd.Start(); err != nil {
		return domain.ExitFailure, classifyStartError(cmd.Executable(), err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			select {
			case sig := <-relay:
				if !isForwarded(sig) {
					continue
				}
				e.logger.WithField("signal", sig.String()).Debug("forwarding signal to child")
				if err := execCmd.Process.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
					e.logger.WithError(err).Warn("failed to forward signal")
				}
			case <-done:
				return
			}
		}
	}()

	err := execCmd.Wait()
	if err == nil {
		return domain.ExitOK, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitCode(exitErr.ProcessState)
		e.logger.WithField("exit_code", code).Debug("child process exited")
		return code, nil
	}
	return domain.ExitFailure, fmt.Errorf("%w: %v", domain.ErrExecutionFailed, err)
}

func isForwarded(sig os.Signal) bool {
	for _, s := range forwardedSignals {
		if s == sig {
			return true
		}
	}
	return false
}

// classifyStartError keeps the not-found and permission causes visible to
// errors.Is so they map to exit codes 127 and 126.
func classifyStartError(executable string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound):
		return fmt.Errorf("%w: %s: %w", domain.ErrExecutionFailed, executable, os.ErrNotExist)
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return fmt.Errorf("%w: %w", domain.ErrExecutionFailed, err)
	default:
		return fmt.Errorf("%w: failed to start %s: %v", domain.ErrExecutionFailed, executable, err)
	}
}

var _ ports.ProcessExecutor = (*Executor)(nil)
