package domain

import (
	"errors"
	"fmt"
	"os"
)

var (
	ErrUnknownPackage      = errors.New("unknown package")
	ErrInstallDeclined     = errors.New("installation declined")
	ErrDownloadFailed      = errors.New("download failed")
	ErrVerificationFailed  = errors.New("verification failed")
	ErrInstallWriteFailed  = errors.New("install write failed")
	ErrExecutionFailed     = errors.New("execution failed")
	ErrLockTimeout         = errors.New("timed out waiting for install lock")
	ErrNotRunnable         = errors.New("package has no entrypoint")
	ErrInterpreterNotFound = errors.New("interpreter not found")
)

// Step names the stage of a dispatch that failed
type Step string

const (
	StepCheck    Step = "check"
	StepDownload Step = "download"
	StepVerify   Step = "verify"
	StepInstall  Step = "install"
	StepExecute  Step = "execute"
)

// StepError wraps a failure with the step and package it happened in
type StepError struct {
	Step    Step
	Package string
	Err     error
}

func (e *StepError) Error() string {
	if e.Package == "" {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Step, e.Package, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError wraps err, returning nil for a nil err.
func NewStepError(step Step, pkg string, err error) error {
	if err == nil {
		return nil
	}
	var se *StepError
	if errors.As(err, &se) && se.Step == step && se.Package == pkg {
		return err
	}
	return &StepError{Step: step, Package: pkg, Err: err}
}

// FailedStep returns the step recorded in err, if any.
func FailedStep(err error) (Step, bool) {
	var se *StepError
	if errors.As(err, &se) {
		return se.Step, true
	}
	return "", false
}

const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitNotExecutable = 126
	ExitNotFound      = 127
	exitSignalBase    = 128
)

// ExitCode maps a dispatcher error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	if step, ok := FailedStep(err); ok && step == StepExecute {
		switch {
		case errors.Is(err, os.ErrPermission):
			return ExitNotExecutable
		case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrInterpreterNotFound):
			return ExitNotFound
		}
	}
	return ExitFailure
}

// SignalExitCode is the shell convention for a child terminated by signal signo.
func SignalExitCode(signo int) int {
	return exitSignalBase + signo
}
