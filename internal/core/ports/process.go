package ports

import (
	"context"

	"github.com/tridirt/tridirt/internal/core/domain"
)

// ProcessExecutor runs a child process to completion
type ProcessExecutor interface {
	// Run starts cmd with the dispatcher's stdio, forwards termination signals
	// and returns the child's exit code. A non-zero exit is not an error.
	Run(ctx context.Context, cmd domain.Command) (int, error)
}

// InterpreterResolver finds the command line used to run scripts of a kind
type InterpreterResolver interface {
	Resolve(kind string) ([]string, error)
}
