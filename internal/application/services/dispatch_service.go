package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// Installer resolves a package to its installed marker path
type Installer interface {
	EnsureInstalled(ctx context.Context, name string) (string, error)
}

// DispatchService runs an installed tool with the caller's arguments
type DispatchService struct {
	catalog      domain.Catalog
	installer    Installer
	interpreters ports.InterpreterResolver
	executor     ports.ProcessExecutor
	logger       logrus.FieldLogger
}

// NewDispatchService creates a new dispatch service
func NewDispatchService(
	catalog domain.Catalog,
	installer Installer,
	interpreters ports.InterpreterResolver,
	executor ports.ProcessExecutor,
	logger logrus.FieldLogger,
) *DispatchService {
	return &DispatchService{
		catalog:      catalog,
		installer:    installer,
		interpreters: interpreters,
		executor:     executor,
		logger:       logger,
	}
}

// Dispatch ensures the named tool is installed, runs it with args verbatim and
// returns its exit code. A non-zero exit from the tool is not an error; the
// returned error describes a failure of the dispatcher itself and the code is
// the one to exit with.
func (s *DispatchService) Dispatch(ctx context.Context, name string, args []string) (int, error) {
	pkg, err := s.catalog.Lookup(name)
	if err != nil {
		err = domain.NewStepError(domain.StepCheck, name, err)
		return domain.ExitCode(err), err
	}
	if !pkg.Runnable() {
		err = domain.NewStepError(domain.StepCheck, name, fmt.Errorf("%w: %s", domain.ErrNotRunnable, name))
		return domain.ExitCode(err), err
	}

	path, err := s.installer.EnsureInstalled(ctx, name)
	if err != nil {
		return domain.ExitCode(err), err
	}

	cmd, err := s.buildCommand(pkg, path, args)
	if err != nil {
		err = domain.NewStepError(domain.StepExecute, name, err)
		return domain.ExitCode(err), err
	}

	s.logger.WithFields(logrus.Fields{"package": name, "command": cmd.String()}).Debug("dispatching")

	code, err := s.executor.Run(ctx, cmd)
	if err != nil {
		err = domain.NewStepError(domain.StepExecute, name, err)
		return domain.ExitCode(err), err
	}
	return code, nil
}

func (s *DispatchService) buildCommand(pkg domain.Package, path string, args []string) (domain.Command, error) {
	cmd, err := domain.NewCommand(path, args)
	if err != nil {
		return domain.Command{}, err
	}
	if pkg.Interpreter == "" {
		return cmd, nil
	}

	prefix, err := s.interpreters.Resolve(pkg.Interpreter)
	if err != nil {
		return domain.Command{}, err
	}
	return cmd.Prepend(prefix...), nil
}
