package cli

import (
	"context"

	"github.com/tridirt/tridirt/internal/core/domain"
)

func runDispatch(ctx context.Context, container *CLIContainer, tool string, args []string) error {
	deps, err := container.Deps(ctx)
	if err != nil {
		container.ExitCode = domain.ExitFailure
		return err
	}

	code, err := deps.Dispatch.Dispatch(ctx, tool, args)
	container.ExitCode = code
	return err
}

// ExecuteDispatcher runs tool with args and returns the exit code to leave with:
// the tool's own code, or a dispatcher failure code after printing the error.
//
// The thin binaries bypass cobra entirely: every argument, including words
// like "completion" or "help", belongs to the tool.
func ExecuteDispatcher(ctx context.Context, tool string, streams Streams, args []string) int {
	container := NewCLIContainer(streams)
	if err := runDispatch(ctx, container, tool, append([]string{}, args...)); err != nil {
		reportError(streams.Err, tool, err)
		if container.ExitCode == domain.ExitOK {
			container.ExitCode = domain.ExitCode(err)
		}
	}
	return container.ExitCode
}
