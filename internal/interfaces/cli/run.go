package cli

import (
	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command
func NewRunCommand(container *CLIContainer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <package> [--] [args...]",
		Short: "Run a tool like its own command would",
		Long: `Run an installed tool with the given arguments, installing it first when it is
missing. Everything after the package name goes to the tool; a leading "--" is
dropped.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs := args[1:]
			if len(toolArgs) > 0 && toolArgs[0] == "--" {
				toolArgs = toolArgs[1:]
			}
			return runDispatch(cmd.Context(), container, args[0], toolArgs)
		},
	}

	// Flags after the package name belong to the tool.
	cmd.Flags().SetInterspersed(false)
	return cmd
}
