package cli

import (
	"github.com/spf13/cobra"
)

// NewUpdateCommand creates the update command
func NewUpdateCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "update [package...]",
		Short: "Download installed packages again",
		Long: `Download the named packages again and replace the installed copies. A failed
download leaves the installed copy untouched.

Without arguments every installed package is refreshed, or TrID is installed
when nothing is installed yet.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}

			names := args
			if len(names) == 0 {
				if names, err = installedNames(deps.Bootstrap.Status()); err != nil {
					return err
				}
			}
			if len(names) == 0 {
				names = []string{defaultPackage}
			}

			records, err := deps.Bootstrap.Install(cmd.Context(), names, true)
			if err != nil {
				return err
			}
			deps.Console.Success("Updated %d package(s)", len(records))
			return nil
		},
	}
}
