package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tridirt/tridirt/internal/core/domain"
)

const defaultPackage = "trid"

// NewInstallCommand creates the install command
func NewInstallCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "install [package...]",
		Short: "Install packages that are not installed yet",
		Long: `Install the named packages and everything they require. Packages that are
already present are left alone. Without arguments, TrID is installed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{defaultPackage}
			}

			records, err := deps.Bootstrap.Install(cmd.Context(), args, false)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				deps.Console.Success("Everything is already installed in %s", deps.Bootstrap.InstallDir())
			}
			return nil
		},
	}
}

// NewUninstallCommand creates the uninstall command
func NewUninstallCommand(container *CLIContainer) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "uninstall [package...]",
		Short: "Remove installed packages",
		Long: `Remove the files recorded for the named packages from the install directory.
Use --all to remove every installed package.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return fmt.Errorf("name the packages to remove or pass --all")
			}
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}

			names := args
			if all {
				if names, err = installedNames(deps.Bootstrap.Status()); err != nil {
					return err
				}
			}
			if len(names) == 0 {
				deps.Console.Success("Nothing to remove")
				return nil
			}

			if err := deps.Bootstrap.Uninstall(cmd.Context(), names); err != nil {
				return err
			}
			for _, name := range names {
				deps.Console.Success("Removed %s", name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "Remove every installed package")
	return cmd
}

// installedNames returns the packages present in the install directory
func installedNames(installations []domain.Installation, err error) ([]string, error) {
	if err != nil {
		return nil, err
	}
	var names []string
	for _, inst := range installations {
		if inst.Present {
			names = append(names, inst.Package.Name)
		}
	}
	return names, nil
}
