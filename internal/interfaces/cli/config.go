package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
	"github.com/tridirt/tridirt/internal/interfaces/di"
)

// NewConfigCommand creates the config command
func NewConfigCommand(container *CLIContainer) *cobra.Command {
	var configCmd = &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Show the effective configuration and where each value comes from:
a command-line flag, a TRIDIRT_* environment variable, the config file or the
built-in default.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}
			printConfig(cmd.OutOrStdout(), deps)
			return nil
		},
	}

	configCmd.AddCommand(NewConfigPathCommand(container))
	return configCmd
}

// NewConfigPathCommand creates the config path command
func NewConfigPathCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), deps.Config.ConfigPath)
			return nil
		},
	}
}

func printConfig(w io.Writer, deps *di.Container) {
	snap := deps.Config.Snapshot

	_, _ = fmt.Fprintf(w, "Config file: %s\n\n", deps.Config.ConfigPath)
	for _, key := range snap.Keys() {
		if key == configdomain.KeyPackages {
			continue
		}
		entry := snap[key]
		source := entry.Source
		if entry.SourcePath != "" {
			source += " " + entry.SourcePath
		}
		_, _ = fmt.Fprintf(w, "%-17s %-40v (%s)\n", key+":", entry.Value, source)
	}

	_, _ = fmt.Fprintln(w, "\nPackages:")
	catalog := deps.Config.Catalog
	for _, name := range catalog.Names() {
		pkg := catalog[name]
		line := fmt.Sprintf("  %-13s %s", name, pkg.URL)
		if len(pkg.Requires) > 0 {
			line += " (requires " + strings.Join(pkg.Requires, ", ") + ")"
		}
		_, _ = fmt.Fprintln(w, line)
	}
}
