package cli

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/tridirt/tridirt/internal/core/domain"
)

// NewStatusCommand creates the status command
func NewStatusCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which packages are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}
			installations, err := deps.Bootstrap.Status()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Install directory: %s\n", deps.Bootstrap.InstallDir())
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), renderStatus(installations))
			return nil
		},
	}
}

func renderStatus(installations []domain.Installation) string {
	rows := make([][]string, 0, len(installations))
	for _, inst := range installations {
		installed, size, digest := "-", "-", "-"
		if r := inst.Record; r != nil {
			installed = humanize.Time(r.InstalledAt)
			size = humanize.Bytes(uint64(r.Size))
			digest = shortDigest(r.SHA256)
		}
		rows = append(rows, []string{
			inst.Package.Name,
			string(inst.State()),
			installed,
			size,
			digest,
			inst.Path,
		})
	}

	header := lipgloss.NewStyle().Bold(true)
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PACKAGE", "STATE", "INSTALLED", "SIZE", "SHA256", "PATH").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return header.Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	if digest == "" {
		return "-"
	}
	return digest
}

// NewPathCommand creates the path command
func NewPathCommand(container *CLIContainer) *cobra.Command {
	return &cobra.Command{
		Use:   "path <package>",
		Short: "Print where a package is installed, installing it if needed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := container.Deps(cmd.Context())
			if err != nil {
				return err
			}
			path, err := deps.Bootstrap.EnsureInstalled(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
