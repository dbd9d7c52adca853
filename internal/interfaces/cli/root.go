package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/tridirt/tridirt/internal/core/domain"
	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
	configinfra "github.com/tridirt/tridirt/internal/infrastructure/config"
	"github.com/tridirt/tridirt/internal/infrastructure/terminal"
	"github.com/tridirt/tridirt/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// ManagerName is the name of the management command
const ManagerName = "tridirt"

// Streams are the standard streams commands read from and write to
type Streams struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer
}

// DefaultStreams returns the process's own stdio
func DefaultStreams() Streams {
	return Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr}
}

// globalFlags are the persistent flags of the management command
type globalFlags struct {
	configPath  string
	installDir  string
	logLevel    string
	installMode string
	yes         bool
}

// CLIContainer carries what every command needs to build its dependencies
// and report an exit code.
type CLIContainer struct {
	Streams  Streams
	ExitCode int

	flags     globalFlags
	newDeps   func(ctx context.Context, opts di.Options) (*di.Container, error)
	container *di.Container
}

// NewCLIContainer creates a container for one command invocation
func NewCLIContainer(streams Streams) *CLIContainer {
	return &CLIContainer{Streams: streams, newDeps: di.NewContainer}
}

// Deps builds the dependency container on first use, applying flag overrides.
func (c *CLIContainer) Deps(ctx context.Context) (*di.Container, error) {
	if c.container != nil {
		return c.container, nil
	}
	overrides, flagNames := c.flags.overrides()
	container, err := c.newDeps(ctx, di.Options{
		Config: configinfra.Options{
			ConfigPath:    c.flags.configPath,
			Overrides:     overrides,
			OverrideFlags: flagNames,
		},
		UserAgent: UserAgent(),
		Stdin:     c.Streams.In,
		Stdout:    c.Streams.Out,
		Stderr:    c.Streams.Err,
	})
	if err != nil {
		return nil, err
	}
	c.container = container
	return container, nil
}

// overrides returns the flag values keyed like the config file, and the
// flag behind each key where it is not simply the key with dashes.
func (f globalFlags) overrides() (map[string]interface{}, map[string]string) {
	values := make(map[string]interface{})
	flags := make(map[string]string)
	if f.installDir != "" {
		values[configdomain.KeyInstallDir] = f.installDir
	}
	if f.logLevel != "" {
		values[configdomain.KeyLogLevel] = f.logLevel
	}
	if f.yes {
		values[configdomain.KeyInstallMode] = string(configdomain.InstallModeAuto)
		flags[configdomain.KeyInstallMode] = "--yes"
	}
	if f.installMode != "" {
		values[configdomain.KeyInstallMode] = f.installMode
		delete(flags, configdomain.KeyInstallMode)
	}
	return values, flags
}

// NewRootCommand creates the tridirt management command
func NewRootCommand(container *CLIContainer) *cobra.Command {
	var rootCmd = &cobra.Command{
		Use:   ManagerName,
		Short: "Install and run the TrID file identifier",
		Long: `tridirt manages a local installation of TrID, the file type identifier by
Marco Pontello, and of its definitions database.

The trid, tridscan and triddefspack commands install what they need on first
use and then run the tool with your arguments. This command installs, updates,
inspects and removes those packages explicitly.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set custom version template
	rootCmd.SetVersionTemplate(versionText())

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&container.flags.configPath, "config", "", "Config file path (default is $HOME/.config/tridirt/config.yaml)")
	flags.StringVar(&container.flags.installDir, "install-dir", "", "Install directory (default is $HOME/.trid)")
	flags.StringVar(&container.flags.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&container.flags.installMode, "install-mode", "", "What to do when a tool is missing: prompt, auto or never")
	flags.BoolVarP(&container.flags.yes, "yes", "y", false, "Install missing packages without asking")

	// Add subcommands
	rootCmd.AddCommand(NewInstallCommand(container))
	rootCmd.AddCommand(NewUpdateCommand(container))
	rootCmd.AddCommand(NewUninstallCommand(container))
	rootCmd.AddCommand(NewStatusCommand(container))
	rootCmd.AddCommand(NewPathCommand(container))
	rootCmd.AddCommand(NewRunCommand(container))
	rootCmd.AddCommand(NewConfigCommand(container))
	rootCmd.AddCommand(NewVersionCommand(container))

	return rootCmd
}

// UserAgent identifies the dispatcher in download requests
func UserAgent() string {
	return fmt.Sprintf("%s/%s (%s/%s)", ManagerName, Version, runtime.GOOS, runtime.GOARCH)
}

func versionText() string {
	return fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the management command with args and returns the process exit code.
func Execute(ctx context.Context, streams Streams, args []string) int {
	container := NewCLIContainer(streams)
	rootCmd := NewRootCommand(container)
	if args == nil {
		// cobra falls back to os.Args for a nil slice
		args = []string{}
	}
	rootCmd.SetArgs(args)
	rootCmd.SetIn(streams.In)
	rootCmd.SetOut(streams.Out)
	rootCmd.SetErr(streams.Err)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		reportError(streams.Err, ManagerName, err)
		if container.ExitCode == domain.ExitOK {
			container.ExitCode = domain.ExitCode(err)
		}
	}
	return container.ExitCode
}

// reportError prints a one-line error naming the failed step
func reportError(w io.Writer, prog string, err error) {
	f, _ := w.(*os.File)
	interactive := f != nil && terminal.IsTerminal(f)
	terminal.NewConsoleWithWriter(w, interactive).Error(prog, err)
}
