// Package di wires the dispatcher's services from resolved configuration.
package di

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/application/services"
	configinfra "github.com/tridirt/tridirt/internal/infrastructure/config"
	"github.com/tridirt/tridirt/internal/infrastructure/download"
	"github.com/tridirt/tridirt/internal/infrastructure/install"
	"github.com/tridirt/tridirt/internal/infrastructure/logging"
	"github.com/tridirt/tridirt/internal/infrastructure/process"
	"github.com/tridirt/tridirt/internal/infrastructure/prompt"
	"github.com/tridirt/tridirt/internal/infrastructure/terminal"
	"github.com/tridirt/tridirt/internal/infrastructure/verify"
)

// Options configure container construction
type Options struct {
	Config    configinfra.Options
	UserAgent string

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// Container holds all application dependencies
type Container struct {
	// Configuration
	Config *configinfra.Resolved

	// Infrastructure
	Logger  *logrus.Logger
	Console *terminal.Console
	Store   *install.FileStore
	Lock    *install.FileLock

	// Application services
	Bootstrap *services.BootstrapService
	Dispatch  *services.DispatchService
}

// NewContainer loads configuration and wires every component
func NewContainer(ctx context.Context, opts Options) (*Container, error) {
	resolved, err := configinfra.Load(ctx, opts.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(resolved.Settings.LogLevel, opts.Stderr)
	if err != nil {
		return nil, err
	}

	c := &Container{Config: resolved, Logger: logger}
	c.initializeComponents(opts)

	logger.WithFields(logrus.Fields{
		"install_dir": resolved.Settings.InstallDir,
		"config":      resolved.ConfigPath,
	}).Debug("container initialized")
	return c, nil
}

// initializeComponents initializes all components with proper dependencies
func (c *Container) initializeComponents(opts Options) {
	settings := c.Config.Settings
	interactive := isTerminal(opts.Stdin) && isTerminal(opts.Stderr)

	// 1. Infrastructure
	c.Console = terminal.NewConsoleWithWriter(opts.Stderr, isTerminal(opts.Stderr))
	c.Store = install.NewFileStore(settings.InstallDir, c.Logger)
	c.Lock = install.NewFileLock(settings.InstallDir, settings.LockTimeout, settings.LockStaleAfter, c.Logger)

	// 2. Install pipeline
	c.Bootstrap = services.NewBootstrapService(services.BootstrapDependencies{
		Catalog:    c.Config.Catalog,
		Store:      c.Store,
		Locker:     c.Lock,
		Downloader: download.NewHTTPDownloader(settings.DownloadTimeout, opts.UserAgent, c.Logger),
		Verifier:   verify.NewVerifier(settings.DownloadTimeout, opts.UserAgent, c.Logger),
		Extractor:  install.NewArchiveExtractor(),
		Prompter:   prompt.New(settings.InstallMode, opts.Stdin, opts.Stderr, interactive, c.Logger),
		Progress:   c.Console,
		Status:     c.Console,
		Logger:     c.Logger,
	})

	// 3. Dispatch
	c.Dispatch = services.NewDispatchService(
		c.Config.Catalog,
		c.Bootstrap,
		process.NewInterpreterResolver(settings.Python),
		process.NewExecutorWithIO(opts.Stdin, opts.Stdout, opts.Stderr, nil, c.Logger),
		c.Logger,
	)
}

func isTerminal(v interface{}) bool {
	f, ok := v.(*os.File)
	return ok && terminal.IsTerminal(f)
}
