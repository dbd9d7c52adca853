package configinfra

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tridirt/tridirt/internal/core/domain"
	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
	configports "github.com/tridirt/tridirt/internal/core/ports/config"
)

// InstallDirName is the install directory, relative to the user's home.
const InstallDirName = ".trid"

const (
	DefaultLogLevel        = "warn"
	DefaultDownloadTimeout = 5 * time.Minute
	DefaultLockTimeout     = 2 * time.Minute
	DefaultLockStaleAfter  = 10 * time.Minute
)

// OverrideLoader turns command-line flag values into a snapshot
type OverrideLoader struct {
	values map[string]interface{}
	flags  map[string]string
}

// NewOverrideLoader creates a loader for values keyed like the config file.
// flags names the flag that set each value; unnamed keys are labelled
// --<key> with dashes.
func NewOverrideLoader(values map[string]interface{}, flags map[string]string) *OverrideLoader {
	return &OverrideLoader{values: values, flags: flags}
}

// FlagName returns the flag label recorded for field.
func (l *OverrideLoader) FlagName(field string) string {
	if name, ok := l.flags[field]; ok {
		return name
	}
	return "--" + strings.ReplaceAll(field, "_", "-")
}

func (l *OverrideLoader) Name() string { return "flag" }

func (l *OverrideLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot, len(l.values))
	for field, v := range l.values {
		if s, ok := v.(string); ok && field == configdomain.KeyInstallDir {
			v = expandHome(s)
		}
		snap[field] = configdomain.Entry{Key: field, Value: v, Source: "flag", SourcePath: l.FlagName(field), Priority: configdomain.PriorityFlag}
	}
	return snap, nil
}

// Options control a configuration load
type Options struct {
	// ConfigPath overrides TRIDIRT_CONFIG and the default location.
	ConfigPath string
	// Overrides are values from command-line flags, keyed like the config file.
	Overrides map[string]interface{}
	// OverrideFlags names the flag behind each override when it differs from
	// the key, as --yes does for install_mode.
	OverrideFlags map[string]string
}

// Resolved is the outcome of a configuration load
type Resolved struct {
	Settings   configdomain.Settings
	Catalog    domain.Catalog
	Snapshot   configdomain.Snapshot
	ConfigPath string
}

// DefaultConfigPath returns ~/.config/tridirt/config.yaml for the given home.
func DefaultConfigPath(home string) string {
	return filepath.Join(home, ".config", "tridirt", "config.yaml")
}

// Load resolves settings from defaults, the config file, the environment and flags.
func Load(ctx context.Context, opts Options) (*Resolved, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve home directory: %w", err)
	}

	configPath := opts.ConfigPath
	if configPath == "" {
		configPath = os.Getenv(EnvConfig)
	}
	if configPath == "" {
		configPath = DefaultConfigPath(home)
	}

	snap := defaultSnapshot(home)
	loaders := []configports.Loader{
		NewFileLoader(configPath),
		NewEnvLoader(),
		NewOverrideLoader(opts.Overrides, opts.OverrideFlags),
	}
	for _, loader := range loaders {
		s, err := loader.Load(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s config: %w", loader.Name(), err)
		}
		snap.Merge(s)
	}

	settings, err := buildSettings(snap)
	if err != nil {
		return nil, err
	}

	catalog, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if e, ok := snap[configdomain.KeyPackages]; ok {
		overrides, ok := e.Value.(map[string]domain.Package)
		if !ok {
			return nil, fmt.Errorf("invalid packages value from %s", e.Source)
		}
		if catalog, err = ApplyOverrides(catalog, overrides); err != nil {
			return nil, err
		}
	}

	return &Resolved{
		Settings:   settings,
		Catalog:    catalog,
		Snapshot:   snap,
		ConfigPath: configPath,
	}, nil
}

func defaultSnapshot(home string) configdomain.Snapshot {
	snap := make(configdomain.Snapshot)
	add := func(field string, v interface{}) {
		snap[field] = configdomain.Entry{Key: field, Value: v, Source: "default", Priority: configdomain.PriorityDefault}
	}
	add(configdomain.KeyInstallDir, filepath.Join(home, InstallDirName))
	add(configdomain.KeyInstallMode, string(configdomain.InstallModePrompt))
	add(configdomain.KeyLogLevel, DefaultLogLevel)
	add(configdomain.KeyDownloadTimeout, DefaultDownloadTimeout)
	add(configdomain.KeyLockTimeout, DefaultLockTimeout)
	add(configdomain.KeyLockStaleAfter, DefaultLockStaleAfter)
	return snap
}

func buildSettings(snap configdomain.Snapshot) (configdomain.Settings, error) {
	var s configdomain.Settings

	s.InstallDir, _ = snap.String(configdomain.KeyInstallDir)
	if abs, err := filepath.Abs(s.InstallDir); err == nil {
		s.InstallDir = abs
	}

	rawMode, _ := snap.String(configdomain.KeyInstallMode)
	mode, err := configdomain.ParseInstallMode(rawMode)
	if err != nil {
		e := snap[configdomain.KeyInstallMode]
		return s, fmt.Errorf("%w (from %s %s)", err, e.Source, e.SourcePath)
	}
	s.InstallMode = mode

	s.LogLevel, _ = snap.String(configdomain.KeyLogLevel)
	s.Python, _ = snap.String(configdomain.KeyPython)
	s.DownloadTimeout, _ = snap.Duration(configdomain.KeyDownloadTimeout)
	s.LockTimeout, _ = snap.Duration(configdomain.KeyLockTimeout)
	s.LockStaleAfter, _ = snap.Duration(configdomain.KeyLockStaleAfter)

	if err := s.Validate(); err != nil {
		return s, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}
