package configinfra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/tridirt/tridirt/internal/core/domain"
	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
	configports "github.com/tridirt/tridirt/internal/core/ports/config"
)

// fileConfig is the on-disk shape of config.yaml
type fileConfig struct {
	InstallDir      string                    `yaml:"install_dir"`
	InstallMode     string                    `yaml:"install_mode"`
	LogLevel        string                    `yaml:"log_level"`
	Python          string                    `yaml:"python"`
	DownloadTimeout string                    `yaml:"download_timeout"`
	LockTimeout     string                    `yaml:"lock_timeout"`
	LockStaleAfter  string                    `yaml:"lock_stale_after"`
	Packages        map[string]domain.Package `yaml:"packages"`
}

// FileLoader reads the YAML config file. A missing file yields an empty snapshot.
type FileLoader struct {
	path string
}

func NewFileLoader(path string) *FileLoader { return &FileLoader{path: path} }

func (l *FileLoader) Name() string { return "file" }

// Path returns the file the loader reads.
func (l *FileLoader) Path() string { return l.path }

func (l *FileLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot)
	if l.path == "" {
		return snap, nil
	}

	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", l.path, err)
	}

	toEntry := func(field string, v interface{}) {
		snap[field] = configdomain.Entry{Key: field, Value: v, Source: "file", SourcePath: l.path, Priority: configdomain.PriorityFile}
	}
	if fc.InstallDir != "" {
		dir := expandHome(fc.InstallDir)
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(filepath.Dir(l.path), dir)
		}
		toEntry(configdomain.KeyInstallDir, dir)
	}
	if fc.InstallMode != "" {
		toEntry(configdomain.KeyInstallMode, fc.InstallMode)
	}
	if fc.LogLevel != "" {
		toEntry(configdomain.KeyLogLevel, fc.LogLevel)
	}
	if fc.Python != "" {
		toEntry(configdomain.KeyPython, fc.Python)
	}
	for field, raw := range map[string]string{
		configdomain.KeyDownloadTimeout: fc.DownloadTimeout,
		configdomain.KeyLockTimeout:     fc.LockTimeout,
		configdomain.KeyLockStaleAfter:  fc.LockStaleAfter,
	} {
		if raw == "" {
			continue
		}
		d, ok := parseDuration(raw)
		if !ok {
			return nil, fmt.Errorf("config file %s: invalid duration for %s: %q", l.path, field, raw)
		}
		toEntry(field, d)
	}
	if len(fc.Packages) > 0 {
		toEntry(configdomain.KeyPackages, fc.Packages)
	}

	return snap, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p[1:], "/"))
}

var _ configports.Loader = (*FileLoader)(nil)
