package configinfra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
	configports "github.com/tridirt/tridirt/internal/core/ports/config"
)

// Environment variables understood by the dispatcher.
const (
	EnvConfig          = "TRIDIRT_CONFIG"
	EnvHome            = "TRIDIRT_HOME"
	EnvInstallMode     = "TRIDIRT_INSTALL_MODE"
	EnvAssumeYes       = "TRIDIRT_ASSUME_YES"
	EnvLogLevel        = "TRIDIRT_LOG_LEVEL"
	EnvPython          = "TRIDIRT_PYTHON"
	EnvDownloadTimeout = "TRIDIRT_DOWNLOAD_TIMEOUT"
	EnvLockTimeout     = "TRIDIRT_LOCK_TIMEOUT"
)

type EnvLoader struct{}

func NewEnvLoader() *EnvLoader { return &EnvLoader{} }

func (l *EnvLoader) Name() string { return "env" }

// Load implements Loader by returning the environment snapshot.
func (l *EnvLoader) Load(ctx context.Context) (configdomain.Snapshot, error) {
	return l.LoadEnv()
}

// LoadEnv builds a snapshot from TRIDIRT_* environment variables. Values that
// cannot be parsed are reported together; empty variables count as unset.
func (l *EnvLoader) LoadEnv() (configdomain.Snapshot, error) {
	snap := make(configdomain.Snapshot)
	var errs []error

	// convert returns ok=false to leave a valid value out of the snapshot.
	add := func(key, field string, convert func(string) (interface{}, bool, error)) {
		v := os.Getenv(key)
		if v == "" {
			return
		}
		val := interface{}(v)
		if convert != nil {
			converted, ok, err := convert(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			if !ok {
				return
			}
			val = converted
		}
		snap[field] = configdomain.Entry{Key: field, Value: val, Source: "env", SourcePath: key, Priority: configdomain.PriorityEnv}
	}

	add(EnvHome, configdomain.KeyInstallDir, func(s string) (interface{}, bool, error) { return expandHome(s), true, nil })
	add(EnvAssumeYes, configdomain.KeyInstallMode, func(s string) (interface{}, bool, error) {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return nil, false, fmt.Errorf("invalid boolean %q", s)
		}
		return string(configdomain.InstallModeAuto), b, nil
	})
	// An explicit mode wins over TRIDIRT_ASSUME_YES.
	add(EnvInstallMode, configdomain.KeyInstallMode, nil)
	add(EnvLogLevel, configdomain.KeyLogLevel, nil)
	add(EnvPython, configdomain.KeyPython, nil)
	add(EnvDownloadTimeout, configdomain.KeyDownloadTimeout, envDuration)
	add(EnvLockTimeout, configdomain.KeyLockTimeout, envDuration)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return snap, nil
}

func envDuration(s string) (interface{}, bool, error) {
	d, ok := parseDuration(s)
	if !ok {
		return nil, false, fmt.Errorf("invalid duration %q", s)
	}
	return d, true, nil
}

func parseDuration(s string) (interface{}, bool) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, false
	}
	return d, true
}

var _ configports.Loader = (*EnvLoader)(nil)
