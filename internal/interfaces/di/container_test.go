package di

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configinfra "github.com/tridirt/tridirt/internal/infrastructure/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{
		configinfra.EnvConfig, configinfra.EnvHome, configinfra.EnvInstallMode,
		configinfra.EnvAssumeYes, configinfra.EnvLogLevel, configinfra.EnvPython,
		configinfra.EnvDownloadTimeout, configinfra.EnvLockTimeout,
	} {
		t.Setenv(key, "")
	}
	return home
}

func testOptions(stderr *bytes.Buffer) Options {
	return Options{
		UserAgent: "tridirt/test",
		Stdin:     strings.NewReader(""),
		Stdout:    &bytes.Buffer{},
		Stderr:    stderr,
	}
}

func TestNewContainer_WiresComponents(t *testing.T) {
	home := isolate(t)
	installDir := filepath.Join(home, "tools")
	t.Setenv(configinfra.EnvHome, installDir)

	container, err := NewContainer(context.Background(), testOptions(&bytes.Buffer{}))
	require.NoError(t, err)

	assert.NotNil(t, container.Logger)
	assert.NotNil(t, container.Console)
	assert.NotNil(t, container.Bootstrap)
	assert.NotNil(t, container.Dispatch)

	assert.Equal(t, installDir, container.Config.Settings.InstallDir)
	assert.Equal(t, installDir, container.Store.Root())
	assert.Equal(t, installDir, container.Bootstrap.InstallDir())
	assert.Equal(t, filepath.Join(installDir, ".tridirt", "install.lock"), container.Lock.Path())
	assert.Contains(t, container.Bootstrap.Catalog().Names(), "trid")
}

func TestNewContainer_LogLevelFromFlags(t *testing.T) {
	isolate(t)
	var stderr bytes.Buffer
	opts := testOptions(&stderr)
	opts.Config.Overrides = map[string]interface{}{"log_level": "debug"}

	container, err := NewContainer(context.Background(), opts)
	require.NoError(t, err)

	assert.Equal(t, logrus.DebugLevel, container.Logger.GetLevel())
	assert.Contains(t, stderr.String(), "container initialized")
}

func TestNewContainer_InvalidSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		value   string
		wantErr string
	}{
		{name: "install mode", env: configinfra.EnvInstallMode, value: "sometimes", wantErr: "invalid install mode"},
		{name: "download timeout", env: configinfra.EnvDownloadTimeout, value: "-5s", wantErr: "download timeout must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(tt.env, tt.value)

			_, err := NewContainer(context.Background(), testOptions(&bytes.Buffer{}))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "failed to load configuration")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
