package configinfra

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	configdomain "github.com/tridirt/tridirt/internal/core/domain/config"
)

// isolate points HOME at a temp dir and clears every TRIDIRT_* variable.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, key := range []string{EnvConfig, EnvHome, EnvInstallMode, EnvAssumeYes, EnvLogLevel, EnvPython, EnvDownloadTimeout, EnvLockTimeout} {
		t.Setenv(key, "")
	}
	return home
}

func writeConfig(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	resolved, err := Load(context.Background(), Options{})
	require.NoError(t, err)

	s := resolved.Settings
	assert.Equal(t, filepath.Join(home, ".trid"), s.InstallDir)
	assert.Equal(t, configdomain.InstallModePrompt, s.InstallMode)
	assert.Equal(t, "warn", s.LogLevel)
	assert.Empty(t, s.Python)
	assert.Equal(t, DefaultDownloadTimeout, s.DownloadTimeout)
	assert.Equal(t, DefaultLockTimeout, s.LockTimeout)
	assert.Equal(t, DefaultConfigPath(home), resolved.ConfigPath)
	assert.Equal(t, "default", resolved.Snapshot[configdomain.KeyInstallDir].Source)

	assert.ElementsMatch(t, []string{"trid", "triddefs", "tridscan", "triddefspack"}, resolved.Catalog.Names())
}

func TestLoad_Precedence(t *testing.T) {
	home := isolate(t)
	writeConfig(t, DefaultConfigPath(home), `
install_dir: ~/tools/trid
log_level: info
python: /usr/bin/python3 -X utf8
download_timeout: 30s
`)

	t.Run("file_over_defaults", func(t *testing.T) {
		resolved, err := Load(context.Background(), Options{})
		require.NoError(t, err)

		assert.Equal(t, filepath.Join(home, "tools", "trid"), resolved.Settings.InstallDir)
		assert.Equal(t, "info", resolved.Settings.LogLevel)
		assert.Equal(t, "/usr/bin/python3 -X utf8", resolved.Settings.Python)
		assert.Equal(t, 30*time.Second, resolved.Settings.DownloadTimeout)
		assert.Equal(t, "file", resolved.Snapshot[configdomain.KeyLogLevel].Source)
	})

	t.Run("env_over_file", func(t *testing.T) {
		t.Setenv(EnvLogLevel, "debug")
		t.Setenv(EnvHome, filepath.Join(home, "elsewhere"))

		resolved, err := Load(context.Background(), Options{})
		require.NoError(t, err)

		assert.Equal(t, "debug", resolved.Settings.LogLevel)
		assert.Equal(t, filepath.Join(home, "elsewhere"), resolved.Settings.InstallDir)
		assert.Equal(t, EnvLogLevel, resolved.Snapshot[configdomain.KeyLogLevel].SourcePath)
	})

	t.Run("flag_over_env", func(t *testing.T) {
		t.Setenv(EnvLogLevel, "debug")

		resolved, err := Load(context.Background(), Options{
			Overrides: map[string]interface{}{configdomain.KeyLogLevel: "error"},
		})
		require.NoError(t, err)

		assert.Equal(t, "error", resolved.Settings.LogLevel)
		assert.Equal(t, "flag", resolved.Snapshot[configdomain.KeyLogLevel].Source)
		assert.Equal(t, "--log-level", resolved.Snapshot[configdomain.KeyLogLevel].SourcePath)
	})

	t.Run("named_flag", func(t *testing.T) {
		resolved, err := Load(context.Background(), Options{
			Overrides:     map[string]interface{}{configdomain.KeyInstallMode: "auto"},
			OverrideFlags: map[string]string{configdomain.KeyInstallMode: "--yes"},
		})
		require.NoError(t, err)

		assert.Equal(t, configdomain.InstallModeAuto, resolved.Settings.InstallMode)
		assert.Equal(t, "--yes", resolved.Snapshot[configdomain.KeyInstallMode].SourcePath)
	})
}

func TestLoad_InstallModeFromEnvironment(t *testing.T) {
	tests := []struct {
		name      string
		assumeYes string
		mode      string
		want      configdomain.InstallMode
	}{
		{name: "default_prompt", want: configdomain.InstallModePrompt},
		{name: "assume_yes", assumeYes: "true", want: configdomain.InstallModeAuto},
		{name: "assume_yes_false_ignored", assumeYes: "false", want: configdomain.InstallModePrompt},
		{name: "explicit_mode_wins", assumeYes: "1", mode: "never", want: configdomain.InstallModeNever},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			t.Setenv(EnvAssumeYes, tt.assumeYes)
			t.Setenv(EnvInstallMode, tt.mode)

			resolved, err := Load(context.Background(), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resolved.Settings.InstallMode)
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("install_mode", func(t *testing.T) {
		isolate(t)
		t.Setenv(EnvInstallMode, "sometimes")

		_, err := Load(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid install mode")
		assert.Contains(t, err.Error(), EnvInstallMode)
	})

	t.Run("file_duration", func(t *testing.T) {
		home := isolate(t)
		writeConfig(t, DefaultConfigPath(home), "lock_timeout: soon\n")

		_, err := Load(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid duration")
	})

	t.Run("env_values", func(t *testing.T) {
		isolate(t)
		t.Setenv(EnvDownloadTimeout, "soon")
		t.Setenv(EnvLockTimeout, "10")
		t.Setenv(EnvAssumeYes, "sure")

		_, err := Load(context.Background(), Options{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), EnvDownloadTimeout+`: invalid duration "soon"`)
		assert.Contains(t, err.Error(), EnvLockTimeout+`: invalid duration "10"`)
		assert.Contains(t, err.Error(), EnvAssumeYes+`: invalid boolean "sure"`)
	})

	t.Run("file_syntax", func(t *testing.T) {
		home := isolate(t)
		writeConfig(t, DefaultConfigPath(home), "install_dir: [\n")

		_, err := Load(context.Background(), Options{})
		require.Error(t, err)
	})
}

func TestLoad_ExplicitConfigPath(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.yaml")
	writeConfig(t, path, "install_mode: auto\n")
	t.Setenv(EnvConfig, filepath.Join(home, "ignored.yaml"))

	resolved, err := Load(context.Background(), Options{ConfigPath: path})
	require.NoError(t, err)

	assert.Equal(t, path, resolved.ConfigPath)
	assert.Equal(t, configdomain.InstallModeAuto, resolved.Settings.InstallMode)
}

func TestLoad_PackageOverrides(t *testing.T) {
	home := isolate(t)
	writeConfig(t, DefaultConfigPath(home), `
packages:
  trid:
    url: https://mirror.example.org/trid.zip
    sha256: 0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef
  exiftool:
    url: https://example.org/exiftool.zip
    entrypoint: exiftool
`)

	resolved, err := Load(context.Background(), Options{})
	require.NoError(t, err)

	trid, err := resolved.Catalog.Lookup("trid")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.example.org/trid.zip", trid.URL)
	assert.Equal(t, "trid.py", trid.Entrypoint, "fields not overridden are kept")
	assert.Equal(t, []string{"triddefs"}, trid.Requires)
	assert.Len(t, trid.SHA256, 64)

	extra, err := resolved.Catalog.Lookup("exiftool")
	require.NoError(t, err)
	assert.Equal(t, "exiftool", extra.Name)
	assert.Equal(t, "exiftool", extra.Entrypoint)
}
