package configdomain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Configuration keys shared by every loader.
const (
	KeyInstallDir      = "install_dir"
	KeyInstallMode     = "install_mode"
	KeyLogLevel        = "log_level"
	KeyPython          = "python"
	KeyDownloadTimeout = "download_timeout"
	KeyLockTimeout     = "lock_timeout"
	KeyLockStaleAfter  = "lock_stale_after"
	KeyPackages        = "packages"
)

// Priorities, lower wins.
const (
	PriorityFlag    = 1
	PriorityEnv     = 2
	PriorityFile    = 3
	PriorityDefault = 9
)

// Entry represents a single configuration value with provenance and priority.
type Entry struct {
	Key        string
	Value      interface{}
	Source     string
	SourcePath string
	Priority   int
}

// Snapshot is a collection of config entries keyed by field name.
type Snapshot map[string]Entry

// Merge merges another snapshot into this one respecting priority
// (lower number indicates higher priority).
func (s Snapshot) Merge(other Snapshot) {
	for k, e := range other {
		if existing, ok := s[k]; !ok || e.Priority <= existing.Priority {
			s[k] = e
		}
	}
}

// Keys returns the snapshot keys in sorted order.
func (s Snapshot) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String returns the value of key as a string, if present.
func (s Snapshot) String(key string) (string, bool) {
	e, ok := s[key]
	if !ok {
		return "", false
	}
	v, ok := e.Value.(string)
	return v, ok
}

// Duration returns the value of key as a duration, if present.
func (s Snapshot) Duration(key string) (time.Duration, bool) {
	e, ok := s[key]
	if !ok {
		return 0, false
	}
	switch v := e.Value.(type) {
	case time.Duration:
		return v, true
	case string:
		d, err := time.ParseDuration(v)
		return d, err == nil
	default:
		return 0, false
	}
}

// InstallMode controls what happens when a dispatched package is missing
type InstallMode string

const (
	InstallModePrompt InstallMode = "prompt"
	InstallModeAuto   InstallMode = "auto"
	InstallModeNever  InstallMode = "never"
)

// ParseInstallMode validates a textual install mode.
func ParseInstallMode(raw string) (InstallMode, error) {
	switch mode := InstallMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case InstallModePrompt, InstallModeAuto, InstallModeNever:
		return mode, nil
	case "":
		return InstallModePrompt, nil
	default:
		return "", fmt.Errorf("invalid install mode %q (want prompt, auto or never)", raw)
	}
}

// Settings is the resolved configuration, computed once at process start.
type Settings struct {
	InstallDir      string
	InstallMode     InstallMode
	LogLevel        string
	Python          string
	DownloadTimeout time.Duration
	LockTimeout     time.Duration
	LockStaleAfter  time.Duration
}

// Validate checks resolved settings for values the dispatcher cannot work with
func (s Settings) Validate() error {
	if strings.TrimSpace(s.InstallDir) == "" {
		return fmt.Errorf("install directory cannot be empty")
	}
	if _, err := ParseInstallMode(string(s.InstallMode)); err != nil {
		return err
	}
	if s.DownloadTimeout <= 0 {
		return fmt.Errorf("download timeout must be positive, got %s", s.DownloadTimeout)
	}
	if s.LockTimeout <= 0 {
		return fmt.Errorf("lock timeout must be positive, got %s", s.LockTimeout)
	}
	if s.LockStaleAfter <= 0 {
		return fmt.Errorf("lock stale-after must be positive, got %s", s.LockStaleAfter)
	}
	return nil
}
