package domain

import "time"

// InstallState is the lifecycle state of a package in the install directory
type InstallState string

const (
	StateNotInstalled InstallState = "not-installed"
	StateInstalled    InstallState = "installed"
)

// Installation is the result of inspecting the install directory for one package
type Installation struct {
	Package    Package
	Path       string
	Present    bool
	Executable bool
	Record     *InstallRecord
}

// NeedsInstall reports whether the package must be (re)installed before use.
// Script entrypoints run through an interpreter and only need to be present.
func (i Installation) NeedsInstall() bool {
	if !i.Present {
		return true
	}
	if i.Package.Runnable() && i.Package.Interpreter == "" && !i.Executable {
		return true
	}
	return false
}

// State returns the lifecycle state derived from the inspection.
func (i Installation) State() InstallState {
	if i.NeedsInstall() {
		return StateNotInstalled
	}
	return StateInstalled
}

// InstallRecord is the metadata kept for an installed package
type InstallRecord struct {
	Package      string    `yaml:"package"`
	URL          string    `yaml:"url"`
	SHA256       string    `yaml:"sha256"`
	Size         int64     `yaml:"size"`
	LastModified string    `yaml:"last_modified,omitempty"`
	InstalledAt  time.Time `yaml:"installed_at"`
	Files        []string  `yaml:"files"`
}
