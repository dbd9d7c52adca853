package ports

import (
	"context"

	"github.com/tridirt/tridirt/internal/core/domain"
)

// Artifact describes a downloaded release file
type Artifact struct {
	Path         string
	Size         int64
	SHA256       string
	LastModified string
}

// Downloader fetches release artifacts
type Downloader interface {
	// Download writes url to destPath and reports progress while doing so.
	Download(ctx context.Context, url, destPath string, progress ProgressReporter) (Artifact, error)
}

// Verifier checks the integrity of a downloaded artifact
type Verifier interface {
	Verify(ctx context.Context, pkg domain.Package, artifact Artifact) error
}

// Extractor unpacks an archive into a directory
type Extractor interface {
	// Extract returns the extracted regular files, relative to destDir and slash-separated.
	Extract(archivePath, destDir string) ([]string, error)
}

// InstallStore owns the install directory layout
type InstallStore interface {
	// Root returns the install directory.
	Root() string

	// Inspect reports the installation state of pkg without touching the network.
	Inspect(pkg domain.Package) (domain.Installation, error)

	// NewStaging creates an empty staging directory inside the install directory.
	NewStaging() (string, error)

	// Discard removes a staging directory.
	Discard(stagingDir string) error

	// Commit moves the staged files into place and persists the record.
	// On failure the install directory is left as it was before the call.
	Commit(pkg domain.Package, stagedDir string, record domain.InstallRecord) error

	// Remove deletes the files recorded for pkg and its record.
	Remove(pkg domain.Package) error
}

// Locker serialises installs across processes
type Locker interface {
	Lock(ctx context.Context) (unlock func() error, err error)
}

// ProgressReporter receives download progress
type ProgressReporter interface {
	Begin(label string, total int64)
	Advance(n int64)
	End(err error)
}

// StatusReporter shows user-facing status lines
type StatusReporter interface {
	Status(format string, args ...interface{})
	Success(format string, args ...interface{})
}

// Prompter asks the user whether missing packages may be installed
type Prompter interface {
	Confirm(ctx context.Context, installDir string, pkgs []domain.Package) (bool, error)
}
