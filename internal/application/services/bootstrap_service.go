package services

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// BootstrapDependencies are the collaborators of a BootstrapService
type BootstrapDependencies struct {
	Catalog    domain.Catalog
	Store      ports.InstallStore
	Locker     ports.Locker
	Downloader ports.Downloader
	Verifier   ports.Verifier
	Extractor  ports.Extractor
	Prompter   ports.Prompter
	Progress   ports.ProgressReporter
	Status     ports.StatusReporter
	Logger     logrus.FieldLogger
}

// BootstrapService makes sure packages are present in the install directory,
// installing them on first use.
type BootstrapService struct {
	catalog    domain.Catalog
	store      ports.InstallStore
	locker     ports.Locker
	downloader ports.Downloader
	verifier   ports.Verifier
	extractor  ports.Extractor
	prompter   ports.Prompter
	progress   ports.ProgressReporter
	status     ports.StatusReporter
	logger     logrus.FieldLogger
	now        func() time.Time
}

// NewBootstrapService creates a new bootstrap service
func NewBootstrapService(deps BootstrapDependencies) *BootstrapService {
	return &BootstrapService{
		catalog:    deps.Catalog,
		store:      deps.Store,
		locker:     deps.Locker,
		downloader: deps.Downloader,
		verifier:   deps.Verifier,
		extractor:  deps.Extractor,
		prompter:   deps.Prompter,
		progress:   deps.Progress,
		status:     deps.Status,
		logger:     deps.Logger,
		now:        time.Now,
	}
}

// Catalog returns the packages this service manages.
func (s *BootstrapService) Catalog() domain.Catalog { return s.catalog }

// InstallDir returns the install directory.
func (s *BootstrapService) InstallDir() string { return s.store.Root() }

// EnsureInstalled returns the absolute path of the named package's marker,
// installing the package and its requirements first when any is missing.
// When everything is present only the filesystem is consulted.
func (s *BootstrapService) EnsureInstalled(ctx context.Context, name string) (string, error) {
	order, err := s.catalog.InstallOrder(name)
	if err != nil {
		return "", domain.NewStepError(domain.StepCheck, name, err)
	}

	installations, missing, err := s.inspectAll(order)
	if err != nil {
		return "", domain.NewStepError(domain.StepCheck, name, err)
	}
	target := installations[len(installations)-1]
	if len(missing) == 0 {
		s.logger.WithFields(logrus.Fields{"package": name, "path": target.Path}).Debug("package already installed")
		return target.Path, nil
	}

	ok, err := s.prompter.Confirm(ctx, s.store.Root(), missing)
	if err != nil {
		return "", domain.NewStepError(domain.StepCheck, name, err)
	}
	if !ok {
		return "", domain.NewStepError(domain.StepCheck, name,
			fmt.Errorf("%w: %s is not installed in %s", domain.ErrInstallDeclined, target.Package.DisplayName(), s.store.Root()))
	}

	if _, err := s.installLocked(ctx, order, nil); err != nil {
		return "", err
	}

	inst, err := s.store.Inspect(target.Package)
	if err != nil {
		return "", domain.NewStepError(domain.StepCheck, name, err)
	}
	if inst.NeedsInstall() {
		return "", domain.NewStepError(domain.StepInstall, name,
			fmt.Errorf("%w: %s still missing after install", domain.ErrInstallWriteFailed, inst.Path))
	}
	return inst.Path, nil
}

// Install installs the named packages and their requirements without asking.
// Packages listed in force are downloaded again even when present.
func (s *BootstrapService) Install(ctx context.Context, names []string, force bool) ([]domain.InstallRecord, error) {
	var (
		order []domain.Package
		seen  = make(map[string]bool)
	)
	for _, name := range names {
		deps, err := s.catalog.InstallOrder(name)
		if err != nil {
			return nil, domain.NewStepError(domain.StepCheck, name, err)
		}
		for _, pkg := range deps {
			if !seen[pkg.Name] {
				seen[pkg.Name] = true
				order = append(order, pkg)
			}
		}
	}

	var forced map[string]bool
	if force {
		forced = make(map[string]bool, len(names))
		for _, name := range names {
			forced[name] = true
		}
	}
	return s.installLocked(ctx, order, forced)
}

// Uninstall removes the named packages from the install directory
func (s *BootstrapService) Uninstall(ctx context.Context, names []string) error {
	pkgs := make([]domain.Package, 0, len(names))
	for _, name := range names {
		pkg, err := s.catalog.Lookup(name)
		if err != nil {
			return domain.NewStepError(domain.StepCheck, name, err)
		}
		pkgs = append(pkgs, pkg)
	}

	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return domain.NewStepError(domain.StepInstall, "", err)
	}
	defer s.release(unlock)

	for _, pkg := range pkgs {
		if err := s.store.Remove(pkg); err != nil {
			return domain.NewStepError(domain.StepInstall, pkg.Name, fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err))
		}
		s.logger.WithField("package", pkg.Name).Info("package removed")
	}
	return nil
}

// Status inspects every catalog package
func (s *BootstrapService) Status() ([]domain.Installation, error) {
	names := s.catalog.Names()
	result := make([]domain.Installation, 0, len(names))
	for _, name := range names {
		inst, err := s.store.Inspect(s.catalog[name])
		if err != nil {
			return nil, domain.NewStepError(domain.StepCheck, name, err)
		}
		result = append(result, inst)
	}
	return result, nil
}

// PerformInstall downloads, verifies and commits one package. The staging
// directory is removed whatever the outcome.
func (s *BootstrapService) PerformInstall(ctx context.Context, pkg domain.Package) (domain.InstallRecord, error) {
	log := s.logger.WithFields(logrus.Fields{"package": pkg.Name, "url": pkg.URL})

	staging, err := s.store.NewStaging()
	if err != nil {
		return domain.InstallRecord{}, domain.NewStepError(domain.StepInstall, pkg.Name, err)
	}
	defer func() {
		if err := s.store.Discard(staging); err != nil {
			log.WithError(err).Warn("failed to remove staging directory")
		}
	}()

	s.status.Status("Downloading %s", pkg.DisplayName())
	archive := filepath.Join(staging, pkg.ArtifactName())
	artifact, err := s.downloader.Download(ctx, pkg.URL, archive, s.progress)
	if err != nil {
		return domain.InstallRecord{}, domain.NewStepError(stepFor(err, domain.StepDownload), pkg.Name, err)
	}
	log.WithField("size", artifact.Size).Debug("artifact downloaded")

	if err := s.verifier.Verify(ctx, pkg, artifact); err != nil {
		return domain.InstallRecord{}, domain.NewStepError(domain.StepVerify, pkg.Name, err)
	}

	filesDir := filepath.Join(staging, "files")
	files, err := s.extractor.Extract(archive, filesDir)
	if err != nil {
		return domain.InstallRecord{}, domain.NewStepError(stepFor(err, domain.StepInstall), pkg.Name, err)
	}

	record := domain.InstallRecord{
		Package:      pkg.Name,
		URL:          pkg.URL,
		SHA256:       artifact.SHA256,
		Size:         artifact.Size,
		LastModified: artifact.LastModified,
		InstalledAt:  s.now().UTC(),
		Files:        files,
	}
	if err := s.store.Commit(pkg, filesDir, record); err != nil {
		return domain.InstallRecord{}, domain.NewStepError(stepFor(err, domain.StepInstall), pkg.Name, err)
	}

	log.WithField("files", len(files)).Info("package installed")
	s.status.Success("Installed %s into %s", pkg.DisplayName(), s.store.Root())
	return record, nil
}

// installLocked installs every package of order that is missing, or listed in
// forced, while holding the install lock. Packages are re-inspected under the
// lock so a concurrent install is not repeated.
func (s *BootstrapService) installLocked(ctx context.Context, order []domain.Package, forced map[string]bool) ([]domain.InstallRecord, error) {
	unlock, err := s.locker.Lock(ctx)
	if err != nil {
		return nil, domain.NewStepError(domain.StepInstall, "", err)
	}
	defer s.release(unlock)

	var records []domain.InstallRecord
	for _, pkg := range order {
		inst, err := s.store.Inspect(pkg)
		if err != nil {
			return records, domain.NewStepError(domain.StepCheck, pkg.Name, err)
		}
		if !inst.NeedsInstall() && !forced[pkg.Name] {
			continue
		}

		record, err := s.PerformInstall(ctx, pkg)
		if err != nil {
			return records, err
		}
		records = append(records, record)
	}
	return records, nil
}

func (s *BootstrapService) inspectAll(order []domain.Package) ([]domain.Installation, []domain.Package, error) {
	installations := make([]domain.Installation, 0, len(order))
	var missing []domain.Package
	for _, pkg := range order {
		inst, err := s.store.Inspect(pkg)
		if err != nil {
			return nil, nil, err
		}
		installations = append(installations, inst)
		if inst.NeedsInstall() {
			missing = append(missing, pkg)
		}
	}
	return installations, missing, nil
}

func (s *BootstrapService) release(unlock func() error) {
	if err := unlock(); err != nil {
		s.logger.WithError(err).Warn("failed to release install lock")
	}
}

// stepFor attributes write failures to the install step and corrupt or
// incomplete artifacts to the download step.
func stepFor(err error, fallback domain.Step) domain.Step {
	switch {
	case errors.Is(err, domain.ErrInstallWriteFailed):
		return domain.StepInstall
	case errors.Is(err, domain.ErrDownloadFailed):
		return domain.StepDownload
	}
	return fallback
}
