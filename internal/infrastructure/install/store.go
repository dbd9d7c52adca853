// Package install owns the on-disk layout of the install directory: staging,
// atomic commits, install records and the advisory install lock.
package install

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// MetaDirName holds records, staging areas and the lock, inside the install directory.
const MetaDirName = ".tridirt"

// FileStore implements ports.InstallStore on the local filesystem
type FileStore struct {
	root   string
	logger logrus.FieldLogger
}

// NewFileStore creates a store rooted at installDir. Nothing is created until an install runs.
func NewFileStore(installDir string, logger logrus.FieldLogger) *FileStore {
	return &FileStore{root: installDir, logger: logger}
}

func (s *FileStore) Root() string { return s.root }

func (s *FileStore) metaDir() string { return filepath.Join(s.root, MetaDirName) }

func (s *FileStore) recordPath(name string) string {
	return filepath.Join(s.metaDir(), name+".yaml")
}

// MarkerPath returns the absolute path of the package's marker file.
func (s *FileStore) MarkerPath(pkg domain.Package) string {
	return filepath.Join(s.root, filepath.FromSlash(pkg.Marker()))
}

// Inspect stats the marker file; it never touches the network.
func (s *FileStore) Inspect(pkg domain.Package) (domain.Installation, error) {
	inst := domain.Installation{Package: pkg, Path: s.MarkerPath(pkg)}

	info, err := os.Stat(inst.Path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return inst, nil
	case err != nil:
		return inst, fmt.Errorf("failed to inspect %s: %w", inst.Path, err)
	case !info.Mode().IsRegular():
		return inst, nil
	}

	inst.Present = true
	inst.Executable = runtime.GOOS == "windows" || info.Mode().Perm()&0o111 != 0

	record, err := s.ReadRecord(pkg.Name)
	if err != nil {
		s.logger.WithError(err).WithField("package", pkg.Name).Warn("ignoring unreadable install record")
	}
	inst.Record = record

	return inst, nil
}

// ReadRecord loads the install record for name; a missing record is (nil, nil).
func (s *FileStore) ReadRecord(name string) (*domain.InstallRecord, error) {
	data, err := os.ReadFile(s.recordPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var record domain.InstallRecord
	if err := yaml.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse install record for %s: %w", name, err)
	}
	return &record, nil
}

// NewStaging creates .tridirt/staging-<uuid>/ inside the install directory so the
// final moves stay on one filesystem.
func (s *FileStore) NewStaging() (string, error) {
	if err := os.MkdirAll(s.metaDir(), 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}
	dir := filepath.Join(s.metaDir(), "staging-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}
	return dir, nil
}

func (s *FileStore) Discard(stagingDir string) error {
	if stagingDir == "" {
		return nil
	}
	return os.RemoveAll(stagingDir)
}

// Commit moves staged files into the install directory. Existing files are moved
// aside first and restored if any step fails, including writing the record.
func (s *FileStore) Commit(pkg domain.Package, stagedDir string, record domain.InstallRecord) error {
	if !containsFile(record.Files, pkg.Marker()) {
		return fmt.Errorf("%w: artifact does not contain %s", domain.ErrDownloadFailed, pkg.Marker())
	}
	if pkg.Runnable() {
		entry := filepath.Join(stagedDir, filepath.FromSlash(pkg.Entrypoint))
		if err := os.Chmod(entry, 0o755); err != nil {
			return fmt.Errorf("%w: failed to make %s executable: %v", domain.ErrInstallWriteFailed, pkg.Entrypoint, err)
		}
	}

	previous, err := s.ReadRecord(pkg.Name)
	if err != nil {
		s.logger.WithError(err).WithField("package", pkg.Name).Warn("ignoring unreadable install record")
	}

	tx := &commitTx{
		root:      s.root,
		backupDir: filepath.Join(s.metaDir(), "backup-"+uuid.NewString()),
	}
	defer func() { _ = os.RemoveAll(tx.backupDir) }()

	for _, rel := range record.Files {
		if err := tx.place(filepath.Join(stagedDir, filepath.FromSlash(rel)), rel); err != nil {
			tx.rollback(s.logger)
			return fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
		}
	}

	if err := s.writeRecord(record); err != nil {
		tx.rollback(s.logger)
		return fmt.Errorf("%w: failed to write install record: %v", domain.ErrInstallWriteFailed, err)
	}

	if previous != nil {
		shared := s.referencedByOthers(pkg.Name)
		for _, rel := range previous.Files {
			if containsFile(record.Files, rel) || shared[rel] {
				continue
			}
			if err := s.removeFile(rel); err != nil {
				s.logger.WithError(err).WithField("file", rel).Warn("failed to remove stale file")
			}
		}
	}

	s.logger.WithFields(logrus.Fields{
		"package": pkg.Name,
		"files":   len(record.Files),
		"root":    s.root,
	}).Debug("install committed")
	return nil
}

// Remove deletes the files recorded for pkg, or just its marker when no record
// exists. Files another package's record still lists are kept.
func (s *FileStore) Remove(pkg domain.Package) error {
	record, err := s.ReadRecord(pkg.Name)
	if err != nil {
		return err
	}

	files := []string{pkg.Marker()}
	if record != nil {
		files = record.Files
	}

	shared := s.referencedByOthers(pkg.Name)
	for _, rel := range files {
		if shared[rel] {
			s.logger.WithFields(logrus.Fields{"package": pkg.Name, "file": rel}).Debug("keeping file shared with another package")
			continue
		}
		if err := s.removeFile(rel); err != nil {
			return fmt.Errorf("failed to remove %s: %w", rel, err)
		}
	}

	if err := os.Remove(s.recordPath(pkg.Name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove install record: %w", err)
	}
	return nil
}

// referencedByOthers returns the files listed in every install record except name's.
func (s *FileStore) referencedByOthers(name string) map[string]bool {
	shared := make(map[string]bool)
	paths, err := filepath.Glob(filepath.Join(s.metaDir(), "*.yaml"))
	if err != nil {
		return shared
	}
	for _, p := range paths {
		other := strings.TrimSuffix(filepath.Base(p), ".yaml")
		if other == name {
			continue
		}
		record, err := s.ReadRecord(other)
		if err != nil || record == nil {
			if err != nil {
				s.logger.WithError(err).WithField("package", other).Warn("ignoring unreadable install record")
			}
			continue
		}
		for _, rel := range record.Files {
			shared[rel] = true
		}
	}
	return shared
}

func (s *FileStore) writeRecord(record domain.InstallRecord) error {
	data, err := yaml.Marshal(record)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.metaDir(), 0o755); err != nil {
		return err
	}
	path := s.recordPath(record.Package)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// removeFile deletes rel and any parent directories it leaves empty.
func (s *FileStore) removeFile(rel string) error {
	if !domain.IsLocalPath(rel) {
		return fmt.Errorf("refusing to remove %q outside the install directory", rel)
	}
	target := filepath.Join(s.root, filepath.FromSlash(rel))
	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	for dir := filepath.Dir(target); dir != s.root && len(dir) > len(s.root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}

// commitTx tracks the moves of one commit so they can be undone
type commitTx struct {
	root      string
	backupDir string
	placed    []string
	backedUp  []string
}

func (tx *commitTx) place(src, rel string) error {
	dst := filepath.Join(tx.root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	if _, err := os.Lstat(dst); err == nil {
		backup := filepath.Join(tx.backupDir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(backup), 0o755); err != nil {
			return err
		}
		if err := os.Rename(dst, backup); err != nil {
			return err
		}
		tx.backedUp = append(tx.backedUp, rel)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(src, dst); err != nil {
		return err
	}
	tx.placed = append(tx.placed, rel)
	return nil
}

func (tx *commitTx) rollback(logger logrus.FieldLogger) {
	for i := len(tx.placed) - 1; i >= 0; i-- {
		dst := filepath.Join(tx.root, filepath.FromSlash(tx.placed[i]))
		if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.WithError(err).WithField("file", tx.placed[i]).Error("rollback: failed to remove new file")
		}
	}
	for _, rel := range tx.backedUp {
		backup := filepath.Join(tx.backupDir, filepath.FromSlash(rel))
		dst := filepath.Join(tx.root, filepath.FromSlash(rel))
		if err := os.Rename(backup, dst); err != nil {
			logger.WithError(err).WithField("file", rel).Error("rollback: failed to restore file")
		}
	}
}

func containsFile(files []string, rel string) bool {
	for _, f := range files {
		if f == rel {
			return true
		}
	}
	return false
}

var _ ports.InstallStore = (*FileStore)(nil)
