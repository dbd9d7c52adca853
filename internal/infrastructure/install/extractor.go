package install

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// ArchiveExtractor unpacks zip and tar.gz release archives
type ArchiveExtractor struct{}

func NewArchiveExtractor() *ArchiveExtractor { return &ArchiveExtractor{} }

// Extract unpacks archivePath into destDir, choosing the format by file name.
func (e *ArchiveExtractor) Extract(archivePath, destDir string) ([]string, error) {
	name := strings.ToLower(filepath.Base(archivePath))
	var (
		files []string
		err   error
	)
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		files, err = extractTarGz(archivePath, destDir)
	default:
		files, err = extractZip(archivePath, destDir)
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func extractZip(archivePath, destDir string) ([]string, error) {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("%w: not a valid zip archive: %v", domain.ErrDownloadFailed, err)
	}
	//nolint:errcheck // Defer close on read-only archive
	defer zr.Close()

	var files []string
	for _, zf := range zr.File {
		if zf.FileInfo().IsDir() {
			continue
		}
		if !zf.Mode().IsRegular() {
			// Links and devices have no place in a tool install.
			continue
		}
		rel, err := sanitizeEntry(zf.Name)
		if err != nil {
			return nil, err
		}

		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read %s from archive: %v", domain.ErrDownloadFailed, zf.Name, err)
		}
		err = writeEntry(destDir, rel, zf.Mode(), rc)
		_ = rc.Close()
		if err != nil {
			return nil, err
		}
		files = append(files, rel)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: archive contains no files", domain.ErrDownloadFailed)
	}
	return files, nil
}

func extractTarGz(archivePath, destDir string) ([]string, error) {
	//nolint:gosec // G304: archivePath is a staging path owned by the install store
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	gzReader, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create gzip reader: %v", domain.ErrDownloadFailed, err)
	}
	//nolint:errcheck // Defer close on gzip reader
	defer gzReader.Close()

	tarReader := tar.NewReader(gzReader)

	var files []string
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read tar header: %v", domain.ErrDownloadFailed, err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		rel, err := sanitizeEntry(header.Name)
		if err != nil {
			return nil, err
		}
		if err := writeEntry(destDir, rel, os.FileMode(header.Mode).Perm(), tarReader); err != nil {
			return nil, err
		}
		files = append(files, rel)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: archive contains no files", domain.ErrDownloadFailed)
	}
	return files, nil
}

// sanitizeEntry rejects entries that would land outside the destination.
func sanitizeEntry(name string) (string, error) {
	name = strings.TrimPrefix(name, "./")
	if !domain.IsLocalPath(name) {
		return "", fmt.Errorf("%w: invalid file path in archive: %s", domain.ErrDownloadFailed, name)
	}
	return path.Clean(name), nil
}

func writeEntry(destDir, rel string, mode os.FileMode, r io.Reader) error {
	target := filepath.Join(destDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}

	perm := os.FileMode(0o644)
	if mode.Perm()&0o111 != 0 {
		perm = 0o755
	}

	//nolint:gosec // G304: target is sanitised and inside the staging directory
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		var pathErr *os.PathError
		if errors.As(err, &pathErr) {
			return fmt.Errorf("%w: failed to extract %s: %v", domain.ErrInstallWriteFailed, rel, err)
		}
		return fmt.Errorf("%w: corrupt archive entry %s: %v", domain.ErrDownloadFailed, rel, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}
	return nil
}

var _ ports.Extractor = (*ArchiveExtractor)(nil)
