package download

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

// HTTPDownloader fetches release artifacts over HTTP(S)
type HTTPDownloader struct {
	httpClient *http.Client
	userAgent  string
	logger     logrus.FieldLogger
}

// NewHTTPDownloader creates a downloader whose whole transfer is bounded by timeout
func NewHTTPDownloader(timeout time.Duration, userAgent string, logger logrus.FieldLogger) *HTTPDownloader {
	return &HTTPDownloader{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: userAgent,
		logger:    logger,
	}
}

// Download streams url into destPath, hashing it on the way.
// destPath is removed again if anything fails.
func (d *HTTPDownloader) Download(ctx context.Context, url, destPath string, progress ports.ProgressReporter) (artifact ports.Artifact, err error) {
	if progress == nil {
		progress = NopProgress{}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("%w: invalid url %q: %v", domain.ErrDownloadFailed, url, err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	d.logger.WithField("url", url).Debug("downloading artifact")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ports.Artifact{}, fmt.Errorf("%w: %s returned %s", domain.ErrDownloadFailed, url, resp.Status)
	}

	//nolint:gosec // G304: destPath is a staging path owned by the install store
	out, err := os.OpenFile(destPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return ports.Artifact{}, fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(destPath)
		}
	}()

	progress.Begin(domain.Package{URL: url}.ArtifactName(), resp.ContentLength)
	hasher := sha256.New()
	written, copyErr := io.Copy(io.MultiWriter(out, hasher, progressWriter{progress}), resp.Body)
	closeErr := out.Close()

	switch {
	case copyErr != nil:
		err = classifyCopyError(copyErr)
	case closeErr != nil:
		err = fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, closeErr)
	case resp.ContentLength > 0 && written != resp.ContentLength:
		err = fmt.Errorf("%w: received %d of %d bytes", domain.ErrDownloadFailed, written, resp.ContentLength)
	}
	progress.End(err)
	if err != nil {
		return ports.Artifact{}, err
	}

	artifact = ports.Artifact{
		Path:         destPath,
		Size:         written,
		SHA256:       hex.EncodeToString(hasher.Sum(nil)),
		LastModified: resp.Header.Get("Last-Modified"),
	}
	d.logger.WithFields(logrus.Fields{
		"url":    url,
		"bytes":  written,
		"sha256": artifact.SHA256,
	}).Debug("artifact downloaded")

	return artifact, nil
}

// classifyCopyError separates local write failures from transfer failures.
func classifyCopyError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrDownloadFailed, err)
}

type progressWriter struct {
	progress ports.ProgressReporter
}

func (w progressWriter) Write(p []byte) (int, error) {
	w.progress.Advance(int64(len(p)))
	return len(p), nil
}

// NopProgress discards progress updates
type NopProgress struct{}

func (NopProgress) Begin(string, int64) {}
func (NopProgress) Advance(int64)       {}
func (NopProgress) End(error)           {}

var _ ports.Downloader = (*HTTPDownloader)(nil)
