// Package verify checks downloaded artifacts against pinned checksums and
// OpenPGP detached signatures.
package verify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

const maxSignatureSize = 64 * 1024

// Verifier implements ports.Verifier. Checks a package does not configure are skipped.
type Verifier struct {
	httpClient *http.Client
	userAgent  string
	logger     logrus.FieldLogger
}

// NewVerifier creates a verifier that fetches signatures with the given timeout
func NewVerifier(timeout time.Duration, userAgent string, logger logrus.FieldLogger) *Verifier {
	return &Verifier{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     logger,
	}
}

// Verify runs every check configured for pkg against the artifact
func (v *Verifier) Verify(ctx context.Context, pkg domain.Package, artifact ports.Artifact) error {
	if pkg.SHA256 != "" {
		if err := v.verifyChecksum(artifact, pkg.SHA256); err != nil {
			return err
		}
		v.logger.WithField("package", pkg.Name).Debug("checksum verified")
	}

	if pkg.SignatureURL != "" {
		if err := v.verifySignature(ctx, pkg, artifact.Path); err != nil {
			return err
		}
		v.logger.WithField("package", pkg.Name).Debug("signature verified")
	}

	return nil
}

func (v *Verifier) verifyChecksum(artifact ports.Artifact, expected string) error {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if !isHexDigest(expected, sha256.Size*2) {
		return fmt.Errorf("%w: configured sha256 %q is not a hex digest", domain.ErrVerificationFailed, expected)
	}

	actual := artifact.SHA256
	if actual == "" {
		sum, err := CalculateChecksum(artifact.Path)
		if err != nil {
			return err
		}
		actual = sum
	}

	if actual != expected {
		return fmt.Errorf("%w: checksum mismatch: expected %s, got %s", domain.ErrVerificationFailed, expected, actual)
	}
	return nil
}

func (v *Verifier) verifySignature(ctx context.Context, pkg domain.Package, artifactPath string) error {
	keyring, err := LoadKeyring(pkg.PublicKeyFile)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}

	sig, err := v.fetchSignature(ctx, pkg.SignatureURL)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}

	//nolint:gosec // G304: artifactPath is a staging path owned by the install store
	f, err := os.Open(artifactPath)
	if err != nil {
		return fmt.Errorf("failed to open artifact: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	if err := CheckDetachedSignature(keyring, f, sig); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
	}
	return nil
}

func (v *Verifier) fetchSignature(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create signature request: %w", err)
	}
	req.Header.Set("User-Agent", v.userAgent)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download signature: %w", err)
	}
	//nolint:errcheck // Defer close on HTTP response body
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("signature download returned %s", resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, maxSignatureSize))
}

// LoadKeyring reads an armored or binary OpenPGP public key file.
func LoadKeyring(path string) (openpgp.EntityList, error) {
	//nolint:gosec // G304: key path comes from the user's config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	entities, err := openpgp.ReadArmoredKeyRing(bytes.NewReader(data))
	if err != nil {
		entities, err = openpgp.ReadKeyRing(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to parse public key %s: %w", path, err)
		}
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no keys found in %s", path)
	}
	return entities, nil
}

// CheckDetachedSignature verifies an armored or binary detached signature over signed.
func CheckDetachedSignature(keyring openpgp.EntityList, signed io.Reader, sig []byte) error {
	var err error
	if bytes.HasPrefix(bytes.TrimSpace(sig), []byte("-----BEGIN PGP SIGNATURE-----")) {
		_, err = openpgp.CheckArmoredDetachedSignature(keyring, signed, bytes.NewReader(sig), nil)
	} else {
		_, err = openpgp.CheckDetachedSignature(keyring, signed, bytes.NewReader(sig), nil)
	}
	if err != nil {
		return fmt.Errorf("signature verification failed: %w", err)
	}
	return nil
}

// CalculateChecksum calculates the SHA256 checksum of a file
func CalculateChecksum(filePath string) (string, error) {
	//nolint:gosec // G304: File path is a staging path owned by the install store
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	//nolint:errcheck // Defer close on read-only file
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func isHexDigest(value string, expectedLen int) bool {
	if len(value) != expectedLen {
		return false
	}
	_, err := hex.DecodeString(value)
	return err == nil
}

var _ ports.Verifier = (*Verifier)(nil)
