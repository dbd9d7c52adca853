package install

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

const lockPollInterval = 200 * time.Millisecond

// FileLock is an advisory lock file created with O_EXCL. The holder refreshes
// the file's modification time while it runs; a lock not refreshed within
// staleAfter is assumed abandoned by a crashed process and broken.
type FileLock struct {
	path       string
	timeout    time.Duration
	staleAfter time.Duration
	logger     logrus.FieldLogger
}

// NewFileLock creates the install lock for installDir
func NewFileLock(installDir string, timeout, staleAfter time.Duration, logger logrus.FieldLogger) *FileLock {
	return &FileLock{
		path:       filepath.Join(installDir, MetaDirName, "install.lock"),
		timeout:    timeout,
		staleAfter: staleAfter,
		logger:     logger,
	}
}

// Path returns the lock file location.
func (l *FileLock) Path() string { return l.path }

// Lock blocks until the lock is held, the timeout expires or ctx is done.
func (l *FileLock) Lock(ctx context.Context) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}

	token := []byte(uuid.NewString() + " " + strconv.Itoa(os.Getpid()) + "\n")
	deadline := time.Now().Add(l.timeout)
	waiting := false

	for {
		acquired, err := l.tryAcquire(token)
		if err != nil {
			return nil, err
		}
		if acquired {
			stop := l.keepAlive(token)
			var once sync.Once
			return func() error {
				once.Do(stop)
				return l.release(token)
			}, nil
		}

		if !waiting {
			l.logger.WithField("lock", l.path).Info("waiting for another install to finish")
			waiting = true
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", domain.ErrLockTimeout, l.path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func (l *FileLock) tryAcquire(token []byte) (bool, error) {
	//nolint:gosec // G304: lock path is derived from the install directory
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err == nil {
		_, werr := f.Write(token)
		cerr := f.Close()
		if werr != nil || cerr != nil {
			_ = os.Remove(l.path)
			return false, fmt.Errorf("%w: failed to write lock file: %v", domain.ErrInstallWriteFailed, errors.Join(werr, cerr))
		}
		return true, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return false, fmt.Errorf("%w: %v", domain.ErrInstallWriteFailed, err)
	}

	info, statErr := os.Stat(l.path)
	if statErr != nil {
		// Released between our open and stat; try again straight away.
		return errors.Is(statErr, os.ErrNotExist) && l.retryOnce(token), nil
	}
	if time.Since(info.ModTime()) > l.staleAfter {
		l.logger.WithField("lock", l.path).Warn("breaking stale install lock")
		if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return false, fmt.Errorf("%w: failed to break stale lock: %v", domain.ErrInstallWriteFailed, err)
		}
		return l.retryOnce(token), nil
	}
	return false, nil
}

func (l *FileLock) retryOnce(token []byte) bool {
	//nolint:gosec // G304: lock path is derived from the install directory
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return false
	}
	_, werr := f.Write(token)
	if cerr := f.Close(); werr != nil || cerr != nil {
		_ = os.Remove(l.path)
		return false
	}
	return true
}

// keepAlive touches the lock file every staleAfter/3 until the returned stop
// function is called. stop waits for the refresher to exit.
func (l *FileLock) keepAlive(token []byte) func() {
	interval := max(l.staleAfter/3, time.Millisecond)
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if !l.holds(token) {
					l.logger.WithField("lock", l.path).Warn("install lock was taken over")
					return
				}
				now := time.Now()
				if err := os.Chtimes(l.path, now, now); err != nil {
					l.logger.WithError(err).WithField("lock", l.path).Warn("failed to refresh install lock")
				}
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

func (l *FileLock) holds(token []byte) bool {
	data, err := os.ReadFile(l.path)
	return err == nil && bytes.Equal(data, token)
}

// release removes the lock file only if it still carries our token.
func (l *FileLock) release(token []byte) error {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if !bytes.Equal(data, token) {
		l.logger.WithField("lock", l.path).Warn("install lock was taken over, not removing it")
		return nil
	}
	return os.Remove(l.path)
}

var _ ports.Locker = (*FileLock)(nil)
