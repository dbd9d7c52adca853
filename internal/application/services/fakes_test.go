package services

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/mock"

	"github.com/tridirt/tridirt/internal/core/domain"
	"github.com/tridirt/tridirt/internal/core/ports"
)

const testRoot = "/home/user/.trid"

func testCatalog() domain.Catalog {
	return domain.Catalog{
		"triddefs": {
			Name:     "triddefs",
			Title:    "TrID definitions",
			URL:      "https://example.org/triddefs.zip",
			Provides: "triddefs.trd",
		},
		"trid": {
			Name:        "trid",
			Title:       "TrID",
			URL:         "https://example.org/trid.zip",
			Entrypoint:  "trid.py",
			Interpreter: domain.InterpreterPython,
			Requires:    []string{"triddefs"},
		},
		"native": {
			Name:       "native",
			URL:        "https://example.org/native.zip",
			Entrypoint: "bin/native",
		},
	}
}

// fakeStore keeps installation state in memory
type fakeStore struct {
	mu         sync.Mutex
	installed  map[string]bool
	staged     []string
	discarded  []string
	commits    []domain.InstallRecord
	removed    []string
	commitErr  error
	inspectErr error
}

func newFakeStore(installed ...string) *fakeStore {
	s := &fakeStore{installed: make(map[string]bool)}
	for _, name := range installed {
		s.installed[name] = true
	}
	return s
}

func (s *fakeStore) Root() string { return testRoot }

func (s *fakeStore) Inspect(pkg domain.Package) (domain.Installation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inspectErr != nil {
		return domain.Installation{}, s.inspectErr
	}
	return domain.Installation{
		Package:    pkg,
		Path:       filepath.Join(testRoot, filepath.FromSlash(pkg.Marker())),
		Present:    s.installed[pkg.Name],
		Executable: true,
	}, nil
}

func (s *fakeStore) NewStaging() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dir := filepath.Join(testRoot, ".tridirt", fmt.Sprintf("staging-%d", len(s.staged)))
	s.staged = append(s.staged, dir)
	return dir, nil
}

func (s *fakeStore) Discard(dir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discarded = append(s.discarded, dir)
	return nil
}

func (s *fakeStore) Commit(pkg domain.Package, _ string, record domain.InstallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitErr != nil {
		return s.commitErr
	}
	s.installed[pkg.Name] = true
	s.commits = append(s.commits, record)
	return nil
}

func (s *fakeStore) Remove(pkg domain.Package) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.installed, pkg.Name)
	s.removed = append(s.removed, pkg.Name)
	return nil
}

func (s *fakeStore) markInstalled(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, name := range names {
		s.installed[name] = true
	}
}

// fakeLocker counts lock usage; onLock runs while the lock is held
type fakeLocker struct {
	locks   int
	unlocks int
	err     error
	onLock  func()
}

func (l *fakeLocker) Lock(context.Context) (func() error, error) {
	if l.err != nil {
		return nil, l.err
	}
	l.locks++
	if l.onLock != nil {
		l.onLock()
	}
	return func() error {
		l.unlocks++
		return nil
	}, nil
}

// MockDownloader is a testify mock of ports.Downloader
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Download(ctx context.Context, url, destPath string, progress ports.ProgressReporter) (ports.Artifact, error) {
	args := m.Called(ctx, url, destPath, progress)
	return args.Get(0).(ports.Artifact), args.Error(1)
}

func (m *MockDownloader) expect(pkg domain.Package) *mock.Call {
	return m.On("Download", mock.Anything, pkg.URL, mock.Anything, mock.Anything).
		Return(ports.Artifact{Size: 10, SHA256: "sha-" + pkg.Name, LastModified: "Mon, 02 Jan 2006 15:04:05 GMT"}, nil)
}

type fakeVerifier struct {
	err error
}

func (v fakeVerifier) Verify(context.Context, domain.Package, ports.Artifact) error { return v.err }

// fakeExtractor reports the marker of the package the archive belongs to
type fakeExtractor struct {
	catalog domain.Catalog
	err     error
}

func (e fakeExtractor) Extract(archivePath, _ string) ([]string, error) {
	if e.err != nil {
		return nil, e.err
	}
	base := path.Base(filepath.ToSlash(archivePath))
	for _, pkg := range e.catalog {
		if pkg.ArtifactName() == base {
			return []string{pkg.Marker(), "readme.txt"}, nil
		}
	}
	return nil, fmt.Errorf("unexpected archive %s", base)
}

// fakePrompter answers with a fixed decision
type fakePrompter struct {
	answer bool
	err    error
	asked  [][]domain.Package
}

func (p *fakePrompter) Confirm(_ context.Context, _ string, pkgs []domain.Package) (bool, error) {
	p.asked = append(p.asked, pkgs)
	return p.answer, p.err
}

type nopProgress struct{}

func (nopProgress) Begin(string, int64) {}
func (nopProgress) Advance(int64)       {}
func (nopProgress) End(error)           {}

type recordingStatus struct {
	lines []string
}

func (r *recordingStatus) Status(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

func (r *recordingStatus) Success(format string, args ...interface{}) {
	r.lines = append(r.lines, fmt.Sprintf(format, args...))
}

// bootstrapFixture wires a BootstrapService to fakes
type bootstrapFixture struct {
	store      *fakeStore
	locker     *fakeLocker
	downloader *MockDownloader
	verifier   fakeVerifier
	extractor  fakeExtractor
	prompter   *fakePrompter
	status     *recordingStatus
}

func newBootstrapFixture(installed ...string) *bootstrapFixture {
	return &bootstrapFixture{
		store:      newFakeStore(installed...),
		locker:     &fakeLocker{},
		downloader: &MockDownloader{},
		extractor:  fakeExtractor{catalog: testCatalog()},
		prompter:   &fakePrompter{answer: true},
		status:     &recordingStatus{},
	}
}

func (f *bootstrapFixture) service() *BootstrapService {
	logger, _ := logtest.NewNullLogger()
	return NewBootstrapService(BootstrapDependencies{
		Catalog:    testCatalog(),
		Store:      f.store,
		Locker:     f.locker,
		Downloader: f.downloader,
		Verifier:   f.verifier,
		Extractor:  f.extractor,
		Prompter:   f.prompter,
		Progress:   nopProgress{},
		Status:     f.status,
		Logger:     logger,
	})
}

// fakeInstaller returns a fixed path or error
type fakeInstaller struct {
	path  string
	err   error
	calls []string
}

func (i *fakeInstaller) EnsureInstalled(_ context.Context, name string) (string, error) {
	i.calls = append(i.calls, name)
	return i.path, i.err
}

type fakeInterpreter struct {
	prefix []string
	err    error
}

func (r fakeInterpreter) Resolve(string) ([]string, error) { return r.prefix, r.err }

// recordingExecutor captures the command it is asked to run
type recordingExecutor struct {
	code int
	err  error
	runs []domain.Command
}

func (e *recordingExecutor) Run(_ context.Context, cmd domain.Command) (int, error) {
	e.runs = append(e.runs, cmd)
	return e.code, e.err
}
