package services

import (
	"context"
	"fmt"
	"os"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/tridirt/tridirt/internal/core/domain"
)

const tridPath = "/home/user/.trid/trid.py"

type dispatchFixture struct {
	installer   *fakeInstaller
	interpreter fakeInterpreter
	executor    *recordingExecutor
}

func newDispatchFixture() *dispatchFixture {
	return &dispatchFixture{
		installer:   &fakeInstaller{path: tridPath},
		interpreter: fakeInterpreter{prefix: []string{"/usr/bin/python3"}},
		executor:    &recordingExecutor{},
	}
}

func (f *dispatchFixture) service() *DispatchService {
	logger, _ := logtest.NewNullLogger()
	return NewDispatchService(testCatalog(), f.installer, f.interpreter, f.executor, logger)
}

func TestDispatch_ArgumentsPassVerbatim(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		args := rapid.SliceOf(rapid.String()).Draw(t, "args")
		f := newDispatchFixture()

		code, err := f.service().Dispatch(context.Background(), "trid", args)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != 0 {
			t.Fatalf("unexpected exit code %d", code)
		}
		if len(f.executor.runs) != 1 {
			t.Fatalf("expected one run, got %d", len(f.executor.runs))
		}

		cmd := f.executor.runs[0]
		want := append([]string{"/usr/bin/python3", tridPath}, args...)
		got := cmd.FullCommandLine()
		if len(got) != len(want) {
			t.Fatalf("command line %q, want %q", got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("argument %d is %q, want %q", i, got[i], want[i])
			}
		}
	})
}

func TestDispatch_ExitCodePropagates(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		want := rapid.IntRange(0, 255).Draw(t, "code")
		f := newDispatchFixture()
		f.executor.code = want

		code, err := f.service().Dispatch(context.Background(), "trid", []string{"file.bin"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code != want {
			t.Fatalf("exit code %d, want %d", code, want)
		}
	})
}

func TestDispatch_NativeEntrypointRunsDirectly(t *testing.T) {
	f := newDispatchFixture()
	f.installer.path = "/home/user/.trid/bin/native"

	_, err := f.service().Dispatch(context.Background(), "native", []string{"-v"})
	require.NoError(t, err)

	require.Len(t, f.executor.runs, 1)
	assert.Equal(t, []string{"/home/user/.trid/bin/native", "-v"}, f.executor.runs[0].FullCommandLine())
}

func TestDispatch_Failures(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		setup    func(*dispatchFixture)
		wantIs   error
		wantCode int
		wantRun  bool
	}{
		{
			name:     "unknown_tool",
			tool:     "tridx",
			wantIs:   domain.ErrUnknownPackage,
			wantCode: domain.ExitFailure,
		},
		{
			name:     "not_runnable",
			tool:     "triddefs",
			wantIs:   domain.ErrNotRunnable,
			wantCode: domain.ExitFailure,
		},
		{
			name: "install_failed",
			tool: "trid",
			setup: func(f *dispatchFixture) {
				f.installer.err = domain.NewStepError(domain.StepDownload, "trid", domain.ErrDownloadFailed)
			},
			wantIs:   domain.ErrDownloadFailed,
			wantCode: domain.ExitFailure,
		},
		{
			name: "interpreter_missing",
			tool: "trid",
			setup: func(f *dispatchFixture) {
				f.interpreter.err = fmt.Errorf("%w: no python3 or python on PATH", domain.ErrInterpreterNotFound)
			},
			wantIs:   domain.ErrInterpreterNotFound,
			wantCode: domain.ExitNotFound,
		},
		{
			name: "entrypoint_missing",
			tool: "trid",
			setup: func(f *dispatchFixture) {
				f.executor.err = fmt.Errorf("%w: %w", domain.ErrExecutionFailed, os.ErrNotExist)
			},
			wantIs:   os.ErrNotExist,
			wantCode: domain.ExitNotFound,
			wantRun:  true,
		},
		{
			name: "entrypoint_not_executable",
			tool: "trid",
			setup: func(f *dispatchFixture) {
				f.executor.err = fmt.Errorf("%w: %w", domain.ErrExecutionFailed, os.ErrPermission)
			},
			wantIs:   os.ErrPermission,
			wantCode: domain.ExitNotExecutable,
			wantRun:  true,
		},
		{
			name: "wait_failed",
			tool: "trid",
			setup: func(f *dispatchFixture) {
				f.executor.err = fmt.Errorf("%w: wait: interrupted", domain.ErrExecutionFailed)
			},
			wantIs:   domain.ErrExecutionFailed,
			wantCode: domain.ExitFailure,
			wantRun:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newDispatchFixture()
			if tt.setup != nil {
				tt.setup(f)
			}

			code, err := f.service().Dispatch(context.Background(), tt.tool, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantRun, len(f.executor.runs) == 1)
		})
	}
}
