//go:build !windows

package process

import (
	"os"
	"syscall"

	"github.com/tridirt/tridirt/internal/core/domain"
)

var (
	forwardedSignals   = []os.Signal{syscall.SIGTERM, syscall.SIGHUP}
	interactiveSignals = []os.Signal{syscall.SIGINT, syscall.SIGQUIT}
)

func exitCode(state *os.ProcessState) int {
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return domain.SignalExitCode(int(ws.Signal()))
	}
	return state.ExitCode()
}
