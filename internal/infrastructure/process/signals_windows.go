//go:build windows

package process

import (
	"os"
)

var (
	forwardedSignals   []os.Signal
	interactiveSignals = []os.Signal{os.Interrupt}
)

func exitCode(state *os.ProcessState) int {
	return state.ExitCode()
}
