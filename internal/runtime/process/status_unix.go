//go:build !windows

package process

import (
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/skymood/internal/runtime"
)

func exitStatusOf(state *os.ProcessState) runtime.ExitStatus {
	if state == nil {
		return runtime.ExitStatus{Code: -1}
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return runtime.ExitStatus{Code: -1, Signal: unix.SignalName(unix.Signal(ws.Signal()))}
	}
	return runtime.ExitStatus{Code: state.ExitCode()}
}
