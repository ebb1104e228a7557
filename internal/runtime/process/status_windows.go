//go:build windows

package process

import (
	"os"

	"github.com/Paintersrp/skymood/internal/runtime"
)

func exitStatusOf(state *os.ProcessState) runtime.ExitStatus {
	if state == nil {
		return runtime.ExitStatus{Code: -1}
	}
	return runtime.ExitStatus{Code: state.ExitCode()}
}
