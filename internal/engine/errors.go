package engine

import (
	"fmt"
	"time"

	"github.com/Paintersrp/skymood/internal/runtime"
)

// UnexpectedExitError reports the task whose exit ended the session.
type UnexpectedExitError struct {
	Task   string
	Status runtime.ExitStatus
}

func (e *UnexpectedExitError) Error() string {
	if e.Status.Signal != "" {
		return fmt.Sprintf("%s was killed by %s", e.Task, e.Status.Signal)
	}
	return fmt.Sprintf("%s exited with code %d", e.Task, e.Status.Code)
}

// ShutdownTimeout records a task that ignored graceful termination and had to
// be killed. It is informational and does not change the session outcome.
type ShutdownTimeout struct {
	Task  string
	Grace time.Duration
}

func (t ShutdownTimeout) Error() string {
	return fmt.Sprintf("%s did not stop within %s and was killed", t.Task, t.Grace)
}
