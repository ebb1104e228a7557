package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/Paintersrp/skymood/internal/task"
)

const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "system"
)

// LogEntry is a single line of task output.
type LogEntry struct {
	Timestamp time.Time
	Message   string
	Source    string
	Level     string
}

// ExitStatus describes how a task process ended. Signal is set when the
// process was terminated by a signal, in which case Code is -1.
type ExitStatus struct {
	Code   int
	Signal string
}

// Success reports whether the process exited with status zero.
func (s ExitStatus) Success() bool {
	return s.Signal == "" && s.Code == 0
}

func (s ExitStatus) String() string {
	if s.Signal != "" {
		return "signal " + s.Signal
	}
	return fmt.Sprintf("code %d", s.Code)
}

// Instance is a launched task process. All methods except Logs are safe to
// call after the process has been reaped.
type Instance interface {
	// Name returns the task name the instance was launched for.
	Name() string

	// PID returns the operating system process id.
	PID() int

	// Poll reports the exit status without blocking. The boolean is false
	// while the process is still running.
	Poll() (ExitStatus, bool)

	// Done is closed once the process has been reaped, independent of
	// output still being drained.
	Done() <-chan struct{}

	// Terminate requests a graceful shutdown using the least forceful
	// signal the platform offers. Signalling an exited process is a no-op.
	Terminate() error

	// Kill forcibly stops the process. Killing an exited process is a no-op.
	Kill() error

	// Logs streams task output. The channel is closed once both output
	// streams reach EOF, or a bounded delay after exit when children of the
	// task keep them open. A nil channel means output is not captured.
	Logs() <-chan LogEntry
}

// GroupInstance is implemented by instances whose task can leave processes
// behind after it exits, such as the vite server started by npm or the
// worker forked by the uvicorn reloader. The methods reach only those
// leftovers, never the reaped task process itself.
type GroupInstance interface {
	// TerminateGroup asks leftover processes to stop and reports whether
	// any were found.
	TerminateGroup() (bool, error)

	// GroupRunning reports whether any leftover process remains.
	GroupRunning() bool

	// KillGroup forcibly stops leftover processes.
	KillGroup() error
}

// Runtime starts task processes.
type Runtime interface {
	// Launch starts the task and returns once the operating system has
	// created the process. It does not wait for the task to become ready.
	Launch(ctx context.Context, spec task.Spec) (Instance, error)
}

// LaunchError reports that a task could not be started.
type LaunchError struct {
	Task string
	Err  error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launch %s: %v", e.Task, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}
