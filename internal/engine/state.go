package engine

import (
	"time"

	"github.com/Paintersrp/skymood/internal/runtime"
)

// State is the lifecycle state of a supervised task.
type State int

const (
	StateRunning State = iota
	StateExitedOk
	StateExitedError
	StateTerminated
	StateKilled
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateExitedOk:
		return "exited"
	case StateExitedError:
		return "failed"
	case StateTerminated:
		return "terminated"
	case StateKilled:
		return "killed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s != StateRunning
}

// Trigger records what started the shutdown sequence.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerExit
	TriggerInterrupt
	TriggerLaunchFailure
)

func (t Trigger) String() string {
	switch t {
	case TriggerExit:
		return "exit"
	case TriggerInterrupt:
		return "interrupt"
	case TriggerLaunchFailure:
		return "launch_failure"
	default:
		return "none"
	}
}

// HandleStatus is a snapshot of one supervised task.
type HandleStatus struct {
	Name  string
	PID   int
	State State
	Exit  runtime.ExitStatus
}

// Result summarises a finished session.
type Result struct {
	Trigger  Trigger
	Offender string
	Handles  []HandleStatus
	Timeouts []ShutdownTimeout
	Shutdown time.Duration
}

// Handle returns the status of the named task.
func (r *Result) Handle(name string) (HandleStatus, bool) {
	if r == nil {
		return HandleStatus{}, false
	}
	for _, h := range r.Handles {
		if h.Name == name {
			return h, true
		}
	}
	return HandleStatus{}, false
}

// handle is the supervisor's record of one launched task. It is only touched
// by the goroutine running the supervisor.
type handle struct {
	name          string
	inst          runtime.Instance
	state         State
	exit          runtime.ExitStatus
	stopRequested time.Time
}

func (h *handle) status() HandleStatus {
	return HandleStatus{Name: h.name, PID: h.inst.PID(), State: h.state, Exit: h.exit}
}
