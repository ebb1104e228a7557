package engine

import (
	"time"

	"github.com/Paintersrp/skymood/internal/runtime"
)

// EventType captures lifecycle notifications emitted by the supervisor.
type EventType string

const (
	EventTypeStarting EventType = "starting"
	EventTypeStarted  EventType = "started"
	EventTypeExited   EventType = "exited"
	EventTypeStopping EventType = "stopping"
	EventTypeStopped  EventType = "stopped"
	EventTypeKilled   EventType = "killed"
	EventTypeLog      EventType = "log"
	EventTypeError    EventType = "error"
)

// Event represents a single lifecycle or log notification.
type Event struct {
	Timestamp time.Time
	Task      string
	Type      EventType
	Message   string
	Level     string
	Source    string
	Err       error
	Reason    string
}

const (
	ReasonUnexpectedExit = "unexpected_exit"
	ReasonInterrupt      = "interrupt"
	ReasonLaunchFailure  = "launch_failure"
	ReasonGraceExpired   = "grace_expired"
	ReasonShutdown       = "shutdown"
)

func sendEvent(events chan<- Event, task string, t EventType, level, message, reason string, err error) {
	if events == nil {
		return
	}
	events <- Event{
		Timestamp: time.Now(),
		Task:      task,
		Type:      t,
		Message:   message,
		Level:     level,
		Source:    runtime.LogSourceSystem,
		Err:       err,
		Reason:    reason,
	}
}
