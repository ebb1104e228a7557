package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Paintersrp/skymood/internal/metrics"
	"github.com/Paintersrp/skymood/internal/runtime"
	"github.com/Paintersrp/skymood/internal/task"
)

const (
	DefaultPollInterval = 500 * time.Millisecond
	DefaultGracePeriod  = 5 * time.Second
	defaultReapTimeout  = 2 * time.Second
)

// Option customises a Supervisor.
type Option func(*Supervisor)

// WithPollInterval sets how often running tasks are polled for exit.
func WithPollInterval(d time.Duration) Option {
	return func(s *Supervisor) {
		if d > 0 {
			s.poll = d
		}
	}
}

// WithGracePeriod sets how long shutdown waits after the termination request
// before killing a task. Zero kills immediately.
func WithGracePeriod(d time.Duration) Option {
	return func(s *Supervisor) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithEvents delivers lifecycle and task output events to ch. The caller
// must keep draining ch until Run returns.
func WithEvents(ch chan<- Event) Option {
	return func(s *Supervisor) {
		s.events = ch
	}
}

// WithLogger sets the diagnostic logger. Lifecycle transitions that are also
// delivered as events are logged at debug level.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(s *Supervisor) {
		if log != nil {
			s.log = log
		}
	}
}

// Supervisor launches a fixed set of tasks, watches them from a single
// control goroutine and stops the whole group once any task exits or the
// run context is cancelled. A Supervisor runs once.
type Supervisor struct {
	runtime runtime.Runtime
	specs   task.Set

	poll        time.Duration
	grace       time.Duration
	reapTimeout time.Duration

	events chan<- Event
	log    *zap.SugaredLogger

	handles  []*handle
	started  bool
	trigger  Trigger
	offender *handle
	result   *Result

	forwarders sync.WaitGroup
	emitMu     sync.Mutex
	detached   bool
}

// New constructs a supervisor for the given tasks.
func New(rt runtime.Runtime, specs task.Set, opts ...Option) *Supervisor {
	s := &Supervisor{
		runtime:     rt,
		specs:       specs,
		poll:        DefaultPollInterval,
		grace:       DefaultGracePeriod,
		reapTimeout: defaultReapTimeout,
		log:         zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run launches every task, monitors them until one exits or ctx is
// cancelled, then shuts the group down. It returns *runtime.LaunchError when
// startup failed, *UnexpectedExitError when a task exited on its own, and nil
// after an interrupt. The Result is non-nil whenever shutdown ran.
func (s *Supervisor) Run(ctx context.Context) (*Result, error) {
	if s.started {
		return s.result, errors.New("supervisor already ran")
	}
	s.started = true
	defer s.detach()

	if err := s.launchAll(ctx); err != nil {
		return s.Shutdown(), err
	}
	if s.trigger == TriggerNone {
		s.monitor(ctx)
	}
	res := s.Shutdown()

	if s.trigger == TriggerExit && s.offender != nil {
		return res, &UnexpectedExitError{Task: s.offender.name, Status: s.offender.exit}
	}
	return res, nil
}

func (s *Supervisor) launchAll(ctx context.Context) error {
	for _, spec := range s.specs {
		if ctx.Err() != nil {
			s.interrupted()
			s.log.Debugw("interrupted during startup", "pending", spec.Name)
			return nil
		}
		if s.pollOnce() {
			return nil
		}

		sendEvent(s.events, spec.Name, EventTypeStarting, "info",
			fmt.Sprintf("Starting %s -> %s (cwd=%s)", spec.Name, spec.String(), spec.Dir), "", nil)

		inst, err := s.runtime.Launch(ctx, spec)
		if err != nil {
			var launchErr *runtime.LaunchError
			if !errors.As(err, &launchErr) {
				err = &runtime.LaunchError{Task: spec.Name, Err: err}
			}
			s.setTrigger(TriggerLaunchFailure, nil)
			s.log.Debugw("task launch failed", "task", spec.Name, "error", err)
			sendEvent(s.events, spec.Name, EventTypeError, "error", err.Error(), ReasonLaunchFailure, err)
			return err
		}

		h := &handle{name: spec.Name, inst: inst, state: StateRunning}
		s.handles = append(s.handles, h)
		metrics.TaskLaunched(h.name)
		s.log.Debugw("task started", "task", h.name, "pid", inst.PID(), "dir", spec.Dir)
		sendEvent(s.events, h.name, EventTypeStarted, "info", fmt.Sprintf("%s started (pid %d)", h.name, inst.PID()), "", nil)

		if logs := inst.Logs(); logs != nil {
			s.forwarders.Add(1)
			go s.forwardLogs(h.name, logs)
		}
	}
	return nil
}

func (s *Supervisor) monitor(ctx context.Context) {
	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		if s.pollOnce() {
			return
		}
		select {
		case <-ctx.Done():
			s.interrupted()
			s.log.Debugw("interrupt received, stopping tasks")
			return
		case <-ticker.C:
		}
	}
}

// pollOnce records spontaneous exits and reports whether any task has left
// the running state. The first exit observed becomes the shutdown trigger.
func (s *Supervisor) pollOnce() bool {
	observed := false
	for _, h := range s.handles {
		if h.state.Terminal() {
			observed = observed || h.state == StateExitedOk || h.state == StateExitedError
			continue
		}
		status, ok := h.inst.Poll()
		if !ok {
			continue
		}
		observed = true
		h.exit = status
		h.state = StateExitedError
		if status.Success() {
			h.state = StateExitedOk
		}
		metrics.TaskStopped(h.name, h.state.String())
		s.setTrigger(TriggerExit, h)
		s.log.Debugw("task exited", "task", h.name, "status", status.String())
		sendEvent(s.events, h.name, EventTypeExited, "error",
			fmt.Sprintf("%s exited with %s", h.name, status), ReasonUnexpectedExit, nil)
	}
	return observed
}

func (s *Supervisor) interrupted() {
	if s.trigger != TriggerNone {
		return
	}
	s.setTrigger(TriggerInterrupt, nil)
	sendEvent(s.events, "", EventTypeStopping, "info", "Received interrupt, shutting down...", ReasonInterrupt, nil)
}

func (s *Supervisor) setTrigger(t Trigger, h *handle) {
	if s.trigger != TriggerNone {
		return
	}
	s.trigger = t
	s.offender = h
}

// Shutdown stops every task that is still running: a graceful termination
// request, a wait of up to the grace period, then a forced kill. It is
// idempotent; later calls return the first result without signalling.
func (s *Supervisor) Shutdown() *Result {
	if s.result != nil {
		return s.result
	}
	// A direct call without a prior trigger counts as an operator request.
	s.setTrigger(TriggerInterrupt, nil)
	start := time.Now()

	// Exits since the last tick are recorded as spontaneous, not as stops.
	s.pollOnce()

	var signalErr error
	var pending, leftovers []*handle
	for _, h := range s.handles {
		if h.state.Terminal() {
			// The task itself is never signalled again, only what it left
			// running in its group.
			if g, ok := h.inst.(runtime.GroupInstance); ok {
				found, err := g.TerminateGroup()
				if err != nil {
					signalErr = multierr.Append(signalErr, err)
				}
				if found {
					s.log.Debugw("stopping processes left by exited task", "task", h.name)
					leftovers = append(leftovers, h)
				}
			}
			continue
		}
		sendEvent(s.events, h.name, EventTypeStopping, "info", fmt.Sprintf("Stopping %s...", h.name), ReasonShutdown, nil)
		if err := h.inst.Terminate(); err != nil {
			signalErr = multierr.Append(signalErr, err)
		}
		h.stopRequested = time.Now()
		pending = append(pending, h)
	}

	pending, leftovers = s.awaitStopped(pending, leftovers, start.Add(s.grace))

	var timeouts []ShutdownTimeout
	for _, h := range pending {
		if err := h.inst.Kill(); err != nil {
			signalErr = multierr.Append(signalErr, err)
		}
		h.state = StateKilled
		timeout := ShutdownTimeout{Task: h.name, Grace: s.grace}
		timeouts = append(timeouts, timeout)
		metrics.IncrementForcedKill(h.name)
		metrics.TaskStopped(h.name, h.state.String())
		s.log.Debugw("task killed", "task", h.name, "grace", s.grace)
		sendEvent(s.events, h.name, EventTypeKilled, "warn", timeout.Error(), ReasonGraceExpired, nil)
	}
	for _, h := range leftovers {
		if err := h.inst.(runtime.GroupInstance).KillGroup(); err != nil {
			signalErr = multierr.Append(signalErr, err)
		}
		metrics.IncrementForcedKill(h.name)
		s.log.Debugw("killed processes left by task", "task", h.name, "grace", s.grace)
		sendEvent(s.events, h.name, EventTypeKilled, "warn",
			fmt.Sprintf("killed processes left behind by %s", h.name), ReasonGraceExpired, nil)
	}
	s.reap(pending)

	if signalErr != nil {
		s.log.Warnw("signal delivery failed", "error", signalErr)
	}

	res := &Result{
		Trigger:  s.trigger,
		Timeouts: timeouts,
		Shutdown: time.Since(start),
	}
	if s.offender != nil {
		res.Offender = s.offender.name
	}
	for _, h := range s.handles {
		res.Handles = append(res.Handles, h.status())
	}
	metrics.ObserveShutdown(res.Shutdown)
	s.result = res
	return res
}

// awaitStopped polls the pending tasks and the groups of exited tasks until
// all are gone or the deadline passes, and returns what is still running.
func (s *Supervisor) awaitStopped(pending, leftovers []*handle, deadline time.Time) ([]*handle, []*handle) {
	for {
		remaining := pending[:0]
		for _, h := range pending {
			status, ok := h.inst.Poll()
			if !ok {
				remaining = append(remaining, h)
				continue
			}
			h.exit = status
			h.state = StateTerminated
			metrics.TaskStopped(h.name, h.state.String())
			s.log.Debugw("task stopped", "task", h.name, "status", status.String(), "after", time.Since(h.stopRequested))
			sendEvent(s.events, h.name, EventTypeStopped, "info", fmt.Sprintf("stopped %s", h.name), ReasonShutdown, nil)
			// Children that outlived the group termination are waited on too.
			leftovers = append(leftovers, h)
		}
		pending = remaining

		alive := leftovers[:0]
		for _, h := range leftovers {
			if g, ok := h.inst.(runtime.GroupInstance); ok && g.GroupRunning() {
				alive = append(alive, h)
			}
		}
		leftovers = alive

		wait := time.Until(deadline)
		if (len(pending) == 0 && len(leftovers) == 0) || wait <= 0 {
			return pending, leftovers
		}
		if wait > s.poll {
			wait = s.poll
		}
		time.Sleep(wait)
	}
}

// reap waits, bounded, for killed tasks to be collected so their exit status
// is recorded and their output streams are closed.
func (s *Supervisor) reap(killed []*handle) {
	if len(killed) == 0 {
		return
	}
	timer := time.NewTimer(s.reapTimeout)
	defer timer.Stop()
	for _, h := range killed {
		select {
		case <-h.inst.Done():
			if status, ok := h.inst.Poll(); ok {
				h.exit = status
			}
		case <-timer.C:
			s.log.Warnw("task not reaped after kill", "task", h.name)
			return
		}
	}
}

func (s *Supervisor) forwardLogs(name string, logs <-chan runtime.LogEntry) {
	defer s.forwarders.Done()
	for entry := range logs {
		if entry.Message == "" {
			continue
		}
		level := entry.Level
		if level == "" {
			level = "info"
		}
		source := entry.Source
		if source == "" {
			source = runtime.LogSourceStdout
		}
		ts := entry.Timestamp
		if ts.IsZero() {
			ts = time.Now()
		}
		s.emitLog(Event{
			Timestamp: ts,
			Task:      name,
			Type:      EventTypeLog,
			Message:   entry.Message,
			Level:     level,
			Source:    source,
		})
	}
}

func (s *Supervisor) emitLog(evt Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.events == nil || s.detached {
		return
	}
	s.events <- evt
}

// detach waits briefly for output forwarding to finish and then stops any
// further delivery so callers may close the events channel after Run.
func (s *Supervisor) detach() {
	done := make(chan struct{})
	go func() {
		s.forwarders.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(s.reapTimeout):
		s.log.Debugw("output forwarding still active after shutdown")
	}
	s.emitMu.Lock()
	s.detached = true
	s.emitMu.Unlock()
}
