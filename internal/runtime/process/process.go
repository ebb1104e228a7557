package process

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/Paintersrp/skymood/internal/runtime"
	"github.com/Paintersrp/skymood/internal/task"
)

const (
	logBuffer   = 256
	maxLineSize = 64 * 1024
)

// outputDrainDelay bounds how long output is still read from pipes held open
// by the task's children after the task process itself has exited.
const outputDrainDelay = 2 * time.Second

type runtimeImpl struct {
	environ func() []string
	capture bool
}

// Option customises the process runtime.
type Option func(*runtimeImpl)

// WithEnviron replaces the inherited base environment.
func WithEnviron(fn func() []string) Option {
	return func(r *runtimeImpl) {
		if fn != nil {
			r.environ = fn
		}
	}
}

// WithoutCapture connects task output directly to the supervisor's stdout
// and stderr instead of streaming it through Logs.
func WithoutCapture() Option {
	return func(r *runtimeImpl) {
		r.capture = false
	}
}

// New constructs a runtime that executes tasks as local processes.
func New(opts ...Option) runtime.Runtime {
	r := &runtimeImpl{environ: os.Environ, capture: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *runtimeImpl) Launch(ctx context.Context, spec task.Spec) (runtime.Instance, error) {
	if len(spec.Command) == 0 {
		return nil, &runtime.LaunchError{Task: spec.Name, Err: fmt.Errorf("no command")}
	}
	if err := ctx.Err(); err != nil {
		return nil, &runtime.LaunchError{Task: spec.Name, Err: err}
	}

	// The supervisor owns termination, so the command is not bound to ctx.
	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Environ(r.environ())
	configureCmdSysProcAttr(cmd)

	inst := &processInstance{
		name: spec.Name,
		cmd:  cmd,
		done: make(chan struct{}),
	}

	var streams []*outputStream
	if r.capture {
		var err error
		streams, err = openStreams(inst)
		if err != nil {
			return nil, &runtime.LaunchError{Task: spec.Name, Err: err}
		}
		inst.logs = make(chan runtime.LogEntry, logBuffer)
		cmd.Stdout = streams[0].w
		cmd.Stderr = streams[1].w
	} else {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	if err := cmd.Start(); err != nil {
		for _, st := range streams {
			st.closeAll()
		}
		return nil, &runtime.LaunchError{Task: spec.Name, Err: err}
	}
	for _, st := range streams {
		_ = st.w.Close()
	}

	// Output goes to plain file descriptors, so Wait returns as soon as the
	// task process exits even when its children still hold the pipes.
	go func() {
		_ = cmd.Wait()
		inst.exit(exitStatusOf(cmd.ProcessState))
	}()
	if len(streams) > 0 {
		go inst.drain(streams)
	}

	return inst, nil
}

// outputStream is one captured output pipe. The write end belongs to the
// child after Start.
type outputStream struct {
	r, w   *os.File
	writer *lineWriter
}

func openStreams(inst *processInstance) ([]*outputStream, error) {
	var streams []*outputStream
	for _, source := range []string{runtime.LogSourceStdout, runtime.LogSourceStderr} {
		r, w, err := os.Pipe()
		if err != nil {
			for _, st := range streams {
				st.closeAll()
			}
			return nil, fmt.Errorf("open %s pipe: %w", source, err)
		}
		streams = append(streams, &outputStream{r: r, w: w, writer: &lineWriter{inst: inst, source: source}})
	}
	return streams, nil
}

func (st *outputStream) closeAll() {
	_ = st.r.Close()
	_ = st.w.Close()
}

// drain copies task output into Logs until every writer has closed its end
// of the pipes. Once the task process has exited, leftover children get
// outputDrainDelay before the pipes are closed on them.
func (p *processInstance) drain(streams []*outputStream) {
	var wg sync.WaitGroup
	for _, st := range streams {
		wg.Add(1)
		go func(st *outputStream) {
			defer wg.Done()
			_, _ = io.Copy(st.writer, st.r)
			st.writer.flush()
		}(st)
	}

	copied := make(chan struct{})
	go func() {
		wg.Wait()
		close(copied)
	}()

	select {
	case <-copied:
	case <-p.done:
		timer := time.NewTimer(outputDrainDelay)
		select {
		case <-copied:
		case <-timer.C:
			// Lines still in flight after this point are discarded by emit.
		}
		timer.Stop()
	}
	for _, st := range streams {
		_ = st.r.Close()
	}
	// Logs closes only after the exit status is recorded.
	<-p.done
	p.closeLogs()
}

type processInstance struct {
	name string
	cmd  *exec.Cmd
	logs chan runtime.LogEntry
	done chan struct{}

	mu      sync.Mutex
	status  runtime.ExitStatus
	dropped int
	closed  bool
}

func (p *processInstance) Name() string {
	return p.name
}

func (p *processInstance) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

func (p *processInstance) Poll() (runtime.ExitStatus, bool) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.status, true
	default:
		return runtime.ExitStatus{}, false
	}
}

func (p *processInstance) Done() <-chan struct{} {
	return p.done
}

func (p *processInstance) Logs() <-chan runtime.LogEntry {
	return p.logs
}

func (p *processInstance) exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *processInstance) exit(status runtime.ExitStatus) {
	p.mu.Lock()
	p.status = status
	p.mu.Unlock()
	close(p.done)
}

func (p *processInstance) closeLogs() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.dropped > 0 {
		select {
		case p.logs <- runtime.LogEntry{
			Timestamp: time.Now(),
			Message:   fmt.Sprintf("dropped=%d", p.dropped),
			Source:    runtime.LogSourceSystem,
			Level:     "warn",
		}:
		default:
		}
		p.dropped = 0
	}
	p.closed = true
	close(p.logs)
}

// emit never blocks: a reader that falls behind loses lines rather than
// stalling the task's output pipe.
func (p *processInstance) emit(line, source string) {
	entry := runtime.LogEntry{Timestamp: time.Now(), Message: line, Source: source}
	if source == runtime.LogSourceStderr {
		entry.Level = "warn"
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if p.dropped > 0 {
		meta := runtime.LogEntry{
			Timestamp: entry.Timestamp,
			Message:   fmt.Sprintf("dropped=%d", p.dropped),
			Source:    runtime.LogSourceSystem,
			Level:     "warn",
		}
		select {
		case p.logs <- meta:
			p.dropped = 0
		default:
			p.dropped++
			return
		}
	}
	select {
	case p.logs <- entry:
	default:
		p.dropped++
	}
}

type lineWriter struct {
	inst   *processInstance
	source string

	mu  sync.Mutex
	buf []byte
}

func (w *lineWriter) Write(b []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, b...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.inst.emit(strings.TrimRight(string(w.buf[:i]), "\r"), w.source)
		w.buf = w.buf[i+1:]
	}
	if len(w.buf) >= maxLineSize {
		w.inst.emit(string(w.buf), w.source)
		w.buf = nil
	}
	return len(b), nil
}

func (w *lineWriter) flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.buf) > 0 {
		w.inst.emit(strings.TrimRight(string(w.buf), "\r"), w.source)
		w.buf = nil
	}
}
