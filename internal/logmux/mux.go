package logmux

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/Paintersrp/skymood/internal/engine"
	"github.com/Paintersrp/skymood/internal/runtime"
)

// Mux fans in supervisor events from multiple sources and delivers them via a
// bounded channel. Task output may be dropped when downstream consumers
// cannot keep up; the mux then emits a synthesized warning event carrying the
// number of discarded lines. Lifecycle events are never dropped.
type Mux struct {
	out  chan engine.Event
	sink *FileSink

	mu      sync.Mutex
	drops   map[string]int
	inputs  sync.WaitGroup
	sinkErr error
}

// New constructs a mux backed by a channel of the provided size. A size of
// zero results in a minimally buffered channel.
func New(size int, opts ...SinkOption) (*Mux, error) {
	if size <= 0 {
		size = 1
	}
	m := &Mux{
		out:   make(chan engine.Event, size),
		drops: make(map[string]int),
	}
	sink, err := newFileSink(opts...)
	if err != nil {
		return nil, err
	}
	m.sink = sink
	return m, nil
}

// Output exposes the muxed event channel.
func (m *Mux) Output() <-chan engine.Event {
	return m.out
}

// Sink returns the file sink, or nil when no log directory was configured.
func (m *Mux) Sink() *FileSink {
	return m.sink
}

// Add registers a new source channel. The mux consumes events until the
// source channel is closed.
func (m *Mux) Add(source <-chan engine.Event) {
	if source == nil {
		return
	}
	m.inputs.Add(1)
	go func() {
		defer m.inputs.Done()
		for evt := range source {
			evt = normalize(evt)
			m.persist(evt)
			if evt.Type != engine.EventTypeLog {
				m.flushPendingBlocking(evt.Task)
				m.out <- evt
				continue
			}
			m.deliver(evt)
		}
	}()
}

// Close waits for all sources to be drained, emits any pending drop metadata,
// closes the file sink and then the output channel. It returns the first
// error encountered while persisting output.
func (m *Mux) Close() error {
	m.inputs.Wait()
	m.flushDrops()
	var err error
	if m.sink != nil {
		err = m.sink.Close()
	}
	close(m.out)
	m.mu.Lock()
	defer m.mu.Unlock()
	return multierr.Append(m.sinkErr, err)
}

func (m *Mux) persist(evt engine.Event) {
	if m.sink == nil {
		return
	}
	if err := m.sink.Write(evt); err != nil {
		m.mu.Lock()
		if m.sinkErr == nil {
			m.sinkErr = err
		}
		m.mu.Unlock()
	}
}

func (m *Mux) deliver(evt engine.Event) {
	if !m.flushPending(evt.Task) {
		m.recordDrop(evt.Task, 1)
		return
	}
	if m.trySend(evt) {
		return
	}
	m.recordDrop(evt.Task, 1)
}

func (m *Mux) flushPending(name string) bool {
	count := m.takeDrops(name)
	if count == 0 {
		return true
	}
	if m.trySend(synthesizeDropEvent(name, count)) {
		return true
	}
	m.recordDrop(name, count)
	return false
}

func (m *Mux) flushPendingBlocking(name string) {
	if count := m.takeDrops(name); count > 0 {
		m.out <- synthesizeDropEvent(name, count)
	}
}

func (m *Mux) takeDrops(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := m.drops[name]
	delete(m.drops, name)
	return count
}

func (m *Mux) recordDrop(name string, count int) {
	if count <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops[name] += count
}

func (m *Mux) flushDrops() {
	m.mu.Lock()
	pending := m.drops
	m.drops = make(map[string]int)
	m.mu.Unlock()
	for name, count := range pending {
		if count > 0 {
			m.out <- synthesizeDropEvent(name, count)
		}
	}
}

func (m *Mux) trySend(evt engine.Event) bool {
	select {
	case m.out <- evt:
		return true
	default:
		return false
	}
}

func normalize(evt engine.Event) engine.Event {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	if evt.Source == "" {
		if evt.Type == engine.EventTypeLog {
			evt.Source = runtime.LogSourceStdout
		} else {
			evt.Source = runtime.LogSourceSystem
		}
	}
	if evt.Level == "" {
		if evt.Source == runtime.LogSourceStderr {
			evt.Level = "warn"
		} else {
			evt.Level = "info"
		}
	}
	return evt
}

func synthesizeDropEvent(name string, count int) engine.Event {
	return engine.Event{
		Timestamp: time.Now(),
		Task:      name,
		Type:      engine.EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    runtime.LogSourceSystem,
	}
}
