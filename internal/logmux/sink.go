package logmux

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/Paintersrp/skymood/internal/cliutil"
	"github.com/Paintersrp/skymood/internal/engine"
)

// SinkOption configures the per-task log file sink.
type SinkOption func(*sinkConfig)

type sinkConfig struct {
	directory string
	session   string
}

// WithDirectory enables persistence of task output below dir. Each session
// writes to its own subdirectory.
func WithDirectory(dir string) SinkOption {
	return func(cfg *sinkConfig) {
		cfg.directory = dir
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) SinkOption {
	return func(cfg *sinkConfig) {
		cfg.session = id
	}
}

// FileSink appends each task's events to <directory>/<session>/<task>.log,
// masking secrets the same way terminal output does.
type FileSink struct {
	dir     string
	session string

	mu     sync.Mutex
	files  map[string]*sinkFile
	closed bool
}

type sinkFile struct {
	f *os.File
	w *bufio.Writer
}

func newFileSink(opts ...SinkOption) (*FileSink, error) {
	var cfg sinkConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.directory == "" {
		return nil, nil
	}
	if cfg.session == "" {
		cfg.session = uuid.NewString()
	}
	dir := filepath.Join(cfg.directory, cfg.session)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	return &FileSink{dir: dir, session: cfg.session, files: make(map[string]*sinkFile)}, nil
}

// Dir returns the session directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Session returns the session identifier.
func (s *FileSink) Session() string {
	return s.session
}

// Write appends evt to its task's file. Events without a task are ignored.
func (s *FileSink) Write(evt engine.Event) error {
	if evt.Task == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	file, err := s.open(evt.Task)
	if err != nil {
		return err
	}
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err = fmt.Fprintf(file.w, "%s [%s] %s\n", ts.Format(time.RFC3339Nano), evt.Source, cliutil.RedactSecrets(evt.Message))
	if err == nil && evt.Type != engine.EventTypeLog {
		err = file.w.Flush()
	}
	if err != nil {
		return fmt.Errorf("write %s log: %w", evt.Task, err)
	}
	return nil
}

func (s *FileSink) open(name string) (*sinkFile, error) {
	if file, ok := s.files[name]; ok {
		return file, nil
	}
	path := filepath.Join(s.dir, sanitizeFileName(name)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s log: %w", name, err)
	}
	file := &sinkFile{f: f, w: bufio.NewWriter(f)}
	s.files[name] = file
	return file, nil
}

// Close flushes and closes every open file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	for _, file := range s.files {
		err = multierr.Append(err, file.w.Flush())
		err = multierr.Append(err, file.f.Close())
	}
	return err
}

func sanitizeFileName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, name)
}
