package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/Paintersrp/skymood/internal/engine"
	"github.com/Paintersrp/skymood/internal/runtime"
)

var taskPalette = []lipgloss.Color{
	lipgloss.Color("#06B6D4"), // cyan
	lipgloss.Color("#7C3AED"), // purple
	lipgloss.Color("#10B981"), // green
	lipgloss.Color("#F59E0B"), // amber
	lipgloss.Color("#3B82F6"), // blue
}

var (
	colorWarn  = lipgloss.Color("#F59E0B")
	colorError = lipgloss.Color("#EF4444")
	colorMuted = lipgloss.Color("#9CA3AF")
)

// IsTerminal reports whether w is a terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Printer renders supervisor events for the operator, either as prefixed
// text lines or as JSON records.
type Printer struct {
	out    io.Writer
	stderr io.Writer
	enc    *json.Encoder

	color  bool
	width  int
	styles map[string]lipgloss.Style
	system lipgloss.Style
	warn   lipgloss.Style
	failed lipgloss.Style

	mu sync.Mutex
}

// NewPrinter constructs a printer for the given task names. format is "text"
// or "json". Text output is colored when out is a terminal and NO_COLOR is
// unset.
func NewPrinter(out, stderr io.Writer, format string, names []string) *Printer {
	p := &Printer{out: out, stderr: stderr, styles: make(map[string]lipgloss.Style, len(names))}
	if format == "json" {
		p.enc = json.NewEncoder(out)
		return p
	}

	p.color = IsTerminal(out) && os.Getenv("NO_COLOR") == ""
	renderer := lipgloss.NewRenderer(out)
	for i, name := range names {
		if len(name) > p.width {
			p.width = len(name)
		}
		p.styles[name] = renderer.NewStyle().Foreground(taskPalette[i%len(taskPalette)]).Bold(true)
	}
	p.system = renderer.NewStyle().Foreground(colorMuted)
	p.warn = renderer.NewStyle().Foreground(colorWarn)
	p.failed = renderer.NewStyle().Foreground(colorError).Bold(true)
	return p
}

// Print writes a single event.
func (p *Printer) Print(evt engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.enc != nil {
		EncodeLogEvent(p.enc, p.stderr, evt)
		return
	}

	message := RedactSecrets(evt.Message)
	if evt.Type != engine.EventTypeLog {
		fmt.Fprintln(p.out, p.render(p.lifecycleStyle(evt), message))
		return
	}

	prefix := evt.Task + strings.Repeat(" ", max(p.width-len(evt.Task), 0))
	if style, ok := p.styles[evt.Task]; ok {
		prefix = p.render(style, prefix)
	}
	if evt.Source == runtime.LogSourceSystem {
		message = p.render(p.warn, message)
	}
	fmt.Fprintf(p.out, "%s | %s\n", prefix, message)
}

// Drain prints every event from events until the channel is closed.
func (p *Printer) Drain(events <-chan engine.Event) {
	for evt := range events {
		p.Print(evt)
	}
}

func (p *Printer) render(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

func (p *Printer) lifecycleStyle(evt engine.Event) lipgloss.Style {
	switch evt.Type {
	case engine.EventTypeExited, engine.EventTypeError:
		return p.failed
	case engine.EventTypeKilled:
		return p.warn
	default:
		return p.system
	}
}
