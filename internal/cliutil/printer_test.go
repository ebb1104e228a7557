package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/Paintersrp/skymood/internal/engine"
	"github.com/Paintersrp/skymood/internal/runtime"
)

func TestPrinterTextPrefixesTaskOutput(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := NewPrinter(&out, &errBuf, "text", []string{"frontend", "backend"})

	p.Print(engine.Event{Task: "frontend", Type: engine.EventTypeStarting, Message: "Starting frontend -> npm run dev (cwd=/srv/web)"})
	p.Print(engine.Event{Task: "backend", Type: engine.EventTypeLog, Message: "Uvicorn running", Source: runtime.LogSourceStderr})
	p.Print(engine.Event{Task: "frontend", Type: engine.EventTypeLog, Message: "VITE ready"})
	p.Print(engine.Event{Task: "backend", Type: engine.EventTypeExited, Message: "backend exited with code 1"})

	want := strings.Join([]string{
		"Starting frontend -> npm run dev (cwd=/srv/web)",
		"backend  | Uvicorn running",
		"frontend | VITE ready",
		"backend exited with code 1",
		"",
	}, "\n")
	if out.String() != want {
		t.Fatalf("unexpected output:\n%q\nwant:\n%q", out.String(), want)
	}
	if errBuf.Len() != 0 {
		t.Fatalf("unexpected stderr output %q", errBuf.String())
	}
}

func TestPrinterTextRedactsSecrets(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &out, "text", []string{"backend"})

	p.Print(engine.Event{Task: "backend", Type: engine.EventTypeLog, Message: "DB_PASSWORD=hunter2"})

	if strings.Contains(out.String(), "hunter2") {
		t.Fatalf("expected secret to be redacted, got %q", out.String())
	}
}

func TestPrinterTextKeepsSourceExcerpts(t *testing.T) {
	var out bytes.Buffer
	p := NewPrinter(&out, &out, "text", []string{"frontend"})

	p.Print(engine.Event{Task: "frontend", Type: engine.EventTypeLog, Message: "src/App.tsx:12 const url = `${API_BASE}/mood`"})

	if want := "frontend | src/App.tsx:12 const url = `${API_BASE}/mood`\n"; out.String() != want {
		t.Fatalf("unexpected output %q, want %q", out.String(), want)
	}
}

func TestPrinterJSON(t *testing.T) {
	var out, errBuf bytes.Buffer
	p := NewPrinter(&out, &errBuf, "json", []string{"frontend", "backend"})

	events := make(chan engine.Event, 2)
	events <- engine.Event{Task: "backend", Type: engine.EventTypeLog, Message: "ready", Level: "info", Source: runtime.LogSourceStdout}
	events <- engine.Event{Task: "frontend", Type: engine.EventTypeStopped, Message: "stopped frontend", Level: "info"}
	close(events)
	p.Drain(events)

	dec := json.NewDecoder(&out)
	var records []LogRecord
	for dec.More() {
		var record LogRecord
		if err := dec.Decode(&record); err != nil {
			t.Fatalf("decode: %v", err)
		}
		records = append(records, record)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Task != "backend" || records[0].Event != "log" || records[0].Message != "ready" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].Event != "stopped" {
		t.Fatalf("unexpected second record %+v", records[1])
	}
}

func TestIsTerminalRejectsBuffers(t *testing.T) {
	if IsTerminal(&bytes.Buffer{}) {
		t.Fatalf("buffer reported as terminal")
	}
}
