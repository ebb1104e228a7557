package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/Paintersrp/skymood/internal/engine"
	"github.com/Paintersrp/skymood/internal/runtime"
)

func TestEncodeLogEventInfersLevel(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{name: "errorToken", message: "[ERROR] failed to start", expected: "error"},
		{name: "warnToken", message: "WARN task requires attention", expected: "warn"},
		{name: "warningToken", message: "WARNING: reloader is slow", expected: "warn"},
		{name: "infoToken", message: "INFO:     Uvicorn running on http://0.0.0.0:8000", expected: "info"},
		{name: "noTokenDefaults", message: "VITE ready in 312 ms", expected: "info"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			var errBuf bytes.Buffer

			event := engine.Event{
				Timestamp: time.Unix(0, 0),
				Task:      "backend",
				Type:      engine.EventTypeLog,
				Message:   tc.message,
			}

			EncodeLogEvent(json.NewEncoder(&out), &errBuf, event)

			if errBuf.Len() != 0 {
				t.Fatalf("unexpected stderr output: %s", errBuf.String())
			}

			var record LogRecord
			if err := json.Unmarshal(out.Bytes(), &record); err != nil {
				t.Fatalf("failed to unmarshal log record: %v", err)
			}

			if record.Level != tc.expected {
				t.Fatalf("expected level %q, got %q", tc.expected, record.Level)
			}
			if record.Task != "backend" || record.Event != "log" {
				t.Fatalf("unexpected record identity %+v", record)
			}
		})
	}
}

func TestEncodeLogEventKeepsProvidedLevel(t *testing.T) {
	var out bytes.Buffer
	var errBuf bytes.Buffer

	event := engine.Event{
		Timestamp: time.Unix(0, 0),
		Task:      "frontend",
		Type:      engine.EventTypeStopped,
		Message:   "stopped frontend",
		Level:     "debug",
		Reason:    engine.ReasonShutdown,
	}

	EncodeLogEvent(json.NewEncoder(&out), &errBuf, event)

	if errBuf.Len() != 0 {
		t.Fatalf("unexpected stderr output: %s", errBuf.String())
	}

	var record LogRecord
	if err := json.Unmarshal(out.Bytes(), &record); err != nil {
		t.Fatalf("failed to unmarshal log record: %v", err)
	}

	if record.Level != "debug" {
		t.Fatalf("expected level %q, got %q", "debug", record.Level)
	}
	if record.Event != "stopped" || record.Reason != engine.ReasonShutdown {
		t.Fatalf("expected lifecycle fields, got %+v", record)
	}
	if record.Source != runtime.LogSourceSystem {
		t.Fatalf("expected system source default, got %q", record.Source)
	}
}

func TestNewLogRecordRedactsSecrets(t *testing.T) {
	event := engine.Event{
		Timestamp: time.Unix(0, 0),
		Message:   `sending ${API_TOKEN} AWS_SECRET_ACCESS_KEY="super-secret"`,
	}

	record := NewLogRecord(event)

	if !strings.Contains(record.Message, "${API_TOKEN}") {
		t.Fatalf("expected template reference to be kept, got %q", record.Message)
	}
	if strings.Contains(record.Message, "super-secret") {
		t.Fatalf("expected secret value to be redacted, got %q", record.Message)
	}
	if !strings.Contains(record.Message, `AWS_SECRET_ACCESS_KEY="[redacted]"`) {
		t.Fatalf("expected known secret key redacted, got %q", record.Message)
	}
}
