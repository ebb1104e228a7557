package engine_test

import (
	"context"
	"errors"
	stdruntime "runtime"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Paintersrp/skymood/internal/engine"
	"github.com/Paintersrp/skymood/internal/runtime/process"
	"github.com/Paintersrp/skymood/internal/task"
)

func shellSpec(t *testing.T, name, script string) task.Spec {
	t.Helper()
	spec, err := task.New(name, []string{"/bin/sh", "-c", script}, t.TempDir())
	if err != nil {
		t.Fatalf("task.New: %v", err)
	}
	return spec
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("process scenarios require a POSIX shell")
	}
}

func TestScenarioInterruptTerminatesBoth(t *testing.T) {
	skipOnWindows(t)

	specs, err := task.NewSet(
		shellSpec(t, "frontend", "exec sleep 30"),
		shellSpec(t, "backend", "exec sleep 30"),
	)
	if err != nil {
		t.Fatalf("task set: %v", err)
	}
	sup := engine.New(process.New(), specs,
		engine.WithPollInterval(50*time.Millisecond),
		engine.WithGracePeriod(5*time.Second),
		engine.WithLogger(zaptest.NewLogger(t).Sugar()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := sup.Run(ctx)
	if err != nil {
		t.Fatalf("interrupt shutdown returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("shutdown took %s", elapsed)
	}
	for _, h := range res.Handles {
		if h.State != engine.StateTerminated {
			t.Fatalf("expected %s terminated, got %s (%s)", h.Name, h.State, h.Exit)
		}
		if h.Exit.Signal != "SIGTERM" {
			t.Fatalf("expected %s to end by SIGTERM, got %s", h.Name, h.Exit)
		}
	}
}

func TestScenarioBackendFailureStopsFrontend(t *testing.T) {
	skipOnWindows(t)

	specs, err := task.NewSet(
		shellSpec(t, "frontend", "exec sleep 30"),
		shellSpec(t, "backend", "sleep 0.3; exit 1"),
	)
	if err != nil {
		t.Fatalf("task set: %v", err)
	}
	sup := engine.New(process.New(), specs,
		engine.WithPollInterval(100*time.Millisecond),
		engine.WithGracePeriod(5*time.Second),
		engine.WithLogger(zaptest.NewLogger(t).Sugar()),
	)

	start := time.Now()
	res, err := sup.Run(context.Background())

	var exitErr *engine.UnexpectedExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected unexpected exit error, got %v", err)
	}
	if exitErr.Task != "backend" || exitErr.Status.Code != 1 {
		t.Fatalf("unexpected offender %+v", exitErr)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Fatalf("failure handling took %s", elapsed)
	}

	backend, _ := res.Handle("backend")
	if backend.State != engine.StateExitedError || backend.Exit.Code != 1 {
		t.Fatalf("unexpected backend status %+v", backend)
	}
	frontend, _ := res.Handle("frontend")
	if frontend.State != engine.StateTerminated {
		t.Fatalf("expected frontend terminated, got %s", frontend.State)
	}
}

func TestScenarioIgnoredTerminationIsKilled(t *testing.T) {
	skipOnWindows(t)

	specs, err := task.NewSet(
		shellSpec(t, "frontend", "trap '' TERM; sleep 10"),
	)
	if err != nil {
		t.Fatalf("task set: %v", err)
	}
	sup := engine.New(process.New(), specs,
		engine.WithPollInterval(20*time.Millisecond),
		engine.WithGracePeriod(300*time.Millisecond),
		engine.WithLogger(zaptest.NewLogger(t).Sugar()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := sup.Run(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("forced kill took %s", elapsed)
	}

	frontend, _ := res.Handle("frontend")
	if frontend.State != engine.StateKilled {
		t.Fatalf("expected frontend killed, got %s", frontend.State)
	}
	if len(res.Timeouts) != 1 || res.Timeouts[0].Task != "frontend" {
		t.Fatalf("expected a shutdown timeout for frontend, got %+v", res.Timeouts)
	}
}
