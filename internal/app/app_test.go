package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dshills/padstorm/internal/config"
	"github.com/dshills/padstorm/internal/input/event"
	"github.com/dshills/padstorm/internal/input/record"
	"github.com/dshills/padstorm/internal/input/sample"
)

const menuTOML = `
[machine]
initial = "menu"

[[machine.transitions]]
from = "menu"
on = "tap:start"
to = "play"
`

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func press(ms int, down ...sample.ActionID) sample.Raw {
	b := make(map[sample.ActionID]bool, len(down))
	for _, id := range down {
		b[id] = true
	}
	return sample.Raw{Time: t0.Add(time.Duration(ms) * time.Millisecond), Buttons: b}
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "padstorm.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func writeTrace(t *testing.T, samples ...sample.Raw) string {
	t.Helper()
	trace := record.NewTrace()
	trace.Samples = samples
	path := filepath.Join(t.TempDir(), "trace.json")
	if err := trace.SaveFile(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestNewDefaults(t *testing.T) {
	a, err := New(Options{LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if a.Config().Machine.Initial != config.Default().Machine.Initial {
		t.Errorf("Machine.Initial = %q, want default", a.Config().Machine.Initial)
	}
	if a.Logger().Level() != LogLevelInfo {
		t.Errorf("log level = %v, want INFO", a.Logger().Level())
	}
}

func TestNewOverrides(t *testing.T) {
	path := writeConfig(t, menuTOML)
	a, err := New(Options{ConfigPath: path, LogLevel: "debug", Listen: "127.0.0.1:0", LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	cfg := a.Config()
	if cfg.Machine.Initial != "menu" {
		t.Errorf("Machine.Initial = %q, want menu", cfg.Machine.Initial)
	}
	if cfg.Server.Listen != "127.0.0.1:0" {
		t.Errorf("Server.Listen = %q, want override", cfg.Server.Listen)
	}
	if a.Logger().Level() != LogLevelDebug {
		t.Errorf("log level = %v, want DEBUG", a.Logger().Level())
	}
}

func TestNewErrors(t *testing.T) {
	t.Run("missing config", func(t *testing.T) {
		_, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "nope.toml")})
		var opErr *OperationError
		if !errors.As(err, &opErr) || !errors.Is(err, config.ErrFileNotFound) {
			t.Errorf("New() error = %v, want load OperationError", err)
		}
	})
	t.Run("watch without config", func(t *testing.T) {
		if _, err := New(Options{Watch: true}); !errors.Is(err, ErrWatchWithoutConfig) {
			t.Errorf("New() error = %v, want ErrWatchWithoutConfig", err)
		}
	})
	t.Run("bad log level", func(t *testing.T) {
		if _, err := New(Options{LogLevel: "loud"}); !errors.Is(err, ErrInitialization) {
			t.Errorf("New() error = %v, want ErrInitialization", err)
		}
	})
}

func TestReplay(t *testing.T) {
	cfgPath := writeConfig(t, menuTOML)
	tracePath := writeTrace(t, press(0, "start"), press(50), press(100), press(116, "x"))

	var out bytes.Buffer
	a, err := New(Options{ConfigPath: cfgPath, ReplayPath: tracePath, Output: &out, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	res, err := a.Replay(context.Background(), tracePath)
	if err != nil {
		t.Fatalf("Replay() error = %v", err)
	}
	if res.Ticks != 4 {
		t.Errorf("Ticks = %d, want 4", res.Ticks)
	}
	if res.Events != 3 {
		t.Errorf("Events = %d, want 3", res.Events)
	}
	if res.State != "play" {
		t.Errorf("State = %q, want play", res.State)
	}

	scanner := bufio.NewScanner(&out)
	var lines []replayLine
	for scanner.Scan() {
		var l replayLine
		if err := json.Unmarshal(scanner.Bytes(), &l); err != nil {
			t.Fatalf("line %q: %v", scanner.Text(), err)
		}
		lines = append(lines, l)
	}
	if len(lines) != 1 {
		t.Fatalf("got %d lines, want 1", len(lines))
	}
	if lines[0].Tick != 2 || lines[0].Events[2].Kind != event.StateChanged {
		t.Errorf("line = %+v", lines[0])
	}
}

func TestRunReplay(t *testing.T) {
	tracePath := writeTrace(t, press(0, "a"), press(40))
	var out bytes.Buffer
	a, err := New(Options{ReplayPath: tracePath, Output: &out, LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), `"kind":"tap"`) {
		t.Errorf("output = %s, want a tap", out.String())
	}
}

func TestReplayErrors(t *testing.T) {
	a, err := New(Options{LogOutput: &bytes.Buffer{}, Output: &bytes.Buffer{}})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := a.Replay(context.Background(), filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Replay(missing) error = nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tracePath := writeTrace(t, press(0, "a"))
	if _, err := a.Replay(ctx, tracePath); !errors.Is(err, context.Canceled) {
		t.Errorf("Replay(cancelled) error = %v, want context.Canceled", err)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	var logs bytes.Buffer
	a, err := New(Options{Listen: "127.0.0.1:0", LogOutput: &logs})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestReload(t *testing.T) {
	a, err := New(Options{LogOutput: &bytes.Buffer{}})
	if err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.Machine.Initial = "lobby"
	if err := a.Reload(cfg); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	if a.Logger().Level() != LogLevelError {
		t.Errorf("log level = %v, want ERROR", a.Logger().Level())
	}
	if a.Config().Machine.Initial != "lobby" {
		t.Errorf("Machine.Initial = %q, want lobby", a.Config().Machine.Initial)
	}

	cfg.Input.Clash = "random"
	if err := a.Reload(cfg); err == nil {
		t.Error("Reload(invalid) error = nil")
	}
	if a.Config().Input.Clash == "random" {
		t.Error("invalid reload replaced the configuration")
	}
}
