package planner

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestTurnLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewTurnLogger(TurnLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewTurnLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	logger.Log(TurnLogEvent{
		Timestamp: time.Now().UTC(),
		SessionID: "sess-1",
		TurnID:    "turn-1",
		UserInput: "plan a trip",
		Response:  "done",
		Stages:    []string{"clarify: enough detail to proceed"},
	})

	line := waitForLogLine(t, filepath.Join(dir, "sess-1.ndjson"))
	var got TurnLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.UserInput != "plan a trip" || got.Response != "done" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if len(got.Stages) != 1 {
		t.Fatalf("expected stage lines, got %+v", got.Stages)
	}
}

func TestTurnLoggerGlobalStream(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all", "turns.ndjson")
	logger, err := NewTurnLogger(TurnLogConfig{
		Enabled:    true,
		Dir:        dir,
		GlobalPath: global,
		QueueSize:  16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewTurnLogger failed: %v", err)
	}

	logger.Log(TurnLogEvent{SessionID: "a", TurnID: "t1", UserInput: "one"})
	logger.Log(TurnLogEvent{SessionID: "b", TurnID: "t2", UserInput: "two"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	for _, path := range []string{filepath.Join(dir, "a.ndjson"), filepath.Join(dir, "b.ndjson")} {
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read %s: %v", path, err)
		}
		if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != 1 {
			t.Fatalf("expected 1 line in %s, got %d", path, len(lines))
		}
	}

	data, err := os.ReadFile(global)
	if err != nil {
		t.Fatalf("read global stream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 global lines, got %d", len(lines))
	}

	var got TurnLogEvent
	if err := json.Unmarshal([]byte(lines[1]), &got); err != nil {
		t.Fatalf("failed to unmarshal global line: %v", err)
	}
	if got.SessionID != "b" || got.UserInput != "two" {
		t.Fatalf("unexpected last global event: %+v", got)
	}
}

func TestTurnLoggerDisabledIsNoOp(t *testing.T) {
	t.Parallel()

	logger, err := NewTurnLogger(TurnLogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewTurnLogger failed: %v", err)
	}

	logger.Log(TurnLogEvent{SessionID: "sess-1"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// A second close must not panic.
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestTurnLoggerCloseFlushesQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewTurnLogger(TurnLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 64,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewTurnLogger failed: %v", err)
	}

	const events = 20
	for i := 0; i < events; i++ {
		logger.Log(TurnLogEvent{SessionID: "sess-1", TurnID: "t", UserInput: "x"})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sess-1.ndjson"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if lines := strings.Split(strings.TrimSpace(string(data)), "\n"); len(lines) != events {
		t.Fatalf("expected %d lines after Close, got %d", events, len(lines))
	}
}

func TestTurnLoggerRequiresDir(t *testing.T) {
	t.Parallel()

	if _, err := NewTurnLogger(TurnLogConfig{Enabled: true}, nil); err == nil {
		t.Fatal("expected an error for an enabled logger without a directory")
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
