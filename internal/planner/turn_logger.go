package planner

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// TurnLogConfig controls the turn audit log.
type TurnLogConfig struct {
	Enabled bool

	// Dir receives one NDJSON file per session.
	Dir string

	// GlobalPath, when set, additionally receives every event in one
	// combined NDJSON stream.
	GlobalPath string

	// QueueSize bounds the async write queue. Events beyond it are
	// dropped, never blocking a turn.
	QueueSize int
}

// TurnLogEvent is one audit record: a single turn, successful or not.
type TurnLogEvent struct {
	Timestamp          time.Time `json:"ts"`
	SessionID          string    `json:"session_id"`
	TurnID             string    `json:"turn_id"`
	UserInput          string    `json:"user_input"`
	Response           string    `json:"response,omitempty"`
	NeedsClarification bool      `json:"needs_clarification,omitempty"`
	Stages             []string  `json:"stages,omitempty"`
	DurationMS         int64     `json:"duration_ms"`
	Error              string    `json:"error,omitempty"`
}

// TurnLogger writes turn audit events to per-session NDJSON files from a
// single background goroutine. Logging is best effort: a full queue drops
// the event and a write failure is reported through the logger, but
// neither ever fails a turn.
type TurnLogger struct {
	cfg     TurnLogConfig
	log     *slog.Logger
	queue   chan TurnLogEvent
	done    chan struct{}
	dropped atomic.Int64
	once    sync.Once
}

// NewTurnLogger builds a turn logger. A disabled config yields a no-op
// logger whose Log and Close are still safe to call.
func NewTurnLogger(cfg TurnLogConfig, log *slog.Logger) (*TurnLogger, error) {
	if log == nil {
		log = slog.Default()
	}

	l := &TurnLogger{
		cfg:  cfg,
		log:  log,
		done: make(chan struct{}),
	}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("turn log enabled without a directory")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create turn log dir: %w", err)
	}
	if cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create turn log dir: %w", err)
		}
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}
	l.queue = make(chan TurnLogEvent, queueSize)

	go l.run()
	return l, nil
}

// Log enqueues one event. It never blocks; when the queue is full the
// event is dropped and counted.
func (l *TurnLogger) Log(ev TurnLogEvent) {
	if !l.cfg.Enabled {
		return
	}

	select {
	case l.queue <- ev:
	default:
		n := l.dropped.Add(1)
		if n == 1 || n%100 == 0 {
			l.log.Warn("turn log queue full, dropping events", "dropped_total", n)
		}
	}
}

// Close drains the queue and stops the writer. Safe to call more than
// once.
func (l *TurnLogger) Close() error {
	l.once.Do(func() {
		if l.cfg.Enabled {
			close(l.queue)
		}
	})
	<-l.done
	return nil
}

func (l *TurnLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		l.write(ev)
	}
}

func (l *TurnLogger) write(ev TurnLogEvent) {
	line, err := json.Marshal(ev)
	if err != nil {
		l.log.Warn("turn log encode failed", "session_id", ev.SessionID, "error", err)
		return
	}
	line = append(line, '\n')

	path := filepath.Join(l.cfg.Dir, ev.SessionID+".ndjson")
	if err := appendLine(path, line); err != nil {
		l.log.Warn("turn log write failed", "path", path, "error", err)
	}
	if l.cfg.GlobalPath != "" {
		if err := appendLine(l.cfg.GlobalPath, line); err != nil {
			l.log.Warn("turn log write failed", "path", l.cfg.GlobalPath, "error", err)
		}
	}
}

func appendLine(path string, line []byte) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
