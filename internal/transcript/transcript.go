// Package transcript writes per-session conversation transcripts as NDJSON.
package transcript

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/x/ansi"
)

const defaultQueueSize = 256

// Config controls transcript output.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one transcript line.
type Event struct {
	Timestamp  time.Time `json:"ts"`
	OperatorID string    `json:"operator_id"`
	SessionID  string    `json:"session_id"`
	EventType  string    `json:"event_type"`
	Action     string    `json:"action,omitempty"`
	Kind       string    `json:"kind,omitempty"`
	Role       string    `json:"role,omitempty"`
	DurationMS int64     `json:"duration_ms,omitempty"`
	ContentRaw string    `json:"content_raw,omitempty"`
	Content    string    `json:"content,omitempty"`
}

// Event types.
const (
	EventSessionStarted = "session_started"
	EventSessionEnded   = "session_ended"
	EventActionStarted  = "action_started"
	EventActionFinished = "action_finished"
	EventActionRejected = "action_rejected"
	EventEntry          = "conversation_entry"
)

// Logger appends events asynchronously. Log never blocks; events are dropped
// with a warning when the queue is full.
type Logger struct {
	cfg    Config
	logger *slog.Logger
	queue  chan Event

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Int64

	files map[string]*os.File
	// ended holds sessions whose file was finalized; owned by run.
	ended map[string]struct{}
}

// New creates a logger. A disabled config yields a logger whose Log is a no-op.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	l := &Logger{
		cfg:    cfg,
		logger: logger,
		done:   make(chan struct{}),
		files:  make(map[string]*os.File),
		ended:  make(map[string]struct{}),
	}
	if !cfg.Enabled {
		close(l.done)
		return l, nil
	}
	if cfg.Dir == "" {
		return nil, errors.New("transcript dir is required when enabled")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}

	l.queue = make(chan Event, cfg.QueueSize)
	go l.run()
	return l, nil
}

// Enabled reports whether events are written.
func (l *Logger) Enabled() bool {
	return l != nil && l.cfg.Enabled
}

// Dropped returns how many events were discarded due to a full queue.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Log enqueues ev.
func (l *Logger) Log(ev Event) {
	if !l.Enabled() {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.ContentRaw != "" && ev.Content == "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Transcript queue full, dropping events",
				"session_id", ev.SessionID,
				"dropped_total", n,
			)
		}
	}
}

// Close drains pending events and closes all files.
func (l *Logger) Close() error {
	if !l.Enabled() {
		return nil
	}
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.queue)
	}
	l.mu.Unlock()
	<-l.done
	return nil
}

func (l *Logger) run() {
	defer close(l.done)
	defer l.closeFiles()

	for ev := range l.queue {
		key := fileKey(ev.OperatorID, ev.SessionID)
		if _, done := l.ended[key]; done {
			l.logger.Debug("Dropping transcript event after session end",
				"session_id", ev.SessionID,
				"event_type", ev.EventType,
			)
			continue
		}
		if err := l.write(ev); err != nil {
			l.logger.Warn("Failed to write transcript event",
				"session_id", ev.SessionID,
				"event_type", ev.EventType,
				"error", err,
			)
		}
		if ev.EventType == EventSessionEnded {
			l.closeFile(ev.OperatorID, ev.SessionID)
			l.ended[key] = struct{}{}
		}
	}
}

func (l *Logger) write(ev Event) error {
	f, err := l.file(ev.OperatorID, ev.SessionID)
	if err != nil {
		return err
	}
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (l *Logger) file(operatorID, sessionID string) (*os.File, error) {
	key := fileKey(operatorID, sessionID)
	if f, ok := l.files[key]; ok {
		return f, nil
	}

	dir := filepath.Join(l.cfg.Dir, safeSegment(operatorID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create operator dir: %w", err)
	}
	path := filepath.Join(dir, safeSegment(sessionID)+".ndjson")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	l.files[key] = f
	return f, nil
}

func (l *Logger) closeFile(operatorID, sessionID string) {
	key := fileKey(operatorID, sessionID)
	if f, ok := l.files[key]; ok {
		if err := f.Close(); err != nil {
			l.logger.Warn("Failed to close transcript", "session_id", sessionID, "error", err)
		}
		delete(l.files, key)
	}
}

func (l *Logger) closeFiles() {
	for key, f := range l.files {
		if err := f.Close(); err != nil {
			l.logger.Warn("Failed to close transcript", "file", key, "error", err)
		}
		delete(l.files, key)
	}
}

func fileKey(operatorID, sessionID string) string {
	return operatorID + "/" + sessionID
}

// safeSegment keeps identifiers from escaping the transcript directory.
func safeSegment(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
	if s == "" {
		return "unknown"
	}
	return s
}

// cleanForReadability strips terminal escapes and collapses whitespace runs.
func cleanForReadability(raw string) string {
	s := ansi.Strip(raw)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
