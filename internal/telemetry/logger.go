// Package telemetry provides structured JSONL logging for prompt-runtime
// lifecycle events, adapted from the teacher's activity log.
package telemetry

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/johnlindquist/scriptkit-gpui/internal/outcome"
)

// Logger writes one JSON object per line to a log file. All methods are
// safe for concurrent use; when disabled (w is nil) they are no-ops.
//
// Grounded on internal/activitylog/logger.go: same no-op-when-disabled,
// mutex-guarded single-line-JSON-append shape, generalized from Claude
// Code hook/session events to this runtime's session/prompt/outcome events.
type Logger struct {
	mu sync.Mutex
	w  *os.File
}

// New opens logPath for appending. If it cannot be opened, returns a no-op
// logger so callers never need nil checks.
func New(logPath string) *Logger {
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &Logger{}
	}
	return &Logger{w: f}
}

// Nop returns a disabled logger.
func Nop() *Logger { return &Logger{} }

type entry struct {
	Timestamp     string `json:"ts"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Event         string `json:"event"`
}

// SessionSpawned logs a child session starting under a given runtime.
func (l *Logger) SessionSpawned(correlationID, sessionID, scriptID, runtime string) {
	l.log(struct {
		entry
		SessionID string `json:"session_id"`
		ScriptID  string `json:"script_id"`
		Runtime   string `json:"runtime"`
	}{l.entry("session_spawned", correlationID), sessionID, scriptID, runtime})
}

// StateChange logs a child lifecycle transition.
func (l *Logger) StateChange(correlationID, sessionID, from, to string) {
	l.log(struct {
		entry
		SessionID string `json:"session_id"`
		From      string `json:"from"`
		To        string `json:"to"`
	}{l.entry("state_change", correlationID), sessionID, from, to})
}

// PromptShown logs a prompt variant transition.
func (l *Logger) PromptShown(correlationID, kind string) {
	l.log(struct {
		entry
		Kind string `json:"kind"`
	}{l.entry("prompt_shown", correlationID), kind})
}

// Emit implements outcome.Sink so a Logger can be used directly as the
// Emitter's sink.
func (l *Logger) Emit(r outcome.Record) { l.Outcome(r) }

// Outcome logs a unified action outcome record.
func (l *Logger) Outcome(r outcome.Record) {
	l.log(struct {
		entry
		OK      bool   `json:"ok"`
		Kind    string `json:"kind,omitempty"`
		Surface string `json:"surface,omitempty"`
		Message string `json:"message,omitempty"`
	}{l.entry("outcome", r.CorrelationID), r.OK, string(r.Kind), string(r.Surface), r.Message})
}

// Close closes the underlying file.
func (l *Logger) Close() error {
	if l.w == nil {
		return nil
	}
	return l.w.Close()
}

func (l *Logger) entry(event, correlationID string) entry {
	return entry{Timestamp: time.Now().UTC().Format(time.RFC3339Nano), CorrelationID: correlationID, Event: event}
}

func (l *Logger) log(v any) {
	if l.w == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	data = append(data, '\n')
	l.mu.Lock()
	l.w.Write(data)
	l.mu.Unlock()
}
