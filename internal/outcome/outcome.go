// Package outcome implements the unified error taxonomy and the single
// outcome emitter every user-visible action must pass through (spec §4.10,
// §7, §9).
package outcome

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Kind is the closed error taxonomy (spec §7). Kinds, not types: every
// surfaced failure carries one of these, never a raw error string.
type Kind string

const (
	KindTransportBackpressure Kind = "transport_backpressure"
	KindTransportDisconnected Kind = "transport_disconnected"
	KindExternalSpawnFailed   Kind = "external_spawn_failed"
	KindClipboardIOFailed     Kind = "clipboard_io_failed"
	KindNotFound              Kind = "not_found"
	KindValidation            Kind = "validation"
	KindUserCancelled         Kind = "user_cancelled"
	KindPartialBatchFailure   Kind = "partial_batch_failure"
	KindProtocolViolation     Kind = "protocol_violation"
	KindFilesystem            Kind = "filesystem"
)

// Retryable reports whether the kind is safe to retry automatically.
func (k Kind) Retryable() bool {
	switch k {
	case KindTransportBackpressure, KindExternalSpawnFailed, KindClipboardIOFailed:
		return true
	default:
		return false
	}
}

// Error wraps a Kind with a human-readable detail and an optionally wrapped
// cause, so callers can use errors.Is/errors.As against Kind while still
// getting a normal Go error.
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is supports errors.Is(err, Kind) by comparing against a sentinel created
// with New(kind, "").
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Surface is one of the four severities a failure may render at (spec §7),
// in decreasing severity.
type Surface string

const (
	SurfaceModal  Surface = "modal"
	SurfaceHUD    Surface = "hud"
	SurfaceToast  Surface = "toast"
	SurfaceInline Surface = "inline_field"
)

// Record is the structured outcome every user action must emit exactly
// once (spec §4.10, §8: "∀ user actions: exactly one outcome is emitted
// with a correlation id").
type Record struct {
	CorrelationID string
	At            time.Time
	OK            bool
	Kind          Kind
	Surface       Surface
	Message       string
	FieldID       string // set when Surface == SurfaceInline
}

// Sink receives emitted Records. Tests and the telemetry logger both
// implement this.
type Sink interface {
	Emit(Record)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Record)

func (f SinkFunc) Emit(r Record) { f(r) }

// Emitter is the single funnel every user action's result passes through.
// Grounded on spec §4.10's emit_action_outcome and the teacher's
// fmt.Errorf("...: %w", err) wrapping idiom used throughout session.go —
// generalized here into one typed, closed taxonomy instead of ad hoc
// %w-wrapped strings, since the spec requires exactly one outcome per
// action rather than free-form error propagation.
type Emitter struct {
	mu   sync.Mutex
	sink Sink
	now  func() time.Time
}

// NewEmitter creates an Emitter writing to sink. If sink is nil, outcomes
// are dropped (useful in tests that only assert on return values).
func NewEmitter(sink Sink) *Emitter {
	return &Emitter{sink: sink, now: time.Now}
}

// Success emits an OK outcome.
func (e *Emitter) Success(correlationID string) {
	e.emit(Record{CorrelationID: correlationID, OK: true, At: e.clock()})
}

// Fail emits a failure outcome at the given surface.
func (e *Emitter) Fail(correlationID string, kind Kind, surface Surface, message string) {
	e.emit(Record{
		CorrelationID: correlationID,
		At:            e.clock(),
		OK:            false,
		Kind:          kind,
		Surface:       surface,
		Message:       message,
	})
}

// FailField emits an inline-field validation failure.
func (e *Emitter) FailField(correlationID, fieldID, message string) {
	e.emit(Record{
		CorrelationID: correlationID,
		At:            e.clock(),
		OK:            false,
		Kind:          KindValidation,
		Surface:       SurfaceInline,
		FieldID:       fieldID,
		Message:       message,
	})
}

func (e *Emitter) clock() time.Time {
	if e.now != nil {
		return e.now()
	}
	return time.Now()
}

func (e *Emitter) emit(r Record) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink != nil {
		sink.Emit(r)
	}
}
