// Package wire implements the framed JSON channel between the host and a
// running script's child process: a length-prefixed frame per message, a
// closed set of message kinds, and correlation by monotonic id.
package wire

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Kind is the closed set of wire message kinds.
type Kind string

const (
	KindHello           Kind = "Hello"
	KindShowArg         Kind = "ShowArg"
	KindShowSelect      Kind = "ShowSelect"
	KindShowDrop        Kind = "ShowDrop"
	KindShowDiv         Kind = "ShowDiv"
	KindShowEditor      Kind = "ShowEditor"
	KindShowForm        Kind = "ShowForm"
	KindShowTemplate    Kind = "ShowTemplate"
	KindShowEnv         Kind = "ShowEnv"
	KindShowPath        Kind = "ShowPath"
	KindShowTerm        Kind = "ShowTerm"
	KindShowChat        Kind = "ShowChat"
	KindShowWebcam      Kind = "ShowWebcam"
	KindSetActions      Kind = "SetActions"
	KindSetChoices      Kind = "SetChoices"
	KindSetInput        Kind = "SetInput"
	KindSetFocused      Kind = "SetFocused"
	KindSetHint         Kind = "SetHint"
	KindShowHud         Kind = "ShowHud"
	KindLog             Kind = "Log"
	KindSubmit          Kind = "Submit"
	KindCancel          Kind = "Cancel"
	KindActionTriggered Kind = "ActionTriggered"
	KindTab             Kind = "Tab"
	KindStream          Kind = "Stream"
	KindExit            Kind = "Exit"
)

// ProtocolVersion is the only version this host understands.
const ProtocolVersion = 1

// MaxFrameBytes bounds a single child->host frame body (§4.1: oversize
// messages cause a terminal protocol violation).
const MaxFrameBytes = 4 * 1024 * 1024

// Frame is one message on the wire: `{v, id, kind, payload}` encoded as
// ASCII-decimal-length SP json-body LF (§6).
type Frame struct {
	V       int             `json:"v"`
	ID      uint64          `json:"id"`
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Critical reports whether a frame's kind must never be silently dropped
// under backpressure (§4.1).
func (k Kind) Critical() bool {
	switch k {
	case KindSubmit, KindCancel, KindActionTriggered, KindTab:
		return true
	default:
		return false
	}
}

// ErrProtocolViolation is returned for malformed or oversize frames.
type ErrProtocolViolation struct {
	Reason string
}

func (e *ErrProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

// ErrProtocolVersion is returned when the child's Hello handshake names a
// protocol version this host does not understand (§6: "mismatched versions
// close the session with failed_terminal(protocol_version)").
type ErrProtocolVersion struct {
	Got, Want int
}

func (e *ErrProtocolVersion) Error() string {
	return fmt.Sprintf("protocol version %d unsupported (want %d)", e.Got, e.Want)
}

// WriteFrame encodes f as `<len> <json>\n` and writes it to w.
func WriteFrame(w io.Writer, f Frame) error {
	body, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshal frame: %w", err)
	}
	if len(body) > MaxFrameBytes {
		return &ErrProtocolViolation{Reason: fmt.Sprintf("frame body %d bytes exceeds %d", len(body), MaxFrameBytes)}
	}
	if _, err := fmt.Fprintf(w, "%d ", len(body)); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err = w.Write([]byte{'\n'})
	return err
}

// FrameReader reads length-prefixed frames from a child's stdout, one at a
// time, off the UI task (§5: suspension points live on the worker side).
type FrameReader struct {
	r *bufio.Reader
}

// NewFrameReader wraps r for frame-at-a-time reads.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{r: bufio.NewReaderSize(r, 64*1024)}
}

// ReadFrame reads one frame. Returns io.EOF when the child closed stdout.
func (fr *FrameReader) ReadFrame() (Frame, error) {
	lenStr, err := fr.r.ReadString(' ')
	if err != nil {
		return Frame{}, err
	}
	lenStr = strings.TrimSuffix(lenStr, " ")
	n, err := strconv.Atoi(strings.TrimSpace(lenStr))
	if err != nil {
		return Frame{}, &ErrProtocolViolation{Reason: fmt.Sprintf("invalid frame length %q", lenStr)}
	}
	if n < 0 || n > MaxFrameBytes {
		return Frame{}, &ErrProtocolViolation{Reason: fmt.Sprintf("frame length %d out of bounds", n)}
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(fr.r, body); err != nil {
		return Frame{}, err
	}
	nl, err := fr.r.ReadByte()
	if err != nil {
		return Frame{}, err
	}
	if nl != '\n' {
		return Frame{}, &ErrProtocolViolation{Reason: "missing frame terminator"}
	}
	var f Frame
	if err := json.Unmarshal(body, &f); err != nil {
		return Frame{}, &ErrProtocolViolation{Reason: fmt.Sprintf("invalid frame json: %v", err)}
	}
	return f, nil
}
