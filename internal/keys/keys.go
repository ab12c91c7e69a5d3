// Package keys implements the key-routing contract (spec §4.8, §8 scenario
// 3): a byte-level decoder that turns raw terminal input into semantic key
// events, aware of the kitty keyboard protocol, xterm modifyOtherKeys, and
// SGR mouse reporting, so the prompt dispatcher can route a key either to
// the actions overlay or through to an embedded Term prompt's PTY.
//
// Grounded on the teacher's internal/session/client/input.go (HandleEscape,
// HandleCSI, HandleSGRMouse) and keybindings.go (kitty protocol probe).
package keys

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a decoded key event.
type Kind int

const (
	KindChar Kind = iota
	KindEnter
	KindEscape
	KindBackspace
	KindTab
	KindShiftTab
	KindArrowUp
	KindArrowDown
	KindArrowLeft
	KindArrowRight
	KindCtrlEnter  // menu/overlay toggle, spec §4.8
	KindShiftEnter // literal newline insert, spec §4.8
	KindCtrlEscape // exits passthrough without forwarding Esc to the child
	KindMouseScrollUp
	KindMouseScrollDown
	KindMouseClick
	KindControl      // other C0 control byte, Rune holds the raw byte
	KindMetaForward  // meta+f (ESC f) — forward word
	KindMetaBackward // meta+b (ESC b) — backward word
	KindUnknown
)

// Event is one decoded key/mouse event.
type Event struct {
	Kind Kind
	Rune rune // for KindChar and KindControl
}

// Protocol identifies which keyboard reporting scheme the terminal speaks,
// detected once at startup via DetectKittyKeyboard.
type Protocol int

const (
	ProtocolLegacy Protocol = iota
	ProtocolKitty
)

// HelpText returns mode-appropriate help strings for the two keybinding
// schemes, mirroring the teacher's normal/passthrough contract.
type HelpText struct {
	Normal      string
	Passthrough string
}

var helpByProtocol = map[Protocol]HelpText{
	ProtocolLegacy: {Normal: `Enter send | Ctrl+\ actions`, Passthrough: `Ctrl+\ exit`},
	ProtocolKitty:  {Normal: "Enter send | Ctrl+Enter actions", Passthrough: "Ctrl+Esc exit"},
}

// Help returns the help text for the given protocol, defaulting to legacy.
func Help(p Protocol) HelpText {
	if h, ok := helpByProtocol[p]; ok {
		return h
	}
	return helpByProtocol[ProtocolLegacy]
}

// DetectKittyKeyboard probes the terminal with `CSI ? u` and reports
// ProtocolKitty if any response arrives within 100ms, enabling
// disambiguate-escape-codes mode (`CSI > 1 u`) on success. Must be called
// after entering raw mode.
func DetectKittyKeyboard(in, out *os.File) Protocol {
	out.Write([]byte("\x1b[?u"))

	buf := make([]byte, 64)
	done := make(chan int, 1)
	go func() {
		n, err := in.Read(buf)
		if err != nil {
			done <- 0
			return
		}
		done <- n
	}()

	select {
	case n := <-done:
		if n > 0 {
			out.Write([]byte("\x1b[>1u"))
			return ProtocolKitty
		}
	case <-time.After(100 * time.Millisecond):
	}
	return ProtocolLegacy
}

// Decoder turns a stream of raw bytes into Events, buffering partial escape
// sequences across Feed calls exactly like the teacher's PendingEsc/
// PassthroughEsc state machine.
type Decoder struct {
	pending []byte // bytes of an in-progress escape sequence
}

// Feed consumes buf and returns the events it decodes. Any trailing partial
// escape sequence is retained for the next Feed call.
func (d *Decoder) Feed(buf []byte) []Event {
	var events []Event
	i := 0
	for i < len(buf) {
		if len(d.pending) > 0 {
			d.pending = append(d.pending, buf[i])
			i++
			consumed, ev, complete := d.feedEscape(d.pending)
			if !complete {
				continue // wait for more bytes
			}
			d.pending = d.pending[:0]
			if consumed > 0 {
				events = append(events, ev)
			}
			continue
		}

		b := buf[i]
		if b == 0x1B {
			d.pending = append(d.pending[:0], b)
			i++
			consumed, ev, complete := d.feedEscape(d.pending)
			if complete {
				d.pending = d.pending[:0]
				if consumed > 0 {
					events = append(events, ev)
				}
			}
			continue
		}

		switch {
		case b == '\r' || b == '\n':
			events = append(events, Event{Kind: KindEnter})
		case b == 0x7F || b == 0x08:
			events = append(events, Event{Kind: KindBackspace})
		case b == '\t':
			events = append(events, Event{Kind: KindTab})
		case b < 0x20:
			events = append(events, Event{Kind: KindControl, Rune: rune(b)})
		default:
			events = append(events, Event{Kind: KindChar, Rune: rune(b)})
		}
		i++
	}
	return events
}

// feedEscape parses one escape sequence starting at seq[0]==0x1B. It
// returns the number of bytes of seq consumed, the decoded event, and
// whether the sequence is complete (false means seq is a valid-so-far
// prefix and the caller should wait for more input).
func (d *Decoder) feedEscape(seq []byte) (consumed int, ev Event, complete bool) {
	if len(seq) < 2 {
		return 0, Event{}, false
	}
	switch seq[1] {
	case '[':
		return decodeCSI(seq)
	case 'O':
		if len(seq) < 3 {
			return 0, Event{}, false
		}
		switch seq[2] {
		case 'A':
			return 3, Event{Kind: KindArrowUp}, true
		case 'B':
			return 3, Event{Kind: KindArrowDown}, true
		case 'C':
			return 3, Event{Kind: KindArrowRight}, true
		case 'D':
			return 3, Event{Kind: KindArrowLeft}, true
		}
		return 3, Event{Kind: KindUnknown}, true
	case 'f':
		return 2, Event{Kind: KindMetaForward}, true
	case 'b':
		return 2, Event{Kind: KindMetaBackward}, true
	default:
		return 2, Event{Kind: KindEscape}, true
	}
}

// decodeCSI parses "ESC [ params final", matching HandleCSI's parameter
// scanning (0x30-0x3F, then 0x20-0x2F, then the final byte).
func decodeCSI(seq []byte) (consumed int, ev Event, complete bool) {
	i := 2
	for i < len(seq) && seq[i] >= 0x30 && seq[i] <= 0x3F {
		i++
	}
	for i < len(seq) && seq[i] >= 0x20 && seq[i] <= 0x2F {
		i++
	}
	if i >= len(seq) {
		return 0, Event{}, false
	}
	final := seq[i]
	params := string(seq[2:i])
	total := i + 1

	switch final {
	case 'A':
		return total, Event{Kind: KindArrowUp}, true
	case 'B':
		return total, Event{Kind: KindArrowDown}, true
	case 'C':
		return total, Event{Kind: KindArrowRight}, true
	case 'D':
		return total, Event{Kind: KindArrowLeft}, true
	case 'Z':
		// Back-tab (shift+tab), CSI Z — no parameters.
		return total, Event{Kind: KindShiftTab}, true
	case 'u':
		// Kitty keyboard protocol: CSI <code>;<modifiers> u
		if params == "13;5" {
			return total, Event{Kind: KindCtrlEnter}, true
		}
		return total, Event{Kind: KindUnknown}, true
	case '~':
		// xterm modifyOtherKeys: CSI 27;<modifiers>;<code> ~
		if params == "27;5;13" {
			return total, Event{Kind: KindCtrlEnter}, true
		}
		return total, Event{Kind: KindUnknown}, true
	case 'M', 'm':
		if ev, ok := decodeSGRMouse(params, final == 'M'); ok {
			return total, ev, true
		}
		return total, Event{Kind: KindUnknown}, true
	}
	return total, Event{Kind: KindUnknown}, true
}

// decodeSGRMouse parses the "<Cb;Cx;Cy" portion of an SGR mouse report.
// Button 64/65 are scroll wheel up/down; button 0 press is a click.
func decodeSGRMouse(params string, press bool) (Event, bool) {
	if !strings.HasPrefix(params, "<") {
		return Event{}, false
	}
	parts := strings.Split(params[1:], ";")
	if len(parts) < 3 {
		return Event{}, false
	}
	button, err := strconv.Atoi(parts[0])
	if err != nil {
		return Event{}, false
	}
	switch button {
	case 0:
		if press {
			return Event{Kind: KindMouseClick}, true
		}
		return Event{}, false
	case 64:
		return Event{Kind: KindMouseScrollUp}, true
	case 65:
		return Event{Kind: KindMouseScrollDown}, true
	}
	return Event{}, false
}

// IsShiftEnter reports whether raw holds the shift+enter escape sequence
// this terminal emits (kitty: `CSI 13;2u`, xterm modifyOtherKeys:
// `CSI 27;2;13~`) so callers can insert a literal newline instead of
// submitting.
func IsShiftEnter(raw []byte) bool {
	s := string(raw)
	return s == "\x1b[13;2u" || s == "\x1b[27;2;13~"
}

// IsCtrlEscape reports whether raw holds Ctrl+Escape (kitty: `CSI 27;5u`),
// which exits passthrough mode without forwarding a bare Esc to the child.
func IsCtrlEscape(raw []byte) bool {
	return string(raw) == "\x1b[27;5u"
}
