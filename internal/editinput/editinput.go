// Package editinput implements the shared input/text editing primitive
// (spec §9): text, a selection{anchor, cursor} and a visible-cursor blink
// state (no clipboard state is held), with display-width-aware cursor placement
// so the placeholder and typed text share an identical left origin via an
// always-reserved cursor slot instead of negative-margin hacks.
//
// Grounded on the teacher's internal/overlay/cursor.go (rune-aware cursor
// movement, word motion, kill-to-end/start, insert/delete), with cursor
// placement redone using charmbracelet/x/ansi for display width instead of
// assuming one column per byte.
package editinput

import (
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/x/ansi"
)

// CursorWidth and CursorGapX define the always-reserved slot width (spec
// §9) so placeholder and live text share one left origin regardless of
// whether the cursor itself is currently rendered.
const (
	CursorWidth = 1
	CursorGapX  = 1
)

// ReservedCursorSlot is the fixed column width the input field reserves
// for the cursor, independent of whether text is present.
const ReservedCursorSlot = CursorWidth + CursorGapX

// Editor is one text input's full editing state.
type Editor struct {
	Text      []byte
	CursorPos int // byte offset into Text

	SelectionAnchor int
	HasSelection    bool

	cursorVisible bool
	blinkTimer    *time.Timer
	hidden        bool // true while the owning window/prompt is not focused
}

// InsertByte inserts a single byte at the cursor position. Called once per
// incoming byte, so multi-byte UTF-8 sequences assemble correctly as long
// as bytes arrive in order (matches how raw terminal/wire input is fed).
func (e *Editor) InsertByte(b byte) {
	e.clearSelection()
	e.Text = append(e.Text, 0)
	copy(e.Text[e.CursorPos+1:], e.Text[e.CursorPos:])
	e.Text[e.CursorPos] = b
	e.CursorPos++
}

// InsertString inserts a complete string (e.g. a paste) at the cursor.
func (e *Editor) InsertString(s string) {
	e.clearSelection()
	e.Text = append(e.Text[:e.CursorPos], append([]byte(s), e.Text[e.CursorPos:]...)...)
	e.CursorPos += len(s)
}

// DeleteBackward removes the rune before the cursor, or the selection if
// one is active. Returns true if anything was deleted.
func (e *Editor) DeleteBackward() bool {
	if e.HasSelection {
		e.deleteSelection()
		return true
	}
	if e.CursorPos <= 0 {
		return false
	}
	_, size := utf8.DecodeLastRune(e.Text[:e.CursorPos])
	copy(e.Text[e.CursorPos-size:], e.Text[e.CursorPos:])
	e.Text = e.Text[:len(e.Text)-size]
	e.CursorPos -= size
	return true
}

// CursorLeft moves the cursor left by one rune, collapsing any selection.
func (e *Editor) CursorLeft() {
	e.clearSelection()
	if e.CursorPos > 0 {
		_, size := utf8.DecodeLastRune(e.Text[:e.CursorPos])
		e.CursorPos -= size
	}
}

// CursorRight moves the cursor right by one rune, collapsing any selection.
func (e *Editor) CursorRight() {
	e.clearSelection()
	if e.CursorPos < len(e.Text) {
		_, size := utf8.DecodeRune(e.Text[e.CursorPos:])
		e.CursorPos += size
	}
}

// CursorToStart moves the cursor to byte offset 0.
func (e *Editor) CursorToStart() { e.clearSelection(); e.CursorPos = 0 }

// CursorToEnd moves the cursor to the end of Text.
func (e *Editor) CursorToEnd() { e.clearSelection(); e.CursorPos = len(e.Text) }

// CursorForwardWord moves the cursor to the end of the next word.
func (e *Editor) CursorForwardWord() {
	e.clearSelection()
	i := e.CursorPos
	for i < len(e.Text) {
		r, size := utf8.DecodeRune(e.Text[i:])
		if isWordChar(r) {
			break
		}
		i += size
	}
	for i < len(e.Text) {
		r, size := utf8.DecodeRune(e.Text[i:])
		if !isWordChar(r) {
			break
		}
		i += size
	}
	e.CursorPos = i
}

// CursorBackwardWord moves the cursor to the start of the previous word.
func (e *Editor) CursorBackwardWord() {
	e.clearSelection()
	i := e.CursorPos
	for i > 0 {
		r, size := utf8.DecodeLastRune(e.Text[:i])
		if isWordChar(r) {
			break
		}
		i -= size
	}
	for i > 0 {
		r, size := utf8.DecodeLastRune(e.Text[:i])
		if !isWordChar(r) {
			break
		}
		i -= size
	}
	e.CursorPos = i
}

// KillToEnd removes text from the cursor to the end of the input.
func (e *Editor) KillToEnd() { e.Text = e.Text[:e.CursorPos] }

// KillToStart removes text from the start of the input to the cursor.
func (e *Editor) KillToStart() {
	e.Text = append(e.Text[:0], e.Text[e.CursorPos:]...)
	e.CursorPos = 0
}

// SelectTo sets the selection anchor to the current cursor position and
// extends it to newPos, moving the cursor there (shift+arrow semantics).
func (e *Editor) SelectTo(newPos int) {
	if !e.HasSelection {
		e.SelectionAnchor = e.CursorPos
		e.HasSelection = true
	}
	e.CursorPos = newPos
}

func (e *Editor) clearSelection() { e.HasSelection = false }

func (e *Editor) deleteSelection() {
	start, end := e.SelectionAnchor, e.CursorPos
	if start > end {
		start, end = end, start
	}
	e.Text = append(e.Text[:start], e.Text[end:]...)
	e.CursorPos = start
	e.HasSelection = false
}

func isWordChar(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// CursorColumn returns the display column (0-based, display-width-aware
// via ansi.StringWidth) the cursor currently sits at within Text.
func (e *Editor) CursorColumn() int {
	return ansi.StringWidth(string(e.Text[:e.CursorPos]))
}

// LeftOrigin returns the column at which text rendering should start so
// that, regardless of whether Text is empty (showing a placeholder) or
// populated, the reserved cursor slot keeps both left-aligned identically.
func LeftOrigin() int { return ReservedCursorSlot }

// StartBlink begins the cursor-visibility blink cycle, calling onToggle
// each time visibility flips. The timer re-arms itself but exits
// immediately — without scheduling another tick — once Hide marks the
// editor hidden, so a backgrounded prompt does not keep waking the
// process.
func (e *Editor) StartBlink(interval time.Duration, onToggle func(visible bool)) {
	e.cursorVisible = true
	var tick func()
	tick = func() {
		if e.hidden {
			return
		}
		e.cursorVisible = !e.cursorVisible
		onToggle(e.cursorVisible)
		e.blinkTimer = time.AfterFunc(interval, tick)
	}
	e.blinkTimer = time.AfterFunc(interval, tick)
}

// StopBlink cancels the blink timer and hides the cursor.
func (e *Editor) StopBlink() {
	if e.blinkTimer != nil {
		e.blinkTimer.Stop()
	}
	e.cursorVisible = false
}

// Hide marks the editor as not visible (window hidden / unfocused); the
// next blink tick will observe this and stop rescheduling itself.
func (e *Editor) Hide() { e.hidden = true }

// Show marks the editor visible again and resumes blinking if a blink
// cycle was previously started.
func (e *Editor) Show(interval time.Duration, onToggle func(visible bool)) {
	if !e.hidden {
		return
	}
	e.hidden = false
	e.StartBlink(interval, onToggle)
}

// CursorVisible reports the current blink phase.
func (e *Editor) CursorVisible() bool { return e.cursorVisible }
