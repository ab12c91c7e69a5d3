// Package resize implements the window resize controller (spec §4.6):
// deferred height updates, ~120ms current→target easing, a re-entrancy
// guard forbidding resize calls from within render, and the per-variant
// height formulas.
//
// No teacher file owns window-animation logic directly (the teacher is a
// terminal client with no windowing system), so the deferred-queue/flush
// shape is grounded on the same "enqueue now, drain on a later tick"
// pattern the teacher uses for its outbound wire queue and escape-key
// debounce timers (`internal/terminal/wrapper.go`'s `EscTimer`/
// `SlashTimer` one-shot `time.AfterFunc` pattern), generalized here into
// a repeating animation driver.
package resize

import (
	"errors"
	"sync"
	"time"
)

// AnimationDuration is how long a queued resize takes to ease from the
// current height to its target (spec §4.6: "~120 ms").
const AnimationDuration = 120 * time.Millisecond

// frameInterval is the animation driver's tick rate.
const frameInterval = 16 * time.Millisecond

// ErrResizeDuringRender is returned by QueueResize when called while the
// controller believes a render is in progress (spec §4.6: "Forbidden:
// calling the resize primitive during render").
var ErrResizeDuringRender = errors.New("resize: queue_resize called during render")

// Controller owns one window's target height, its currently animated
// height, and a re-entrancy flag guarding against resize-during-render.
type Controller struct {
	mu sync.Mutex

	minHeight, maxHeight float64

	current float64
	target  float64
	pending *float64

	animFrom  float64
	animStart time.Time
	animating bool
	timer     *time.Timer

	inRender bool
	now      func() time.Time
	onFrame  func(height float64)
}

// NewController creates a resize controller clamped to [minHeight,
// maxHeight]. onFrame is invoked on the animation driver's goroutine each
// time the animated height changes; it must not itself call QueueResize
// synchronously (see BeginRender/EndRender).
func NewController(minHeight, maxHeight float64, onFrame func(height float64)) *Controller {
	return &Controller{
		minHeight: minHeight,
		maxHeight: maxHeight,
		now:       time.Now,
		onFrame:   onFrame,
	}
}

// BeginRender marks that a render is in progress; QueueResize refuses
// calls until EndRender.
func (c *Controller) BeginRender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inRender = true
}

// EndRender clears the render-in-progress guard.
func (c *Controller) EndRender() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inRender = false
}

// QueueResize enqueues a target height (clamped to the controller's
// bounds). It does not start animating immediately: the caller must call
// Flush at the end of the current effect cycle (spec §4.6).
func (c *Controller) QueueResize(targetPx float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inRender {
		return ErrResizeDuringRender
	}
	clamped := clamp(targetPx, c.minHeight, c.maxHeight)
	c.pending = &clamped
	return nil
}

// Flush drains any pending resize target queued since the last Flush and
// (re)starts the easing animation toward it. Calling Flush while no
// resize is pending is a no-op. Re-entrant Flush calls made from within
// an in-progress Flush are ignored.
func (c *Controller) Flush() {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	target := *c.pending
	c.pending = nil
	if c.animating && target == c.target {
		c.mu.Unlock()
		return
	}
	// Cancellation replaces the current animation's target without
	// snapping: the new animation starts from wherever `current` is
	// right now, not from the old target.
	c.animFrom = c.current
	c.animStart = c.now()
	c.target = target
	wasAnimating := c.animating
	c.animating = true
	c.mu.Unlock()

	if !wasAnimating {
		c.scheduleTick()
	}
}

func (c *Controller) scheduleTick() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(frameInterval, c.tick)
	c.mu.Unlock()
}

func (c *Controller) tick() {
	c.mu.Lock()
	if !c.animating {
		c.mu.Unlock()
		return
	}
	elapsed := c.now().Sub(c.animStart)
	frac := float64(elapsed) / float64(AnimationDuration)
	done := frac >= 1
	if done {
		frac = 1
	}
	c.current = c.animFrom + (c.target-c.animFrom)*easeOutCubic(frac)
	if done {
		c.animating = false
	}
	height := c.current
	onFrame := c.onFrame
	c.mu.Unlock()

	if onFrame != nil {
		onFrame(height)
	}
	if !done {
		c.scheduleTick()
	}
}

// Current returns the currently animated height.
func (c *Controller) Current() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Animating reports whether an easing animation is in progress.
func (c *Controller) Animating() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.animating
}

func easeOutCubic(t float64) float64 {
	f := t - 1
	return f*f*f + 1
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// FormHeight computes a form-variant prompt's target height: base plus
// one row per field, clamped to [minHeight, maxHeight] (spec §4.6).
func FormHeight(base, rowHeight float64, rows int, minHeight, maxHeight float64) float64 {
	return clamp(base+float64(rows)*rowHeight, minHeight, maxHeight)
}

// ListHeight computes a list-variant prompt's target height: header plus
// footer plus the visible rows, capped at 18 rows of content (spec §4.6).
func ListHeight(header, footer, rowHeight float64, rows int) float64 {
	content := clamp(float64(rows)*rowHeight, 0, 18*rowHeight)
	return header + footer + content
}
