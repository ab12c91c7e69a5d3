package resize

import (
	"sync"
	"testing"
	"time"
)

func TestQueueResizeRejectedDuringRender(t *testing.T) {
	c := NewController(100, 600, nil)
	c.BeginRender()
	if err := c.QueueResize(300); err != ErrResizeDuringRender {
		t.Fatalf("QueueResize during render = %v, want ErrResizeDuringRender", err)
	}
	c.EndRender()
	if err := c.QueueResize(300); err != nil {
		t.Fatalf("QueueResize after EndRender: %v", err)
	}
}

func TestQueueResizeClampsToBounds(t *testing.T) {
	c := NewController(100, 600, nil)
	_ = c.QueueResize(10000)
	c.Flush()
	if c.target != 600 {
		t.Fatalf("target = %v, want clamped 600", c.target)
	}
	_ = c.QueueResize(-50)
	c.Flush()
	if c.target != 100 {
		t.Fatalf("target = %v, want clamped 100", c.target)
	}
}

func TestFlushWithNoPendingIsNoOp(t *testing.T) {
	c := NewController(100, 600, nil)
	c.Flush()
	if c.Animating() {
		t.Fatal("expected no animation without a queued resize")
	}
}

func TestAnimationEasesToTargetAndStops(t *testing.T) {
	var mu sync.Mutex
	var frames []float64
	done := make(chan struct{})

	c := NewController(0, 1000, func(h float64) {
		mu.Lock()
		frames = append(frames, h)
		mu.Unlock()
	})
	_ = c.QueueResize(300)
	c.Flush()

	go func() {
		for {
			time.Sleep(5 * time.Millisecond)
			if !c.Animating() {
				close(done)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("animation never completed")
	}

	if got := c.Current(); got != 300 {
		t.Fatalf("Current after animation completes = %v, want 300", got)
	}
	mu.Lock()
	n := len(frames)
	mu.Unlock()
	if n == 0 {
		t.Fatal("expected at least one onFrame call")
	}
}

func TestCancellationReplacesTargetWithoutSnapping(t *testing.T) {
	c := NewController(0, 1000, nil)
	_ = c.QueueResize(300)
	c.Flush()

	time.Sleep(30 * time.Millisecond) // let it animate partway
	midway := c.Current()
	if midway <= 0 || midway >= 300 {
		t.Fatalf("expected partial progress before retarget, got %v", midway)
	}

	_ = c.QueueResize(500)
	c.Flush()
	// Retargeting must not snap `current` back to 0 or jump straight to 500.
	after := c.Current()
	if after != midway {
		t.Fatalf("expected current to stay at %v immediately after retarget, got %v", midway, after)
	}

	for i := 0; i < 50 && c.Animating(); i++ {
		time.Sleep(5 * time.Millisecond)
	}
	if got := c.Current(); got != 500 {
		t.Fatalf("Current after retargeted animation completes = %v, want 500", got)
	}
}

func TestFormHeightClamps(t *testing.T) {
	got := FormHeight(40, 30, 2, 50, 200)
	if got != 100 {
		t.Fatalf("FormHeight = %v, want 100", got)
	}
	if got := FormHeight(40, 30, 100, 50, 200); got != 200 {
		t.Fatalf("FormHeight over max = %v, want clamped 200", got)
	}
}

func TestListHeightCapsContentAt18Rows(t *testing.T) {
	got := ListHeight(20, 10, 16, 100)
	want := 20.0 + 10.0 + 18*16.0
	if got != want {
		t.Fatalf("ListHeight = %v, want %v", got, want)
	}
}
