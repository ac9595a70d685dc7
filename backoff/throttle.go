package backoff

import (
	"sync"
	"time"
)

// Throttler rate-limits calls to fn. The first call in a window fires
// synchronously; calls arriving inside an active window are coalesced into
// one trailing call carrying the last argument, fired when the window
// elapses.
type Throttler[T any] struct {
	window time.Duration
	fn     func(T)

	mu      sync.Mutex
	active  bool
	pending bool
	last    T
	timer   *time.Timer
}

// NewThrottler creates a Throttler invoking fn at most once per window,
// plus one trailing call for coalesced arguments.
func NewThrottler[T any](window time.Duration, fn func(T)) *Throttler[T] {
	return &Throttler[T]{window: window, fn: fn}
}

// Call requests an invocation of fn with arg.
func (t *Throttler[T]) Call(arg T) {
	t.mu.Lock()
	if t.active {
		t.pending = true
		t.last = arg
		t.mu.Unlock()
		return
	}
	t.active = true
	t.timer = time.AfterFunc(t.window, t.windowElapsed)
	t.mu.Unlock()

	t.fn(arg)
}

func (t *Throttler[T]) windowElapsed() {
	t.mu.Lock()
	t.active = false
	fire := t.pending
	arg := t.last
	t.pending = false
	var zero T
	t.last = zero
	t.mu.Unlock()

	if fire {
		t.fn(arg)
	}
}

// Cancel drops any pending trailing call and closes the current window.
func (t *Throttler[T]) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.active = false
	t.pending = false
	var zero T
	t.last = zero
}
