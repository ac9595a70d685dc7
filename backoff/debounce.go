package backoff

import (
	"sync"
	"time"
)

// Debouncer delays calls to fn until delay has elapsed since the most
// recent Call. Each Call resets the timer; fn fires once with the last
// arguments.
type Debouncer[T any] struct {
	delay time.Duration
	fn    func(T)

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	last    T
}

// NewDebouncer creates a Debouncer around fn.
func NewDebouncer[T any](delay time.Duration, fn func(T)) *Debouncer[T] {
	return &Debouncer[T]{delay: delay, fn: fn}
}

// Call schedules fn to fire delay from now with arg, superseding any
// previously scheduled invocation.
func (d *Debouncer[T]) Call(arg T) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = true
	d.last = arg
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *Debouncer[T]) fire() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	arg := d.last
	d.clearLocked()
	d.mu.Unlock()

	d.fn(arg)
}

// Cancel drops any pending invocation.
func (d *Debouncer[T]) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
}

// Flush fires any pending invocation immediately with its last arguments.
func (d *Debouncer[T]) Flush() {
	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return
	}
	arg := d.last
	d.clearLocked()
	d.mu.Unlock()

	d.fn(arg)
}

// clearLocked resets pending state. Caller holds d.mu.
func (d *Debouncer[T]) clearLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	var zero T
	d.last = zero
}
