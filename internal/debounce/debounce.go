// Package debounce delays a stream of values until it goes quiet.
package debounce

import (
	"sync"
	"time"
)

// DefaultWindow is the quiet period used for search input.
const DefaultWindow = 500 * time.Millisecond

// Debouncer emits the most recent pushed value once no new value has arrived
// for the configured window. Superseded values are dropped, never queued.
// emit runs on a timer goroutine.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	emit    func(T)
	timer   *time.Timer
	seq     uint64
	last    T
	pending bool
	stopped bool
}

// New creates a Debouncer. A non-positive window uses DefaultWindow.
func New[T any](window time.Duration, emit func(T)) *Debouncer[T] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Debouncer[T]{window: window, emit: emit}
}

// Push records v as the latest value and restarts the quiet window.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}

	d.seq++
	seq := d.seq
	d.last = v
	d.pending = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
}

// fire emits the pending value if no newer Push, Flush or Stop happened
// since the timer for seq was armed.
func (d *Debouncer[T]) fire(seq uint64) {
	d.mu.Lock()
	if d.stopped || !d.pending || seq != d.seq {
		d.mu.Unlock()
		return
	}
	v := d.last
	d.pending = false
	d.mu.Unlock()

	d.emit(v)
}

// Flush emits the pending value immediately, if any. It reports whether a
// value was emitted.
func (d *Debouncer[T]) Flush() bool {
	d.mu.Lock()
	if d.stopped || !d.pending {
		d.mu.Unlock()
		return false
	}
	d.seq++
	if d.timer != nil {
		d.timer.Stop()
	}
	v := d.last
	d.pending = false
	d.mu.Unlock()

	d.emit(v)
	return true
}

// Pending reports whether a value is waiting for the window to elapse.
func (d *Debouncer[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop drops any pending value; later Pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	d.pending = false
	if d.timer != nil {
		d.timer.Stop()
	}
}
