// Package debounce coalesces bursts of calls into a single trailing callback.
package debounce

import (
	"sync"
	"time"
)

// Debouncer runs fn once per burst of Schedule calls, with the key from the
// last call, after the window has elapsed without a new call.
//
// FlushNow runs a pending callback synchronously instead of waiting for the
// timer. Callbacks never run concurrently with each other.
type Debouncer struct {
	window time.Duration
	fn     func(key string)

	mu      sync.Mutex
	timer   *time.Timer
	key     string
	pending bool
	seq     uint64
	stopped bool

	// fireMu is held while fn runs so FlushNow can wait for an in-flight
	// callback.
	fireMu sync.Mutex
}

// New creates a debouncer with the given coalescing window.
func New(window time.Duration, fn func(key string)) *Debouncer {
	return &Debouncer{window: window, fn: fn}
}

// Schedule (re)starts the window for key. A pending call for a different key
// is replaced; callers that care about the previous key must FlushNow first.
func (d *Debouncer) Schedule(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.seq++
	seq := d.seq
	d.key = key
	d.pending = true
	d.timer = time.AfterFunc(d.window, func() { d.fire(seq) })
}

func (d *Debouncer) fire(seq uint64) {
	d.fireMu.Lock()
	defer d.fireMu.Unlock()

	d.mu.Lock()
	if seq != d.seq || !d.pending {
		d.mu.Unlock()
		return
	}
	key := d.key
	d.pending = false
	d.timer = nil
	d.mu.Unlock()

	d.fn(key)
}

// FlushNow runs the pending callback, if any, on the calling goroutine and
// waits for any callback already in flight. It reports whether a pending
// callback was run.
func (d *Debouncer) FlushNow() bool {
	d.fireMu.Lock()
	defer d.fireMu.Unlock()

	d.mu.Lock()
	if !d.pending {
		d.mu.Unlock()
		return false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	key := d.key
	d.pending = false
	d.seq++
	d.mu.Unlock()

	d.fn(key)
	return true
}

// CancelPending drops the pending callback without running it and returns
// the key it would have run with.
func (d *Debouncer) CancelPending() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.pending {
		return "", false
	}
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.pending = false
	d.seq++
	return d.key, true
}

// Pending reports whether a callback is scheduled.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop ignores further Schedule calls, then flushes any pending callback.
// A Schedule made while the final flush runs is dropped.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()

	d.FlushNow()
}
