package socketio

import (
	"sync"
	"time"
)

// BroadcastDebouncer collapses rapid player snapshot updates into batched
// broadcasts. Seeks and track changes fire several engine events back to
// back; clients only need the final state once the burst settles.
type BroadcastDebouncer struct {
	window   time.Duration
	callback func()

	mu      sync.Mutex
	pending bool
	timer   *time.Timer
	stopped bool
}

// NewBroadcastDebouncer creates a debouncer with the given window duration.
// callback is invoked once per settled burst of triggers.
func NewBroadcastDebouncer(window time.Duration, callback func()) *BroadcastDebouncer {
	return &BroadcastDebouncer{
		window:   window,
		callback: callback,
	}
}

// Trigger records that a broadcast is needed. The callback is deferred until
// the debounce window elapses without further triggers.
func (d *BroadcastDebouncer) Trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.pending = true

	// Reset the timer
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.window, d.flush)
}

// flush fires the callback if a trigger is pending and resets the flag.
func (d *BroadcastDebouncer) flush() {
	d.mu.Lock()
	fire := d.pending
	d.pending = false
	d.mu.Unlock()

	if fire && d.callback != nil {
		d.callback()
	}
}

// Stop prevents any further callbacks from firing.
func (d *BroadcastDebouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}
