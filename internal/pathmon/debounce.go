package pathmon

import (
	"sync"
	"time"
)

// debouncer collapses a burst of rapid events into a single firing: each
// touch restarts the timer, and fire runs only after delay of quiet. One
// timer per notifier, created lazily on first use and reset thereafter.
type debouncer struct {
	delay time.Duration
	fire  func()

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration, fire func()) *debouncer {
	return &debouncer{delay: delay, fire: fire}
}

// touch arms or re-arms the quiet-period timer.
func (d *debouncer) touch() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer == nil {
		d.timer = time.AfterFunc(d.delay, d.fired)
		return
	}
	d.timer.Reset(d.delay)
}

func (d *debouncer) fired() {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if !stopped {
		d.fire()
	}
}

// cancel drops any pending firing without disabling future touches.
func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// stop cancels any pending firing and disables the debouncer permanently.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
}
