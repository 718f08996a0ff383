package interview

import (
	"sync"
	"time"
)

// debouncer is a single-shot silence timer. Each Reset supersedes any
// armed timer; a superseded timer can never invoke fire because the
// generation check and the rearm happen under the same mutex, so a
// cancellation issued before the callback starts executing always wins.
type debouncer struct {
	timeout time.Duration
	fire    func()

	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

func newDebouncer(timeout time.Duration, fire func()) *debouncer {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &debouncer{timeout: timeout, fire: fire}
}

// Reset cancels any pending timer and arms a new one.
func (d *debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	gen := d.gen
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.timeout, func() {
		d.fireIfCurrent(gen)
	})
}

// Cancel stops any pending timer without rearming.
func (d *debouncer) Cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *debouncer) fireIfCurrent(gen uint64) {
	d.mu.Lock()
	if gen != d.gen {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	d.fire()
}
