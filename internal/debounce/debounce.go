// Package debounce provides trailing debouncers and settle polling on top of
// a Scheduler that delivers callbacks on the caller's event loop.
package debounce

import (
	"sync"
	"time"
)

type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	After(d time.Duration, fn func()) Timer
}

// RealScheduler runs callbacks on the timer goroutine.
type RealScheduler struct{}

func (RealScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// LoopScheduler hands expired callbacks to Post so they run on a single
// event loop goroutine.
type LoopScheduler struct {
	Post func(func())
}

func (s LoopScheduler) After(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() { s.Post(fn) })
}

// Debouncer delays fn until Trigger has not been called for delay.
// Only one timer is pending at a time; a new Trigger restarts it.
type Debouncer struct {
	mu    sync.Mutex
	sched Scheduler
	delay time.Duration
	fn    func()
	timer Timer
	gen   uint64
}

func New(sched Scheduler, delay time.Duration, fn func()) *Debouncer {
	if sched == nil {
		sched = RealScheduler{}
	}
	return &Debouncer{sched: sched, delay: delay, fn: fn}
}

func (d *Debouncer) Delay() time.Duration {
	return d.delay
}

// Trigger (re)starts the quiet period.
func (d *Debouncer) Trigger() {
	d.TriggerWith(nil)
}

// TriggerWith restarts the quiet period and replaces the pending callback
// with fn. The last callback wins.
func (d *Debouncer) TriggerWith(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fn != nil {
		d.fn = fn
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.sched.After(d.delay, func() { d.fire(gen) })
}

func (d *Debouncer) fire(gen uint64) {
	d.mu.Lock()
	if gen != d.gen || d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	fn := d.fn
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Cancel drops a pending call. It reports whether one was pending.
func (d *Debouncer) Cancel() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer == nil {
		return false
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	return true
}

// Flush runs a pending call immediately.
func (d *Debouncer) Flush() {
	d.mu.Lock()
	if d.timer == nil {
		d.mu.Unlock()
		return
	}
	d.timer.Stop()
	d.timer = nil
	d.gen++
	fn := d.fn
	d.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timer != nil
}

// Poll checks ready every interval, at most attempts times, then calls done
// with whether ready ever returned true. The first check happens after one
// interval.
func Poll(sched Scheduler, interval time.Duration, attempts int, ready func() bool, done func(settled bool)) Timer {
	p := &poller{sched: sched, interval: interval, left: attempts, ready: ready, done: done}
	p.schedule()
	return p
}

type poller struct {
	mu       sync.Mutex
	sched    Scheduler
	interval time.Duration
	left     int
	ready    func() bool
	done     func(bool)
	timer    Timer
	stopped  bool
}

func (p *poller) schedule() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return
	}
	p.timer = p.sched.After(p.interval, p.check)
}

func (p *poller) check() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.left--
	left := p.left
	p.mu.Unlock()

	if p.ready == nil || p.ready() {
		p.finish(true)
		return
	}
	if left <= 0 {
		p.finish(false)
		return
	}
	p.schedule()
}

func (p *poller) finish(settled bool) {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	if p.done != nil {
		p.done(settled)
	}
}

func (p *poller) Stop() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return false
	}
	p.stopped = true
	if p.timer != nil {
		p.timer.Stop()
	}
	return true
}
