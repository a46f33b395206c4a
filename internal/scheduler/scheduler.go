// Package scheduler provides the single-threaded cooperative timing model
// used by every Railrunner component.
//
// All delayed work is expressed as callbacks returning a *Timer handle.
// Owners keep the handle and cancel it before scheduling a replacement for
// the same purpose, so a stale callback can never apply after a newer command
// superseded it. Cancel is idempotent and safe on a nil handle.
//
// TickScheduler is the deterministic core: virtual time only moves when
// Advance is called (by the host tick or by a test). Loop drives a
// TickScheduler from the wall clock and serialises posted events with timer
// callbacks on one goroutine.
package scheduler

import (
	"container/heap"
	"sync"
	"time"
)

// Scheduler is the contract components depend on.
type Scheduler interface {
	// Schedule runs fn once after delay.
	Schedule(delay time.Duration, fn func()) *Timer
	// Repeat runs fn count times, every interval, first run after interval.
	Repeat(interval time.Duration, count int, fn func()) *Timer
}

// Timer is a handle to a scheduled callback.
type Timer struct {
	due       time.Duration
	seq       uint64
	interval  time.Duration
	remaining int
	fn        func()
	cancelled bool
	index     int // heap index, -1 when not queued
	owner     *TickScheduler
}

// Cancel stops the timer. Cancelling a fired, cancelled or nil timer is a no-op.
func (t *Timer) Cancel() {
	if t == nil || t.owner == nil {
		return
	}
	t.owner.cancel(t)
}

// Pending reports whether the callback is still due to run.
func (t *Timer) Pending() bool {
	if t == nil || t.owner == nil {
		return false
	}
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return !t.cancelled && t.index >= 0
}

// TickScheduler runs callbacks against a virtual clock.
//
// Callbacks run on the goroutine calling Advance, with no internal lock held,
// so a callback may freely schedule or cancel other timers.
type TickScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   uint64
	queue timerQueue
}

// NewTickScheduler creates a scheduler at virtual time zero.
func NewTickScheduler() *TickScheduler {
	return &TickScheduler{}
}

// Now returns the current virtual time.
func (s *TickScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Schedule implements Scheduler.
func (s *TickScheduler) Schedule(delay time.Duration, fn func()) *Timer {
	return s.add(delay, 0, 1, fn)
}

// Repeat implements Scheduler.
func (s *TickScheduler) Repeat(interval time.Duration, count int, fn func()) *Timer {
	if count <= 0 {
		return &Timer{index: -1}
	}
	return s.add(interval, interval, count, fn)
}

func (s *TickScheduler) add(delay, interval time.Duration, count int, fn func()) *Timer {
	if delay < 0 {
		delay = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	t := &Timer{
		due:       s.now + delay,
		seq:       s.seq,
		interval:  interval,
		remaining: count,
		fn:        fn,
		owner:     s,
	}
	heap.Push(&s.queue, t)
	return t
}

func (s *TickScheduler) cancel(t *Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.cancelled {
		return
	}
	t.cancelled = true
	if t.index >= 0 {
		heap.Remove(&s.queue, t.index)
	}
}

// Advance moves virtual time forward by d, firing every callback that falls
// due, in due-time order (ties in scheduling order).
func (s *TickScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	s.mu.Unlock()
	s.AdvanceTo(target)
}

// AdvanceTo moves virtual time to target. Moving backwards is ignored.
func (s *TickScheduler) AdvanceTo(target time.Duration) {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.queue[0].due > target {
			if target > s.now {
				s.now = target
			}
			s.mu.Unlock()
			return
		}
		t := heap.Pop(&s.queue).(*Timer)
		s.now = t.due
		t.remaining--
		if t.remaining > 0 {
			s.seq++
			t.seq = s.seq
			t.due = s.now + t.interval
			heap.Push(&s.queue, t)
		}
		fn := t.fn
		s.mu.Unlock()

		fn()
	}
}

// PendingCount returns the number of queued timers.
func (s *TickScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// timerQueue is a min-heap ordered by due time then sequence.
type timerQueue []*Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].due != q[j].due {
		return q[i].due < q[j].due
	}
	return q[i].seq < q[j].seq
}

func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index = i
	q[j].index = j
}

func (q *timerQueue) Push(x any) {
	t := x.(*Timer)
	t.index = len(*q)
	*q = append(*q, t)
}

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*q = old[:n-1]
	return t
}
