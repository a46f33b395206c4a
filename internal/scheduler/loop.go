package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLoopStopped is returned when posting to a loop that is not running.
var ErrLoopStopped = errors.New("scheduler: loop stopped")

// defaultEventBuffer is the number of posted events queued before Post blocks.
const defaultEventBuffer = 1024

// Logger defines the logging interface used by the Loop.
type Logger interface {
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Error(string, ...any) {}

// Loop is the shared event loop. Host events, API commands and timer
// callbacks all execute on the goroutine running Run, so component state
// never needs locking.
type Loop struct {
	ticks    *TickScheduler
	interval time.Duration
	events   chan func()
	done     chan struct{}
	logger   Logger
}

// NewLoop creates a loop that advances its timers every interval.
func NewLoop(interval time.Duration, logger Logger) *Loop {
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Loop{
		ticks:    NewTickScheduler(),
		interval: interval,
		events:   make(chan func(), defaultEventBuffer),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// Schedule implements Scheduler. Must be called from the loop goroutine.
func (l *Loop) Schedule(delay time.Duration, fn func()) *Timer {
	return l.ticks.Schedule(delay, l.guard("timer", fn))
}

// Repeat implements Scheduler. Must be called from the loop goroutine.
func (l *Loop) Repeat(interval time.Duration, count int, fn func()) *Timer {
	return l.ticks.Repeat(interval, count, l.guard("repeat", fn))
}

// Post queues fn to run on the loop goroutine. It blocks only when the
// event buffer is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}
	select {
	case l.events <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Do runs fn on the loop goroutine and waits for its result.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if err := l.Post(func() { result <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for loop: %w", ctx.Err())
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run processes events and timers until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	start := time.Now()

	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-l.events:
			l.guard("event", fn)()
		case <-ticker.C:
			l.ticks.AdvanceTo(time.Since(start))
		}
	}
}

// Done is closed once Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// guard recovers panics so one faulty handler cannot stop the loop.
func (l *Loop) guard(kind string, fn func()) func() {
	return func() {
		defer func() {
			if r := recover(); r != nil {
				l.logger.Error("loop callback panic recovered", "kind", kind, "panic", r)
			}
		}()
		fn()
	}
}
