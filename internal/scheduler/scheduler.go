// Package scheduler runs a function on a fixed cadence until stopped.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"salesflow/logger"
)

// Task is a cancellable repeating timer on a fixed wall-clock cadence: runs
// start at Start, Start+interval, Start+2*interval and so on, regardless of
// how long each run takes. Runs never overlap; a slot that passes while a run
// is still going is skipped.
type Task struct {
	name      string
	interval  time.Duration
	immediate bool
	fn        func(context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
	log     *logger.Log
}

// New creates a task. When immediate is set the first run happens on Start
// instead of after one interval.
func New(name string, interval time.Duration, immediate bool, fn func(context.Context)) *Task {
	return &Task{
		name:      name,
		interval:  interval,
		immediate: immediate,
		fn:        fn,
		log:       logger.GetLogger(),
	}
}

func (t *Task) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		return fmt.Errorf("task %s already running", t.name)
	}
	if t.interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", t.name)
	}

	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	t.running = true

	go t.loop(runCtx, t.done)

	t.log.WithComponent("scheduler").WithFields(logger.Fields{
		"task":     t.name,
		"interval": t.interval.String(),
	}).Debug("task started")
	return nil
}

// Stop cancels the task and waits for an in-progress run to return. It is
// safe to call on a stopped task.
func (t *Task) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	cancel, done := t.cancel, t.done
	t.running = false
	t.mu.Unlock()

	cancel()
	<-done

	t.log.WithComponent("scheduler").WithFields(logger.Fields{"task": t.name}).Debug("task stopped")
}

// Restart stops the task and starts it again, resetting its cadence.
func (t *Task) Restart(ctx context.Context) error {
	t.Stop()
	return t.Start(ctx)
}

func (t *Task) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *Task) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	next := time.Now()
	if t.immediate {
		t.run(ctx, next)
	}
	next = t.advance(next, time.Now())

	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			t.run(ctx, next)
			next = t.advance(next, time.Now())
			timer.Reset(time.Until(next))
		}
	}
}

func (t *Task) run(ctx context.Context, slot time.Time) {
	start := time.Now()
	t.fn(ctx)
	if elapsed := time.Since(start); elapsed > t.interval {
		t.log.WithComponent("scheduler").WithFields(logger.Fields{
			"task":     t.name,
			"slot":     slot.Format(time.RFC3339Nano),
			"duration": elapsed.Milliseconds(),
			"interval": t.interval.Milliseconds(),
		}).Warn("run took longer than interval")
	}
}

// advance returns the first slot after prev that is still in the future,
// logging how many slots were skipped because a run overran them.
func (t *Task) advance(prev, now time.Time) time.Time {
	next, skipped := nextSlot(prev, now, t.interval)
	if skipped > 0 {
		t.log.WithComponent("scheduler").WithFields(logger.Fields{
			"task":    t.name,
			"skipped": skipped,
		}).Warn("skipped ticks while run was in progress")
	}
	return next
}

func nextSlot(prev, now time.Time, interval time.Duration) (time.Time, int) {
	next := prev.Add(interval)
	if next.After(now) {
		return next, 0
	}
	skipped := int(now.Sub(next)/interval) + 1
	return next.Add(time.Duration(skipped) * interval), skipped
}
