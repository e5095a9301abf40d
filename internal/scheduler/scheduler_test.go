package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestTaskRunsImmediatelyAndRepeats(t *testing.T) {
	var runs int32
	task := New("test", 10*time.Millisecond, true, func(context.Context) { atomic.AddInt32(&runs, 1) })

	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer task.Stop()

	waitFor(t, func() bool { return atomic.LoadInt32(&runs) >= 3 })
}

func TestTaskDoubleStart(t *testing.T) {
	task := New("test", time.Hour, false, func(context.Context) {})
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer task.Stop()

	if err := task.Start(context.Background()); err == nil {
		t.Fatal("expected error on second start")
	}
}

func TestTaskRejectsNonPositiveInterval(t *testing.T) {
	task := New("test", 0, false, func(context.Context) {})
	if err := task.Start(context.Background()); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestTaskStopHaltsRuns(t *testing.T) {
	var runs int32
	task := New("test", 5*time.Millisecond, true, func(context.Context) { atomic.AddInt32(&runs, 1) })
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&runs) >= 1 })

	task.Stop()
	task.Stop()
	if task.Running() {
		t.Fatal("task still running after Stop")
	}

	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&runs) != after {
		t.Fatal("task ran after Stop")
	}
}

func TestTaskRestart(t *testing.T) {
	var runs int32
	task := New("test", time.Hour, true, func(context.Context) { atomic.AddInt32(&runs, 1) })
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&runs) == 1 })

	if err := task.Restart(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer task.Stop()
	waitFor(t, func() bool { return atomic.LoadInt32(&runs) == 2 })
}

func TestTaskStopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs int32
	task := New("test", 5*time.Millisecond, false, func(context.Context) { atomic.AddInt32(&runs, 1) })
	if err := task.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return atomic.LoadInt32(&runs) >= 1 })
	cancel()

	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt32(&runs)
	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&runs) != after {
		t.Fatal("task kept running after parent context cancellation")
	}
	task.Stop()
}

func TestTaskKeepsCadenceWhenRunsTakeTime(t *testing.T) {
	var runs int32
	task := New("test", 100*time.Millisecond, true, func(context.Context) {
		atomic.AddInt32(&runs, 1)
		time.Sleep(60 * time.Millisecond)
	})
	if err := task.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	time.Sleep(1050 * time.Millisecond)
	task.Stop()

	// Slots at 0, 100ms ... 1000ms give 11 runs; a loop that waits a full
	// interval after each run would manage about 7.
	if got := atomic.LoadInt32(&runs); got < 9 || got > 12 {
		t.Fatalf("expected about 11 runs in 1.05s, got %d", got)
	}
}

func TestNextSlot(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	interval := 100 * time.Millisecond

	cases := []struct {
		name    string
		now     time.Time
		want    time.Time
		skipped int
	}{
		{"run finished early", base.Add(60 * time.Millisecond), base.Add(100 * time.Millisecond), 0},
		{"run ended on the next slot", base.Add(100 * time.Millisecond), base.Add(200 * time.Millisecond), 1},
		{"run overran one slot", base.Add(150 * time.Millisecond), base.Add(200 * time.Millisecond), 1},
		{"run overran three slots", base.Add(350 * time.Millisecond), base.Add(400 * time.Millisecond), 3},
	}
	for _, tc := range cases {
		got, skipped := nextSlot(base, tc.now, interval)
		if !got.Equal(tc.want) || skipped != tc.skipped {
			t.Errorf("%s: got %s skipped %d, want %s skipped %d",
				tc.name, got.Sub(base), skipped, tc.want.Sub(base), tc.skipped)
		}
	}
}
