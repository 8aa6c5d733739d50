package task

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleEveryRunsAndStops(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	cancel := ScheduleEvery(10*time.Millisecond, "test", func() {
		runs.Add(1)
	})

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatal("job never ran")
	}

	cancel()
	cancel() // idempotent

	after := runs.Load()
	time.Sleep(50 * time.Millisecond)
	// One tick may have been in flight when cancel landed.
	if runs.Load() > after+1 {
		t.Fatalf("job kept running after cancel: %d -> %d", after, runs.Load())
	}
}

func TestScheduleEveryRecoversPanics(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	cancel := ScheduleEvery(10*time.Millisecond, "panicky", func() {
		runs.Add(1)
		panic("boom")
	})
	defer cancel()

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if runs.Load() < 2 {
		t.Fatal("panicking job did not keep running")
	}
}
