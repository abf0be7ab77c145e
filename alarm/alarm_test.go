package alarm

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestAlarmRunsTasksInDeadlineOrder(t *testing.T) {
	a := New()
	defer a.Stop()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	wg.Add(3)

	record := func(n int) Task {
		return func() {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
			wg.Done()
		}
	}

	now := time.Now()
	a.Add(now.Add(30*time.Millisecond), record(3))
	a.Add(now.Add(10*time.Millisecond), record(1))
	a.Add(now.Add(20*time.Millisecond), record(2))

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for scheduled tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Fatalf("execution order = %v, want [1 2 3]", order)
	}
}

func TestAlarmEveryReschedulesUntilStopped(t *testing.T) {
	a := New()
	var count int32
	a.Every(5*time.Millisecond, func() { atomic.AddInt32(&count, 1) })

	time.Sleep(60 * time.Millisecond)
	a.Stop()
	seenAtStop := atomic.LoadInt32(&count)
	if seenAtStop < 3 {
		t.Fatalf("count at stop = %d, want at least 3 ticks", seenAtStop)
	}

	time.Sleep(30 * time.Millisecond)
	if atomic.LoadInt32(&count) != seenAtStop {
		t.Fatalf("count kept growing after Stop: %d -> %d", seenAtStop, atomic.LoadInt32(&count))
	}
}

func TestAlarmDropsTasksAddedAfterStop(t *testing.T) {
	a := New()
	a.Stop()

	var ran int32
	a.Add(time.Now(), func() { atomic.AddInt32(&ran, 1) })
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatalf("task ran after Stop, want dropped silently")
	}
}
