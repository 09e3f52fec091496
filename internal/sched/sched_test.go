package sched

import (
	"sync"
	"testing"
	"time"
)

func TestScheduler_RunsInDeadlineOrder(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	var mu sync.Mutex
	var order []int
	done := make(chan struct{})

	record := func(n int) func() {
		return func() {
			mu.Lock()
			order = append(order, n)
			if len(order) == 3 {
				close(done)
			}
			mu.Unlock()
		}
	}

	base := time.Now()
	s.At(base.Add(30*time.Millisecond), record(3))
	s.At(base.Add(10*time.Millisecond), record(1))
	s.At(base.Add(20*time.Millisecond), record(2))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("tasks did not run")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, n := range order {
		if n != i+1 {
			t.Errorf("Expected order [1 2 3], got %v", order)
			break
		}
	}
}

func TestTask_Cancel(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	fired := make(chan struct{}, 1)
	task := s.After(20*time.Millisecond, func() { fired <- struct{}{} })

	if !task.Cancel() {
		t.Fatal("Expected Cancel to remove pending task")
	}
	if task.Cancel() {
		t.Error("Second Cancel should report false")
	}
	if s.Pending() != 0 {
		t.Errorf("Expected 0 pending tasks, got %d", s.Pending())
	}

	select {
	case <-fired:
		t.Error("Cancelled task ran")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestTask_CancelAfterRun(t *testing.T) {
	s := New()
	s.Start()
	defer s.Stop()

	fired := make(chan struct{})
	task := s.After(time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}

	if task.Cancel() {
		t.Error("Cancel after run should report false")
	}
}

func TestScheduler_StopDiscardsPending(t *testing.T) {
	s := New()
	s.Start()

	s.After(time.Hour, func() {})
	s.After(time.Hour, func() {})
	s.Stop()

	if s.Pending() != 0 {
		t.Errorf("Expected pending tasks to be discarded, got %d", s.Pending())
	}

	// Stop on a stopped scheduler is a no-op.
	s.Stop()
}
