// Package sched runs deferred actions from a single timer goroutine.
//
// Pending tasks live in a min-heap ordered by deadline. Cancelling a task
// removes it from the heap under the scheduler lock, so a cancelled task
// never runs once Cancel has returned true.
package sched

import (
	"container/heap"
	"sync"
	"time"
)

// Task is a handle to a scheduled action.
type Task struct {
	at    time.Time
	seq   uint64
	fn    func()
	index int // position in the heap, -1 once popped or cancelled
	s     *Scheduler
}

// Deadline returns the instant the task is due.
func (t *Task) Deadline() time.Time {
	return t.at
}

// Cancel removes the task if it has not started yet. It reports whether
// the task was removed.
func (t *Task) Cancel() bool {
	if t == nil || t.s == nil {
		return false
	}
	s := t.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.index < 0 {
		return false
	}
	heap.Remove(&s.tasks, t.index)
	t.index = -1
	return true
}

type taskHeap []*Task

func (h taskHeap) Len() int { return len(h) }

func (h taskHeap) Less(i, j int) bool {
	if h[i].at.Equal(h[j].at) {
		return h[i].seq < h[j].seq
	}
	return h[i].at.Before(h[j].at)
}

func (h taskHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *taskHeap) Push(x any) {
	t := x.(*Task)
	t.index = len(*h)
	*h = append(*h, t)
}

func (h *taskHeap) Pop() any {
	old := *h
	n := len(old)
	t := old[n-1]
	old[n-1] = nil
	t.index = -1
	*h = old[:n-1]
	return t
}

// Scheduler executes tasks at their deadlines. Task functions run on the
// scheduler goroutine and must not block.
type Scheduler struct {
	mu      sync.Mutex
	tasks   taskHeap
	seq     uint64
	wake    chan struct{}
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates an idle scheduler. Call Start to begin executing tasks.
func New() *Scheduler {
	return &Scheduler{
		wake: make(chan struct{}, 1),
	}
}

// Start launches the timer goroutine. Calling Start twice is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.loop(s.stop)
}

// Stop halts the timer goroutine and discards pending tasks.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stop)
	for _, t := range s.tasks {
		t.index = -1
	}
	s.tasks = nil
	s.mu.Unlock()

	s.wg.Wait()
}

// After schedules fn to run once d has elapsed.
func (s *Scheduler) After(d time.Duration, fn func()) *Task {
	return s.At(time.Now().Add(d), fn)
}

// At schedules fn to run at the given instant.
func (s *Scheduler) At(at time.Time, fn func()) *Task {
	s.mu.Lock()
	s.seq++
	t := &Task{at: at, seq: s.seq, fn: fn, s: s}
	heap.Push(&s.tasks, t)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return t
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) loop(stop <-chan struct{}) {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	var ready []*Task
	for {
		ready = ready[:0]
		wait := time.Hour

		s.mu.Lock()
		now := time.Now()
		for len(s.tasks) > 0 && !s.tasks[0].at.After(now) {
			ready = append(ready, heap.Pop(&s.tasks).(*Task))
		}
		if len(s.tasks) > 0 {
			wait = s.tasks[0].at.Sub(now)
		}
		s.mu.Unlock()

		for _, t := range ready {
			t.fn()
		}
		if len(ready) > 0 {
			continue
		}

		timer.Reset(wait)
		select {
		case <-timer.C:
		case <-s.wake:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-stop:
			return
		}
	}
}
