// Package clock abstracts monotonic time so that debounce and hangover
// logic can be driven deterministically in tests.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time. Implementations must return values that
// carry a monotonic reading (time.Now does) or are strictly synthetic.
type Clock interface {
	Now() time.Time
}

// Real is the process clock.
type Real struct{}

// Now returns time.Now().
func (Real) Now() time.Time { return time.Now() }

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock starting at an arbitrary fixed instant.
func NewFake() *Fake {
	return &Fake{now: time.Unix(1_000_000, 0)}
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance moves the clock forward by d.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}
