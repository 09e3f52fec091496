package hotkey

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yok-tottii/local-dictation/internal/clock"
	"github.com/yok-tottii/local-dictation/internal/logger"
)

// KeySink receives raw key transitions.
type KeySink interface {
	Press(k Key)
	Release(k Key)
}

// KeySource delivers key transitions for a chord to a sink.
type KeySource interface {
	Start(chord Chord, sink KeySink) error
	Stop() error
}

// Options holds listener timing configuration
type Options struct {
	// Debounce delays the inactive edge so a bouncing release is absorbed
	Debounce time.Duration
	// TickInterval is how often pending deadlines are checked
	TickInterval time.Duration
	// Taps enables short-tap / long-press / double-tap classification
	Taps bool
	// LongPress is the press duration above which a press is push-to-talk
	LongPress time.Duration
	// DoubleTap is the maximum gap between two tap releases
	DoubleTap time.Duration
	// Clock defaults to the real clock
	Clock clock.Clock
}

// DefaultOptions returns the default listener options
func DefaultOptions() Options {
	return Options{
		Debounce:     50 * time.Millisecond,
		TickInterval: 4 * time.Millisecond,
		Taps:         false,
		LongPress:    150 * time.Millisecond,
		DoubleTap:    500 * time.Millisecond,
	}
}

// Callbacks are invoked on the goroutine that caused the transition: the
// key source for a press, the ticker for a debounced release. Callbacks are
// serialized and must not call Press or Release.
type Callbacks struct {
	OnChordActive func(active bool)
	// OnChordCancel replaces OnChordActive(false) when a press started
	// push-to-talk but turned out to be a tap. Only sent with Taps enabled.
	OnChordCancel func()
	OnToggle      func(armed bool)
}

type eventKind int

const (
	eventActive eventKind = iota
	eventCancel
	eventToggle
)

type event struct {
	kind  eventKind
	value bool
}

// Listener turns key transitions into chord edges.
//
// Without tap classification, OnChordActive(true) fires as soon as the
// chord is held and OnChordActive(false) fires Debounce after it breaks.
// With Taps enabled, OnChordActive(true) still fires on key-down so no
// audio is lost. A press that ends up no longer than LongPress is a tap: it
// closes with OnChordCancel instead of OnChordActive(false), and two taps
// within DoubleTap toggle the hands-free state.
type Listener struct {
	chord Chord
	opts  Options
	cb    Callbacks
	src   KeySource
	log   logger.Interface

	mu     sync.Mutex
	emitMu sync.Mutex

	pressed    map[Key]bool
	active     bool
	pressStart time.Time
	releaseAt  time.Time
	deadline   time.Time // zero when unarmed
	longPress  bool      // current press classified as push-to-talk
	pttEmitted bool      // OnChordActive(true) sent for the current press
	lastTap    time.Time
	tapCount   int
	armed      atomic.Bool

	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewListener creates a listener for chord. src may be nil when key
// transitions are fed through Press and Release directly.
func NewListener(chord Chord, opts Options, cb Callbacks, src KeySource, log logger.Interface) (*Listener, error) {
	if len(chord.keys) == 0 {
		return nil, fmt.Errorf("%w: empty chord", ErrInvalidChord)
	}
	def := DefaultOptions()
	if opts.Debounce < 0 {
		return nil, fmt.Errorf("invalid debounce: %v", opts.Debounce)
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = def.TickInterval
	}
	if opts.LongPress <= 0 {
		opts.LongPress = def.LongPress
	}
	if opts.DoubleTap <= 0 {
		opts.DoubleTap = def.DoubleTap
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}

	return &Listener{
		chord:   chord,
		opts:    opts,
		cb:      cb,
		src:     src,
		log:     logger.Named(log, "hotkey"),
		pressed: make(map[Key]bool),
	}, nil
}

// Chord returns the chord being tracked
func (l *Listener) Chord() Chord { return l.chord }

// Armed reports whether hands-free mode is armed
func (l *Listener) Armed() bool { return l.armed.Load() }

// SetArmed forces the hands-free state without emitting OnToggle.
func (l *Listener) SetArmed(armed bool) {
	l.mu.Lock()
	l.armed.Store(armed)
	l.tapCount = 0
	l.mu.Unlock()
}

// Start starts the ticker and the key source
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = true
	l.stop = make(chan struct{})
	l.mu.Unlock()

	if l.src != nil {
		if err := l.src.Start(l.chord, l); err != nil {
			l.mu.Lock()
			l.running = false
			l.mu.Unlock()
			return fmt.Errorf("failed to start key source: %w", err)
		}
	}

	l.wg.Add(1)
	go l.run(ctx, l.stop)

	l.log.Info("listening for %s (taps: %v)", l.chord, l.opts.Taps)
	return nil
}

// Stop stops the ticker and the key source
func (l *Listener) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	close(l.stop)
	l.mu.Unlock()

	l.wg.Wait()

	if l.src != nil {
		if err := l.src.Stop(); err != nil {
			return fmt.Errorf("failed to stop key source: %w", err)
		}
	}
	return nil
}

func (l *Listener) run(ctx context.Context, stop <-chan struct{}) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.tick()
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) tick() {
	l.mu.Lock()
	evs := l.advance(l.opts.Clock.Now(), nil)
	l.dispatch(evs)
}

// Press records a key-down.
func (l *Listener) Press(k Key) {
	l.mu.Lock()
	now := l.opts.Clock.Now()
	evs := l.advance(now, nil)

	l.pressed[k] = true
	if l.chord.SatisfiedBy(l.pressed) {
		switch {
		case !l.active:
			l.active = true
			l.pressStart = now
			l.deadline = time.Time{}
			l.longPress = !l.opts.Taps
			l.pttEmitted = false
			evs = l.emitPTT(evs, true)
		case !l.deadline.IsZero():
			// re-pressed inside the debounce window
			l.deadline = time.Time{}
		}
	}
	l.dispatch(evs)
}

// Release records a key-up.
func (l *Listener) Release(k Key) {
	l.mu.Lock()
	now := l.opts.Clock.Now()
	evs := l.advance(now, nil)

	delete(l.pressed, k)
	if l.active && l.deadline.IsZero() && !l.chord.SatisfiedBy(l.pressed) {
		l.releaseAt = now
		l.deadline = now.Add(l.opts.Debounce)
	}
	l.dispatch(evs)
}

// advance applies every deadline that has passed by now. Caller holds mu.
func (l *Listener) advance(now time.Time, evs []event) []event {
	if l.active {
		switch {
		case l.deadline.IsZero():
			if !l.longPress && now.Sub(l.pressStart) > l.opts.LongPress {
				l.longPress = true
				l.tapCount = 0
			}
		case !now.Before(l.deadline):
			l.active = false
			l.deadline = time.Time{}
			evs = l.finishPress(evs)
		}
	}

	if !l.active && l.tapCount > 0 && now.Sub(l.lastTap) > l.opts.DoubleTap {
		// lone tap
		l.tapCount = 0
	}
	return evs
}

// finishPress classifies a press whose debounced release just completed.
func (l *Listener) finishPress(evs []event) []event {
	held := l.releaseAt.Sub(l.pressStart)

	if l.longPress || held > l.opts.LongPress {
		return l.emitPTT(evs, false)
	}

	evs = l.cancelPTT(evs)

	if l.tapCount == 1 && l.releaseAt.Sub(l.lastTap) <= l.opts.DoubleTap {
		l.tapCount = 0
		armed := !l.armed.Load()
		l.armed.Store(armed)
		return append(evs, event{kind: eventToggle, value: armed})
	}
	l.tapCount = 1
	l.lastTap = l.releaseAt
	return evs
}

// emitPTT queues a push-to-talk edge. Edges are suppressed while hands-free
// is armed, and a false edge is only sent after a true one.
func (l *Listener) emitPTT(evs []event, active bool) []event {
	if active {
		if l.opts.Taps && l.armed.Load() {
			return evs
		}
		l.pttEmitted = true
		return append(evs, event{kind: eventActive, value: true})
	}
	if !l.pttEmitted {
		return evs
	}
	l.pttEmitted = false
	return append(evs, event{kind: eventActive, value: false})
}

// cancelPTT closes a push-to-talk edge that belonged to a tap.
func (l *Listener) cancelPTT(evs []event) []event {
	if !l.pttEmitted {
		return evs
	}
	l.pttEmitted = false
	return append(evs, event{kind: eventCancel})
}

// dispatch releases mu and delivers evs in order.
func (l *Listener) dispatch(evs []event) {
	if len(evs) == 0 {
		l.mu.Unlock()
		return
	}
	l.emitMu.Lock()
	l.mu.Unlock()
	defer l.emitMu.Unlock()

	for _, ev := range evs {
		switch ev.kind {
		case eventActive:
			if l.cb.OnChordActive != nil {
				l.cb.OnChordActive(ev.value)
			}
		case eventCancel:
			if l.cb.OnChordCancel != nil {
				l.cb.OnChordCancel()
			}
		case eventToggle:
			if l.cb.OnToggle != nil {
				l.cb.OnToggle(ev.value)
			}
		}
	}
}
