//go:build darwin || linux || windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var triggerKeys = map[Key]hotkey.Key{
	KeySpace: hotkey.KeySpace, KeyTab: hotkey.KeyTab, KeyEnter: hotkey.KeyReturn,
	KeyEscape: hotkey.KeyEscape, KeyDelete: hotkey.KeyDelete,
	KeyUp: hotkey.KeyUp, KeyDown: hotkey.KeyDown, KeyLeft: hotkey.KeyLeft, KeyRight: hotkey.KeyRight,
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD, "E": hotkey.KeyE,
	"F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH, "I": hotkey.KeyI, "J": hotkey.KeyJ,
	"K": hotkey.KeyK, "L": hotkey.KeyL, "M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO,
	"P": hotkey.KeyP, "Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX, "Y": hotkey.KeyY,
	"Z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,
}

// GlobalSource registers the chord as a system-wide hotkey.
//
// The OS only reports the chord as a whole, so every chord key is pressed
// on Keydown and released on Keyup. The chord must contain exactly one
// non-modifier key. On macOS the process must run mainthread.Init.
type GlobalSource struct {
	mu      sync.Mutex
	hk      *hotkey.Hotkey
	stop    chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewGlobalSource returns an unregistered global hotkey source
func NewGlobalSource() *GlobalSource {
	return &GlobalSource{}
}

func toSystem(chord Chord) ([]hotkey.Modifier, hotkey.Key, error) {
	triggers := chord.Triggers()
	if len(triggers) != 1 {
		return nil, 0, fmt.Errorf("%w: %s needs exactly one non-modifier key for a global hotkey", ErrInvalidChord, chord)
	}
	key, ok := triggerKeys[triggers[0]]
	if !ok {
		return nil, 0, fmt.Errorf("%w: key %s cannot be registered globally", ErrInvalidChord, triggers[0])
	}
	var mods []hotkey.Modifier
	for _, m := range chord.Modifiers() {
		mods = append(mods, systemModifiers[m])
	}
	return mods, key, nil
}

// Start registers the hotkey and forwards its transitions to sink
func (s *GlobalSource) Start(chord Chord, sink KeySink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("hotkey is already running, call Stop() first")
	}

	mods, key, err := toSystem(chord)
	if err != nil {
		return err
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", chord, err)
	}

	s.hk = hk
	s.stop = make(chan struct{})
	s.running = true

	keys := chord.Keys()
	s.wg.Add(1)
	go s.listen(hk, keys, sink, s.stop)
	return nil
}

func (s *GlobalSource) listen(hk *hotkey.Hotkey, keys []Key, sink KeySink, stop <-chan struct{}) {
	defer s.wg.Done()

	for {
		select {
		case <-hk.Keydown():
			for _, k := range keys {
				sink.Press(k)
			}
		case <-hk.Keyup():
			for _, k := range keys {
				sink.Release(k)
			}
		case <-stop:
			return
		}
	}
}

// Stop unregisters the hotkey
func (s *GlobalSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	close(s.stop)
	s.wg.Wait()

	// running is cleared even if Unregister fails so Start can be retried
	s.running = false
	if err := s.hk.Unregister(); err != nil {
		return fmt.Errorf("failed to unregister hotkey: %w", err)
	}
	return nil
}
