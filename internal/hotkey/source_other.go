//go:build !darwin && !linux && !windows

package hotkey

import (
	"errors"
	"runtime"
)

// GlobalSource is unavailable on this platform.
type GlobalSource struct{}

// NewGlobalSource returns a source whose Start always fails
func NewGlobalSource() *GlobalSource { return &GlobalSource{} }

// Start always fails
func (s *GlobalSource) Start(Chord, KeySink) error {
	return errors.New("global hotkeys are not supported on " + runtime.GOOS)
}

// Stop is a no-op
func (s *GlobalSource) Stop() error { return nil }
