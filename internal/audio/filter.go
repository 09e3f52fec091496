package audio

import (
	"errors"
	"fmt"
	"math"
)

// ErrCutoff is returned for a high-pass cutoff outside (0, rate/2).
var ErrCutoff = errors.New("invalid high-pass cutoff")

// Highpass is a first-order Butterworth high-pass filter designed with the
// bilinear transform.
type Highpass struct {
	b0, a1 float64
}

// NewHighpass designs a filter for the given cutoff and sample rate.
func NewHighpass(cutoffHz float64, sampleRate int) (*Highpass, error) {
	nyquist := float64(sampleRate) / 2
	if cutoffHz <= 0 || cutoffHz >= nyquist || math.IsNaN(cutoffHz) {
		return nil, fmt.Errorf("%w: %.1f Hz at %d Hz", ErrCutoff, cutoffHz, sampleRate)
	}
	k := math.Tan(math.Pi * cutoffHz / float64(sampleRate))
	return &Highpass{
		b0: 1 / (1 + k),
		a1: (k - 1) / (k + 1),
	}, nil
}

// Apply filters x in place starting from a zero state.
func (h *Highpass) Apply(x []float32) {
	var prevIn, prevOut float64
	for i, s := range x {
		in := float64(s)
		out := h.b0*(in-prevIn) - h.a1*prevOut
		prevIn, prevOut = in, out
		x[i] = float32(out)
	}
}
