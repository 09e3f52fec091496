package vad

import (
	"fmt"
	"math"
)

// Energy level bounds of the probability ramp, in dBFS.
const (
	energyFloorDB = -50.0
	energyCeilDB  = -20.0
)

// Energy maps frame RMS level onto a linear probability ramp between
// energyFloorDB (0) and energyCeilDB (1).
type Energy struct {
	sampleRate int
	frameSize  int
}

// NewEnergy creates an energy classifier. Any positive frame duration works.
func NewEnergy(cfg Config) (*Energy, error) {
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrSampleRate, cfg.SampleRate)
	}
	size := cfg.FrameSamples()
	if cfg.FrameMs <= 0 || size <= 0 {
		return nil, fmt.Errorf("%w: %d ms", ErrFrameSize, cfg.FrameMs)
	}
	return &Energy{sampleRate: cfg.SampleRate, frameSize: size}, nil
}

// SpeechProb returns the ramp value for the frame's RMS level.
func (e *Energy) SpeechProb(frame []float32) (float32, error) {
	if err := checkFrame(frame, e.frameSize); err != nil {
		return 0, err
	}
	level := rms(frame)
	if level <= 0 {
		return 0, nil
	}
	db := 20 * math.Log10(level)
	p := (db - energyFloorDB) / (energyCeilDB - energyFloorDB)
	return float32(math.Min(1, math.Max(0, p))), nil
}

func (e *Energy) FrameSize() int  { return e.frameSize }
func (e *Energy) SampleRate() int { return e.sampleRate }
func (e *Energy) Reset()          {}
func (e *Energy) Close() error    { return nil }

func rms(frame []float32) float64 {
	if len(frame) == 0 {
		return 0
	}
	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(frame)))
}
