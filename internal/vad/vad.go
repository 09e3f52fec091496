// Package vad classifies fixed-size audio frames as speech or non-speech.
//
// Three classifiers are available: Silero (ONNX, neural), WebRTC (GMM,
// binary decisions) and Energy (RMS ramp, no dependencies). All of them
// return a probability in [0,1] for one frame of FrameSize samples and keep
// no smoothing state of their own beyond what the model needs.
package vad

import (
	"errors"
	"fmt"
	"math"

	"github.com/yok-tottii/local-dictation/internal/logger"
)

var (
	// ErrFrameSize is returned when a frame does not match the classifier's
	// native frame length, or when a configured frame duration is unsupported.
	ErrFrameSize = errors.New("vad: invalid frame size")
	// ErrSampleRate is returned for an unsupported sample rate.
	ErrSampleRate = errors.New("vad: unsupported sample rate")
	// ErrUnavailable is returned when a backend cannot be loaded.
	ErrUnavailable = errors.New("vad: backend unavailable")
)

// Engine names.
const (
	EngineSilero = "silero"
	EngineWebRTC = "webrtc"
	EngineEnergy = "energy"
)

// Classifier returns the speech probability of a single frame.
type Classifier interface {
	SpeechProb(frame []float32) (float32, error)
	FrameSize() int
	SampleRate() int
	Reset()
	Close() error
}

// Config holds VAD configuration
type Config struct {
	Engine            string
	ModelPath         string // Silero ONNX model
	SharedLibraryPath string // onnxruntime shared library, empty for the platform default
	SampleRate        int
	FrameMs           int
	Threshold         float32
	MinSpeechMs       int
	MinSilenceMs      int
	Aggressiveness    int // WebRTC mode 0-3
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Engine:         EngineSilero,
		SampleRate:     16000,
		FrameMs:        30,
		Threshold:      0.5,
		MinSpeechMs:    250,
		MinSilenceMs:   100,
		Aggressiveness: 2,
	}
}

// FrameSamples returns the frame length in samples.
func (c Config) FrameSamples() int {
	return c.SampleRate * c.FrameMs / 1000
}

// New creates the configured classifier. A Silero model that cannot be
// loaded degrades to WebRTC, then to Energy; frame and rate errors do not.
func New(cfg Config, log logger.Interface) (Classifier, error) {
	log = logger.Named(log, "vad")

	switch cfg.Engine {
	case EngineSilero, "":
		s, err := NewSilero(cfg)
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		log.Warn("Silero VAD unavailable (%v), falling back to WebRTC", err)
		w, werr := NewWebRTC(cfg)
		if werr == nil {
			return w, nil
		}
		log.Warn("WebRTC VAD unavailable (%v), falling back to energy", werr)
		return newEnergy(cfg)
	case EngineWebRTC:
		w, err := NewWebRTC(cfg)
		if err != nil {
			return nil, err
		}
		return w, nil
	case EngineEnergy:
		return newEnergy(cfg)
	default:
		return nil, fmt.Errorf("vad: unknown engine %q", cfg.Engine)
	}
}

func newEnergy(cfg Config) (Classifier, error) {
	e, err := NewEnergy(cfg)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// checkSileroConfig rejects rates and frame durations the Silero model
// cannot run at, independent of whether the backend can be loaded.
func checkSileroConfig(cfg Config) error {
	if cfg.SampleRate != 8000 && cfg.SampleRate != 16000 {
		return fmt.Errorf("%w: %d Hz, Silero needs 8000 or 16000", ErrSampleRate, cfg.SampleRate)
	}
	if cfg.FrameMs <= 0 || cfg.FrameSamples() <= 0 {
		return fmt.Errorf("%w: %d ms", ErrFrameSize, cfg.FrameMs)
	}
	return nil
}

// checkWebRTCConfig rejects rates and frame durations the WebRTC detector does not
// support.
func checkWebRTCConfig(cfg Config) error {
	switch cfg.SampleRate {
	case 8000, 16000, 32000, 48000:
	default:
		return fmt.Errorf("%w: %d Hz, must be one of 8000, 16000, 32000, 48000", ErrSampleRate, cfg.SampleRate)
	}
	switch cfg.FrameMs {
	case 10, 20, 30:
	default:
		return fmt.Errorf("%w: %d ms, must be 10, 20 or 30", ErrFrameSize, cfg.FrameMs)
	}
	return nil
}

func checkFrame(frame []float32, size int) error {
	if len(frame) != size {
		return fmt.Errorf("%w: got %d samples, want %d", ErrFrameSize, len(frame), size)
	}
	return nil
}

// FilterSpeechSegments removes non-speech from a complete utterance. It
// returns the concatenated speech segments, or an empty slice when no
// segment reaches MinSpeechMs.
func FilterSpeechSegments(c Classifier, audio []float32, cfg Config) ([]float32, error) {
	fs := c.FrameSize()
	frameMs := float64(fs) * 1000 / float64(c.SampleRate())
	minSilenceFrames := max(1, int(math.Ceil(float64(cfg.MinSilenceMs)/frameMs)))
	minSpeechSamples := cfg.MinSpeechMs * c.SampleRate() / 1000

	c.Reset()
	defer c.Reset()

	type span struct{ start, end int }
	var spans []span
	total := 0

	closeSpan := func(start, end int) {
		if end-start >= minSpeechSamples {
			spans = append(spans, span{start, end})
			total += end - start
		}
	}

	inSpeech := false
	start, speechEnd, silence := 0, 0, 0
	for i := 0; i+fs <= len(audio); i += fs {
		p, err := c.SpeechProb(audio[i : i+fs])
		if err != nil {
			return nil, err
		}
		if p >= cfg.Threshold {
			if !inSpeech {
				inSpeech = true
				start = i
			}
			speechEnd = i + fs
			silence = 0
			continue
		}
		if inSpeech {
			silence++
			if silence >= minSilenceFrames {
				closeSpan(start, speechEnd)
				inSpeech = false
			}
		}
	}
	if inSpeech {
		closeSpan(start, speechEnd)
	}

	out := make([]float32, 0, total)
	for _, s := range spans {
		out = append(out, audio[s.start:s.end]...)
	}
	return out, nil
}

// Smoother applies a majority vote over the last N frame decisions.
type Smoother struct {
	window []bool
	pos    int
	filled int
	votes  int
}

// NewSmoother returns a smoother over n frames (n < 1 is treated as 1).
func NewSmoother(n int) *Smoother {
	if n < 1 {
		n = 1
	}
	return &Smoother{window: make([]bool, n)}
}

// Push records a decision and returns the smoothed one.
func (s *Smoother) Push(speech bool) bool {
	if s.filled == len(s.window) {
		if s.window[s.pos] {
			s.votes--
		}
	} else {
		s.filled++
	}
	s.window[s.pos] = speech
	if speech {
		s.votes++
	}
	s.pos = (s.pos + 1) % len(s.window)
	return s.votes*2 > s.filled
}

// Reset clears the vote history.
func (s *Smoother) Reset() {
	clear(s.window)
	s.pos, s.filled, s.votes = 0, 0, 0
}
