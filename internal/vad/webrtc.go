//go:build cgo

package vad

import (
	"fmt"
	"sync"

	webrtcvad "github.com/maxhawkins/go-webrtcvad"
)

// WebRTC wraps the WebRTC GMM voice activity detector. Its decisions are
// binary, so SpeechProb returns exactly 0 or 1.
type WebRTC struct {
	mu         sync.Mutex
	vad        *webrtcvad.VAD
	sampleRate int
	frameSize  int
	pcm        []byte
}

// NewWebRTC creates a WebRTC classifier. Rates 8/16/32/48 kHz and frames of
// 10, 20 or 30 ms are supported; aggressiveness is clamped to 0-3.
func NewWebRTC(cfg Config) (*WebRTC, error) {
	if err := checkWebRTCConfig(cfg); err != nil {
		return nil, err
	}

	v, err := webrtcvad.New()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create WebRTC VAD: %v", ErrUnavailable, err)
	}

	mode := min(max(cfg.Aggressiveness, 0), 3)
	if err := v.SetMode(mode); err != nil {
		return nil, fmt.Errorf("failed to set VAD mode: %w", err)
	}

	size := cfg.FrameSamples()
	return &WebRTC{
		vad:        v,
		sampleRate: cfg.SampleRate,
		frameSize:  size,
		pcm:        make([]byte, size*2),
	}, nil
}

// SpeechProb classifies one frame.
func (w *WebRTC) SpeechProb(frame []float32) (float32, error) {
	if err := checkFrame(frame, w.frameSize); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// little-endian int16
	for i, s := range frame {
		s = min(max(s, -1), 1)
		v := int16(s * 32767)
		w.pcm[i*2] = byte(v)
		w.pcm[i*2+1] = byte(v >> 8)
	}

	active, err := w.vad.Process(w.sampleRate, w.pcm)
	if err != nil {
		return 0, fmt.Errorf("VAD processing failed: %w", err)
	}
	if active {
		return 1, nil
	}
	return 0, nil
}

func (w *WebRTC) FrameSize() int  { return w.frameSize }
func (w *WebRTC) SampleRate() int { return w.sampleRate }
func (w *WebRTC) Reset()          {}
func (w *WebRTC) Close() error    { return nil }
