//go:build !cgo

package vad

import "fmt"

// Without cgo neither the ONNX runtime nor the WebRTC detector can be
// linked; New falls back to Energy. Configuration is still validated first.

type Silero struct{ Energy }

func NewSilero(cfg Config) (*Silero, error) {
	if err := checkSileroConfig(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: built without cgo", ErrUnavailable)
}

type WebRTC struct{ Energy }

func NewWebRTC(cfg Config) (*WebRTC, error) {
	if err := checkWebRTCConfig(cfg); err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: built without cgo", ErrUnavailable)
}
