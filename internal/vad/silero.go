//go:build cgo

package vad

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// sileroStateSize is the flattened [2, 1, 64] recurrent state.
const sileroStateSize = 2 * 1 * 64

var ortInit sync.Mutex

// Silero runs the Silero VAD ONNX model. Tensors are allocated once so a
// frame costs one inference and two copies.
type Silero struct {
	mu         sync.Mutex
	session    *ort.DynamicAdvancedSession
	input      *ort.Tensor[float32]
	sr         *ort.Tensor[int64]
	output     *ort.Tensor[float32]
	state      *ort.Tensor[float32]
	stateN     *ort.Tensor[float32]
	sampleRate int
	frameSize  int
}

// NewSilero loads the model at cfg.ModelPath. Only 8 and 16 kHz are
// accepted by the model; the default frame is 30 ms.
func NewSilero(cfg Config) (*Silero, error) {
	if err := checkSileroConfig(cfg); err != nil {
		return nil, err
	}
	size := cfg.FrameSamples()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("%w: no Silero model path", ErrUnavailable)
	}
	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if err := initRuntime(cfg.SharedLibraryPath); err != nil {
		return nil, err
	}

	s := &Silero{sampleRate: cfg.SampleRate, frameSize: size}
	if err := s.allocate(); err != nil {
		s.Close()
		return nil, err
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{"input", "state", "sr"},
		[]string{"output", "stateN"},
		nil,
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("%w: failed to create session: %v", ErrUnavailable, err)
	}
	s.session = session
	return s, nil
}

func initRuntime(libPath string) error {
	ortInit.Lock()
	defer ortInit.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: failed to initialize ONNX runtime: %v", ErrUnavailable, err)
	}
	return nil
}

func (s *Silero) allocate() error {
	var err error
	if s.input, err = ort.NewTensor(ort.NewShape(1, int64(s.frameSize)), make([]float32, s.frameSize)); err != nil {
		return fmt.Errorf("failed to create input tensor: %w", err)
	}
	if s.sr, err = ort.NewTensor(ort.NewShape(1), []int64{int64(s.sampleRate)}); err != nil {
		return fmt.Errorf("failed to create rate tensor: %w", err)
	}
	if s.output, err = ort.NewTensor(ort.NewShape(1, 1), make([]float32, 1)); err != nil {
		return fmt.Errorf("failed to create output tensor: %w", err)
	}
	if s.state, err = ort.NewTensor(ort.NewShape(2, 1, 64), make([]float32, sileroStateSize)); err != nil {
		return fmt.Errorf("failed to create state tensor: %w", err)
	}
	if s.stateN, err = ort.NewTensor(ort.NewShape(2, 1, 64), make([]float32, sileroStateSize)); err != nil {
		return fmt.Errorf("failed to create state tensor: %w", err)
	}
	return nil
}

// SpeechProb runs one inference step and carries the recurrent state over.
func (s *Silero) SpeechProb(frame []float32) (float32, error) {
	if err := checkFrame(frame, s.frameSize); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.input.GetData(), frame)
	inputs := []ort.Value{s.input, s.state, s.sr}
	outputs := []ort.Value{s.output, s.stateN}
	if err := s.session.Run(inputs, outputs); err != nil {
		return 0, fmt.Errorf("silero inference failed: %w", err)
	}
	copy(s.state.GetData(), s.stateN.GetData())

	p := s.output.GetData()[0]
	return min(max(p, 0), 1), nil
}

func (s *Silero) FrameSize() int  { return s.frameSize }
func (s *Silero) SampleRate() int { return s.sampleRate }

// Reset clears the recurrent state.
func (s *Silero) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != nil {
		clear(s.state.GetData())
	}
}

// Close releases the session and tensors. The ONNX environment stays up.
func (s *Silero) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.session != nil {
		keep(s.session.Destroy())
	}
	for _, t := range []*ort.Tensor[float32]{s.input, s.output, s.state, s.stateN} {
		if t != nil {
			keep(t.Destroy())
		}
	}
	if s.sr != nil {
		keep(s.sr.Destroy())
	}
	s.session = nil
	s.input, s.sr, s.output, s.state, s.stateN = nil, nil, nil, nil, nil
	return firstErr
}
