package vad

import (
	"errors"
	"math"
	"os"
	"testing"

	"github.com/yok-tottii/local-dictation/internal/logger"
)

func energyConfig() Config {
	cfg := DefaultConfig()
	cfg.Engine = EngineEnergy
	return cfg
}

func tone(n int, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*220*float64(i)/16000))
	}
	return out
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.FrameSamples() != 480 {
		t.Errorf("Expected 480-sample frames, got %d", cfg.FrameSamples())
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Expected threshold 0.5, got %v", cfg.Threshold)
	}
}

func TestEnergy_SpeechProb(t *testing.T) {
	e, err := NewEnergy(energyConfig())
	if err != nil {
		t.Fatalf("NewEnergy failed: %v", err)
	}

	tests := []struct {
		name   string
		frame  []float32
		lo, hi float32
	}{
		{"silence", make([]float32, 480), 0, 0},
		{"loud tone", tone(480, 0.5), 1, 1},
		{"quiet tone", tone(480, 0.002), 0, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := e.SpeechProb(tt.frame)
			if err != nil {
				t.Fatalf("SpeechProb failed: %v", err)
			}
			if p < tt.lo || p > tt.hi {
				t.Errorf("Expected prob in [%v, %v], got %v", tt.lo, tt.hi, p)
			}
		})
	}
}

func TestClassifier_FrameSizeMismatch(t *testing.T) {
	e, _ := NewEnergy(energyConfig())

	_, err := e.SpeechProb(make([]float32, 320))
	if !errors.Is(err, ErrFrameSize) {
		t.Errorf("Expected ErrFrameSize, got %v", err)
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   error
	}{
		{"energy zero frame", func(c *Config) { c.Engine = EngineEnergy; c.FrameMs = 0 }, ErrFrameSize},
		{"silero bad rate", func(c *Config) { c.SampleRate = 44100 }, ErrSampleRate},
		{"silero zero frame", func(c *Config) { c.FrameMs = 0 }, ErrFrameSize},
		{"webrtc bad rate", func(c *Config) { c.Engine = EngineWebRTC; c.SampleRate = 44100 }, ErrSampleRate},
		{"webrtc bad frame", func(c *Config) { c.Engine = EngineWebRTC; c.FrameMs = 25 }, ErrFrameSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if _, err := New(cfg, logger.Nop()); !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}

	cfg := DefaultConfig()
	cfg.Engine = "neural-net-9000"
	if _, err := New(cfg, logger.Nop()); err == nil {
		t.Error("Expected error for unknown engine")
	}
}

func TestNew_SileroFallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ModelPath = "/nonexistent/silero_vad.onnx"

	c, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("Expected fallback classifier, got error: %v", err)
	}
	defer c.Close()

	if c.FrameSize() != 480 {
		t.Errorf("Expected fallback to keep 480-sample frames, got %d", c.FrameSize())
	}
}

func TestFilterSpeechSegments_Silence(t *testing.T) {
	cfg := energyConfig()
	e, _ := NewEnergy(cfg)

	out, err := FilterSpeechSegments(e, make([]float32, 16000), cfg)
	if err != nil {
		t.Fatalf("Expected no error for silence, got %v", err)
	}
	if out == nil || len(out) != 0 {
		t.Errorf("Expected empty non-nil result, got %v", out)
	}
}

func TestFilterSpeechSegments_KeepsSpeech(t *testing.T) {
	cfg := energyConfig()
	e, _ := NewEnergy(cfg)

	// 0.5 s silence, ~0.5 s tone, 0.5 s silence
	audio := make([]float32, 0, 3*8160)
	audio = append(audio, make([]float32, 8160)...)
	audio = append(audio, tone(8160, 0.5)...)
	audio = append(audio, make([]float32, 8160)...)

	out, err := FilterSpeechSegments(e, audio, cfg)
	if err != nil {
		t.Fatalf("FilterSpeechSegments failed: %v", err)
	}
	if len(out) != 8160 {
		t.Errorf("Expected 8160 speech samples, got %d", len(out))
	}
}

func TestFilterSpeechSegments_DropsShortBursts(t *testing.T) {
	cfg := energyConfig()
	e, _ := NewEnergy(cfg)

	// 60 ms burst is below the 250 ms minimum.
	audio := append(make([]float32, 4800), tone(960, 0.5)...)
	audio = append(audio, make([]float32, 4800)...)

	out, err := FilterSpeechSegments(e, audio, cfg)
	if err != nil {
		t.Fatalf("FilterSpeechSegments failed: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("Expected short burst to be dropped, got %d samples", len(out))
	}
}

func TestSmoother_MajorityVote(t *testing.T) {
	s := NewSmoother(5)

	inputs := []bool{true, false, true, true, false, false, false}
	want := []bool{true, false, true, true, true, false, false}

	for i, in := range inputs {
		if got := s.Push(in); got != want[i] {
			t.Errorf("Step %d: expected %v, got %v", i, want[i], got)
		}
	}

	s.Reset()
	if s.Push(false) {
		t.Error("Expected false after Reset")
	}
}

func TestWebRTC_SilenceIsNotSpeech(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Engine = EngineWebRTC
	cfg.FrameMs = 20

	w, err := NewWebRTC(cfg)
	if err != nil {
		t.Skipf("WebRTC VAD not available: %v", err)
	}
	defer w.Close()

	p, err := w.SpeechProb(make([]float32, 320))
	if err != nil {
		t.Fatalf("SpeechProb failed: %v", err)
	}
	if p != 0 {
		t.Errorf("Expected 0 for silence, got %v", p)
	}
}

func TestWebRTC_InvalidFrame(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FrameMs = 25

	if _, err := NewWebRTC(cfg); !errors.Is(err, ErrFrameSize) {
		t.Errorf("Expected ErrFrameSize, got %v", err)
	}
}

// Rate and frame errors come before backend loading, so they are the same
// with and without cgo.
func TestBackendConfigChecks(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		silero error
		webrtc error
	}{
		{"44.1 kHz", func(c *Config) { c.SampleRate = 44100 }, ErrSampleRate, ErrSampleRate},
		{"48 kHz", func(c *Config) { c.SampleRate = 48000 }, ErrSampleRate, nil},
		{"zero frame", func(c *Config) { c.FrameMs = 0 }, ErrFrameSize, ErrFrameSize},
		{"25 ms frame", func(c *Config) { c.FrameMs = 25 }, nil, ErrFrameSize},
		{"defaults", func(c *Config) {}, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if err := checkSileroConfig(cfg); !errors.Is(err, tt.silero) {
				t.Errorf("Silero: expected %v, got %v", tt.silero, err)
			}
			if err := checkWebRTCConfig(cfg); !errors.Is(err, tt.webrtc) {
				t.Errorf("WebRTC: expected %v, got %v", tt.webrtc, err)
			}
		})
	}
}

func TestSilero_Model(t *testing.T) {
	path := os.Getenv("SILERO_VAD_MODEL")
	if path == "" {
		t.Skip("SILERO_VAD_MODEL not set")
	}

	cfg := DefaultConfig()
	cfg.ModelPath = path
	cfg.SharedLibraryPath = os.Getenv("ONNXRUNTIME_LIB")

	s, err := NewSilero(cfg)
	if err != nil {
		t.Skipf("Silero not available: %v", err)
	}
	defer s.Close()

	p, err := s.SpeechProb(make([]float32, 480))
	if err != nil {
		t.Fatalf("SpeechProb failed: %v", err)
	}
	if p > 0.5 {
		t.Errorf("Expected low probability for silence, got %v", p)
	}
}
