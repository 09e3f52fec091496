package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/yok-tottii/local-dictation/internal/logger"
)

// fakeSource hands the callback to the test so chunks can be pushed by hand.
type fakeSource struct {
	mu       sync.Mutex
	callback func([]float32)
	opens    int
	openErr  error
	startErr error
	stopErr  error
}

type fakeStream struct {
	src *fakeSource
}

func (s *fakeStream) Start() error { return s.src.startErr }
func (s *fakeStream) Stop() error  { return s.src.stopErr }
func (s *fakeStream) Close() error { return nil }

func (f *fakeSource) Open(sel Selection, framesPerBuffer int, latency LatencyMode, cb func([]float32)) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.opens++
	f.callback = cb
	return &fakeStream{src: f}, nil
}

func (f *fakeSource) push(p []float32) {
	f.mu.Lock()
	cb := f.callback
	f.mu.Unlock()
	cb(p)
}

func newTestRecorder(t *testing.T, rate int, maxDur time.Duration) (*Recorder, *fakeSource) {
	t.Helper()
	src := &fakeSource{}
	cfg := DefaultConfig()
	cfg.MaxDuration = maxDur
	cfg.TargetRate = rate
	r, err := NewRecorder(src, Selection{SampleRate: rate, DeviceID: DefaultDevice}, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	return r, src
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.TargetRate != 16000 {
		t.Errorf("Expected target rate 16000, got %d", config.TargetRate)
	}
	if config.MaxDuration != 90*time.Second {
		t.Errorf("Expected max duration 90s, got %v", config.MaxDuration)
	}
	if config.HighpassHz != 0 {
		t.Errorf("Expected high-pass disabled, got %v", config.HighpassHz)
	}
}

func TestRecorder_Lifecycle(t *testing.T) {
	r, src := newTestRecorder(t, 16000, time.Second)
	ctx := context.Background()

	if r.IsRecording() {
		t.Error("Should not be recording initially")
	}
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !r.IsRecording() {
		t.Error("Should be recording after Start")
	}

	src.push(seq(0, 100))
	src.push(seq(100, 50))

	samples, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if len(samples) != 150 {
		t.Fatalf("Expected 150 samples, got %d", len(samples))
	}
	for i, v := range samples {
		if v != float32(i) {
			t.Fatalf("Expected sample %d to be %d, got %v", i, i, v)
		}
	}
	if r.IsRecording() {
		t.Error("Should not be recording after Stop")
	}
}

func TestRecorder_IdempotentStart(t *testing.T) {
	r, src := newTestRecorder(t, 16000, time.Second)
	ctx := context.Background()

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	src.push(seq(0, 40))

	if err := r.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}
	src.push(seq(40, 40))

	if src.opens != 1 {
		t.Errorf("Expected stream opened once, got %d", src.opens)
	}

	samples, _ := r.Stop()
	if len(samples) != 80 {
		t.Errorf("Expected 80 samples kept across second Start, got %d", len(samples))
	}
}

func TestRecorder_SilentSession(t *testing.T) {
	r, _ := newTestRecorder(t, 16000, time.Second)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	samples, err := r.Stop()
	if err != nil {
		t.Errorf("Expected no error for a silent session, got %v", err)
	}
	if samples != nil {
		t.Errorf("Expected nil samples, got %d", len(samples))
	}

	// Stop without Start is also a no-op.
	if samples, err := r.Stop(); samples != nil || err != nil {
		t.Errorf("Expected nil, nil from inactive Stop, got %v, %v", samples, err)
	}
}

func TestRecorder_StartResetsBuffer(t *testing.T) {
	r, src := newTestRecorder(t, 16000, time.Second)
	ctx := context.Background()

	r.Start(ctx)
	src.push(seq(0, 30))
	r.Stop()

	r.Start(ctx)
	src.push(seq(500, 10))
	samples, _ := r.Stop()

	if len(samples) != 10 || samples[0] != 500 {
		t.Errorf("Expected a fresh 10-sample buffer, got %v", samples)
	}
}

func TestRecorder_WrapsAtMaxDuration(t *testing.T) {
	// 10ms at 1 kHz = 10 samples
	r, src := newTestRecorder(t, 1000, 10*time.Millisecond)

	r.Start(context.Background())
	for i := 0; i < 25; i++ {
		src.push([]float32{float32(i)})
	}
	samples, _ := r.Stop()

	if len(samples) != 10 {
		t.Fatalf("Expected 10 samples, got %d", len(samples))
	}
	if samples[0] != 15 || samples[9] != 24 {
		t.Errorf("Expected samples 15..24, got %v", samples)
	}
}

func TestRecorder_Resamples(t *testing.T) {
	src := &fakeSource{}
	cfg := DefaultConfig()
	cfg.MaxDuration = 5 * time.Second
	r, err := NewRecorder(src, Selection{SampleRate: 48000, DeviceID: DefaultDevice}, cfg, logger.Nop())
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	r.Start(context.Background())
	for i := 0; i < 48; i++ { // one second at 48 kHz
		src.push(make([]float32, 1000))
	}
	samples, err := r.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if d := len(samples) - 16000; d < -1 || d > 1 {
		t.Errorf("Expected 16000±1 samples, got %d", len(samples))
	}
}

func TestRecorder_InvalidHighpass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighpassHz = 9000
	_, err := NewRecorder(&fakeSource{}, Selection{SampleRate: 16000}, cfg, logger.Nop())
	if !errors.Is(err, ErrCutoff) {
		t.Errorf("Expected ErrCutoff, got %v", err)
	}
}

func TestRecorder_CaptureErrors(t *testing.T) {
	t.Run("open", func(t *testing.T) {
		r, src := newTestRecorder(t, 16000, time.Second)
		src.openErr = errors.New("device busy")

		if err := r.Start(context.Background()); err == nil {
			t.Error("Expected Start to fail")
		}
		if r.IsRecording() {
			t.Error("Session should stay inactive after a failed Start")
		}
	})

	t.Run("stop", func(t *testing.T) {
		r, src := newTestRecorder(t, 16000, time.Second)
		r.Start(context.Background())
		src.push(seq(0, 10))
		src.stopErr = errors.New("stream lost")

		samples, err := r.Stop()
		if err == nil {
			t.Error("Expected Stop to report the stream error")
		}
		if samples != nil {
			t.Error("Expected no buffer on capture error")
		}
	})
}

func TestRecorder_TapAndMetrics(t *testing.T) {
	r, src := newTestRecorder(t, 16000, time.Second)

	var tapped int
	r.SetTap(func(p []float32) { tapped += len(p) })

	r.Start(context.Background())
	src.push(seq(0, 160))
	src.push(seq(0, 160))

	m := r.Metrics()
	if m.Callbacks != 2 {
		t.Errorf("Expected 2 callbacks, got %d", m.Callbacks)
	}
	if m.SamplesAvailable != 320 {
		t.Errorf("Expected 320 samples available, got %d", m.SamplesAvailable)
	}
	if !m.Active {
		t.Error("Expected Active metric")
	}
	if tapped != 320 {
		t.Errorf("Expected tap to see 320 samples, got %d", tapped)
	}
	r.Stop()
}
