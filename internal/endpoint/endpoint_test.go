package endpoint

import (
	"testing"
	"time"

	"github.com/yok-tottii/local-dictation/internal/clock"
	"github.com/yok-tottii/local-dictation/internal/vad"
)

const frame = 20 * time.Millisecond

func autoConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = AutoStopVad
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Hangover != 150*time.Millisecond {
		t.Errorf("Expected hangover 150ms, got %v", cfg.Hangover)
	}
	if cfg.Debounce != 200*time.Millisecond {
		t.Errorf("Expected debounce 200ms, got %v", cfg.Debounce)
	}
	if cfg.ProbThreshold != 0.6 {
		t.Errorf("Expected threshold 0.6, got %v", cfg.ProbThreshold)
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		input    string
		expected Mode
		wantErr  bool
	}{
		{"push-to-talk", PushToTalk, false},
		{"auto-stop-vad", AutoStopVad, false},
		{"vad", AutoStopVad, false},
		{"telepathy", PushToTalk, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if mode != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, mode)
			}
		})
	}
}

func TestPushToTalk_AlwaysContinues(t *testing.T) {
	clk := clock.NewFake()
	m := New(DefaultConfig(), nil, clk)

	for i := 0; i < 100; i++ {
		p := float32(0)
		if i < 50 {
			p = 1
		}
		if d := m.OnProb(p); d != Continue {
			t.Fatalf("Frame %d: expected CONTINUE in push-to-talk, got %v", i, d)
		}
		clk.Advance(frame)
	}

	if d, err := m.OnFrame(make([]float32, 320)); d != Continue || err != nil {
		t.Errorf("Expected CONTINUE without classifier in push-to-talk, got %v, %v", d, err)
	}
}

func TestAutoStop_Hangover(t *testing.T) {
	clk := clock.NewFake()
	m := New(autoConfig(), nil, clk)

	// 1 s of speech
	var speechEnd time.Time
	for i := 0; i < 50; i++ {
		if d := m.OnProb(0.9); d != Continue {
			t.Fatalf("Expected CONTINUE during speech, got %v", d)
		}
		speechEnd = clk.Now()
		clk.Advance(frame)
	}

	var stopAt time.Time
	for i := 0; i < 50; i++ {
		if m.OnProb(0) == ShouldStop {
			stopAt = clk.Now()
			break
		}
		clk.Advance(frame)
	}

	if stopAt.IsZero() {
		t.Fatal("Expected SHOULD_STOP after trailing silence")
	}
	gap := stopAt.Sub(speechEnd)
	if gap < 150*time.Millisecond {
		t.Errorf("SHOULD_STOP fired %v after speech, before the 150ms hangover", gap)
	}
	if gap >= 150*time.Millisecond+frame {
		t.Errorf("SHOULD_STOP fired late: %v after speech", gap)
	}
	if m.IsSpeech() {
		t.Error("Expected isSpeech to be cleared after stop")
	}
}

func TestAutoStop_Debounce(t *testing.T) {
	clk := clock.NewFake()
	m := New(autoConfig(), nil, clk)

	stops := 0
	step := func(p float32) {
		if m.OnProb(p) == ShouldStop {
			stops++
		}
		clk.Advance(10 * time.Millisecond)
	}

	// first stop condition at +150ms
	step(1)
	for i := 0; i < 15; i++ {
		step(0)
	}
	if stops != 1 {
		t.Fatalf("Expected first stop, got %d", stops)
	}

	// brief speech, then a second qualifying silence still within 200ms of
	// the first stop
	m.OnProb(1)
	clk.Advance(150 * time.Millisecond)
	if m.OnProb(0) == ShouldStop {
		stops++
	}

	if stops != 1 {
		t.Errorf("Expected exactly one SHOULD_STOP within the debounce window, got %d", stops)
	}

	// once the window has passed, the pending stop goes through
	clk.Advance(100 * time.Millisecond)
	if m.OnProb(0) != ShouldStop {
		t.Error("Expected SHOULD_STOP once the debounce window elapsed")
	}
}

func TestAutoStop_SilenceOnlyNeverStops(t *testing.T) {
	clk := clock.NewFake()
	m := New(autoConfig(), nil, clk)

	for i := 0; i < 200; i++ {
		if m.OnProb(0) == ShouldStop {
			t.Fatal("SHOULD_STOP without any speech")
		}
		clk.Advance(frame)
	}
}

func TestOnFrame_UsesClassifier(t *testing.T) {
	cfg := vad.DefaultConfig()
	cfg.Engine = vad.EngineEnergy
	cfg.FrameMs = 20
	e, err := vad.NewEnergy(cfg)
	if err != nil {
		t.Fatalf("NewEnergy failed: %v", err)
	}

	clk := clock.NewFake()
	m := New(autoConfig(), e, clk)

	loud := make([]float32, 320)
	for i := range loud {
		loud[i] = 0.5
		if i%2 == 1 {
			loud[i] = -0.5
		}
	}
	if _, err := m.OnFrame(loud); err != nil {
		t.Fatalf("OnFrame failed: %v", err)
	}
	if !m.IsSpeech() {
		t.Error("Expected loud frame to register as speech")
	}

	if _, err := m.OnFrame(make([]float32, 100)); err == nil {
		t.Error("Expected frame size error")
	}
}

func TestReset_KeepsDebounce(t *testing.T) {
	clk := clock.NewFake()
	m := New(autoConfig(), nil, clk)

	m.OnProb(1)
	clk.Advance(150 * time.Millisecond)
	if m.OnProb(0) != ShouldStop {
		t.Fatal("Expected stop")
	}

	m.Reset()
	m.OnProb(1)
	clk.Advance(150 * time.Millisecond)
	// 150ms since the previous stop, inside the 200ms window
	if m.OnProb(0) == ShouldStop {
		t.Error("Expected debounce to survive Reset")
	}
}
