// Package endpoint decides when an utterance has ended.
//
// In AutoStopVad mode a Manager turns per-frame speech probabilities into
// SHOULD_STOP signals: speech must be followed by Hangover of silence, and
// two stops closer than Debounce collapse into one. The Manager only
// signals; the caller stops the recording.
package endpoint

import (
	"fmt"
	"sync"
	"time"

	"github.com/yok-tottii/local-dictation/internal/clock"
	"github.com/yok-tottii/local-dictation/internal/vad"
)

// Mode selects how recordings end
type Mode int

const (
	// PushToTalk ends recordings on key release; the manager is inert
	PushToTalk Mode = iota
	// AutoStopVad ends recordings after trailing silence
	AutoStopVad
)

// String returns the string representation of the mode
func (m Mode) String() string {
	switch m {
	case PushToTalk:
		return "push-to-talk"
	case AutoStopVad:
		return "auto-stop-vad"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "push-to-talk", "ptt", "":
		return PushToTalk, nil
	case "auto-stop-vad", "vad", "auto":
		return AutoStopVad, nil
	default:
		return PushToTalk, fmt.Errorf("unknown endpoint mode: %q", s)
	}
}

// Decision is the per-frame verdict
type Decision int

const (
	Continue Decision = iota
	ShouldStop
)

// String returns the string representation of the decision
func (d Decision) String() string {
	if d == ShouldStop {
		return "SHOULD_STOP"
	}
	return "CONTINUE"
}

// Config holds endpoint configuration
type Config struct {
	Mode          Mode
	ProbThreshold float32
	Hangover      time.Duration
	Debounce      time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		Mode:          PushToTalk,
		ProbThreshold: 0.6,
		Hangover:      150 * time.Millisecond,
		Debounce:      200 * time.Millisecond,
	}
}

// Manager holds the endpoint state for one recording pipeline
type Manager struct {
	mu         sync.Mutex
	config     Config
	classifier vad.Classifier
	clock      clock.Clock

	isSpeech   bool
	lastSpeech time.Time
	lastStop   time.Time
}

// New creates a manager. classifier is only needed for OnFrame; clk may be
// nil for the real clock.
func New(config Config, classifier vad.Classifier, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Manager{
		config:     config,
		classifier: classifier,
		clock:      clk,
	}
}

// Mode returns the current mode
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config.Mode
}

// SetMode switches modes and clears speech state
func (m *Manager) SetMode(mode Mode) {
	m.mu.Lock()
	m.config.Mode = mode
	m.isSpeech = false
	m.mu.Unlock()
}

// OnFrame classifies a frame and feeds the probability to OnProb.
func (m *Manager) OnFrame(frame []float32) (Decision, error) {
	if m.Mode() == PushToTalk {
		return Continue, nil
	}
	if m.classifier == nil {
		return Continue, fmt.Errorf("endpoint: no classifier configured")
	}
	p, err := m.classifier.SpeechProb(frame)
	if err != nil {
		return Continue, err
	}
	return m.OnProb(p), nil
}

// OnProb advances the state machine by one frame.
func (m *Manager) OnProb(prob float32) Decision {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.config.Mode == PushToTalk {
		return Continue
	}

	now := m.clock.Now()
	if prob >= m.config.ProbThreshold {
		m.isSpeech = true
		m.lastSpeech = now
		return Continue
	}

	if m.isSpeech && now.Sub(m.lastSpeech) >= m.config.Hangover {
		if m.lastStop.IsZero() || now.Sub(m.lastStop) >= m.config.Debounce {
			m.lastStop = now
			m.isSpeech = false
			return ShouldStop
		}
	}
	return Continue
}

// IsSpeech reports whether speech has been seen since the last stop
func (m *Manager) IsSpeech() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isSpeech
}

// Reset clears speech state for a new recording. The debounce window
// carries over.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.isSpeech = false
	m.lastSpeech = time.Time{}
	m.mu.Unlock()
	if m.classifier != nil {
		m.classifier.Reset()
	}
}
