// Package wakeword listens to ambient audio and reports when a configured
// phrase is spoken.
//
// The capture callback resamples to 16 kHz, frames the audio for the VAD
// and accumulates speech into segments. Segments are handed to a single
// worker through a bounded queue; the worker transcribes them and matches
// the text against the phrases. The callback never blocks.
package wakeword

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/yok-tottii/local-dictation/internal/audio"
	"github.com/yok-tottii/local-dictation/internal/clock"
	"github.com/yok-tottii/local-dictation/internal/logger"
	"github.com/yok-tottii/local-dictation/internal/observe"
	"github.com/yok-tottii/local-dictation/internal/recognition"
	"github.com/yok-tottii/local-dictation/internal/vad"
)

// ErrInvalidConfig is returned for an unusable detector configuration
var ErrInvalidConfig = errors.New("invalid wake word config")

const (
	// SilenceTimeout ends a segment after speech
	SilenceTimeout = 350 * time.Millisecond
	// MinSegment is the shortest segment worth transcribing
	MinSegment = 150 * time.Millisecond
	// QueueSize bounds the segments waiting for the worker
	QueueSize = 8
)

// Config holds wake word configuration
type Config struct {
	Phrases        []string
	Window         time.Duration
	MinGap         time.Duration
	VADThreshold   float32
	MatchThreshold float64
}

// DefaultConfig returns the default configuration without phrases
func DefaultConfig() Config {
	return Config{
		Window:         2500 * time.Millisecond,
		MinGap:         2 * time.Second,
		VADThreshold:   0.55,
		MatchThreshold: 0.78,
	}
}

// Validate checks the configuration
func (c Config) Validate() error {
	if len(NewMatcher(c.Phrases, c.MatchThreshold).Phrases()) == 0 {
		return fmt.Errorf("%w: no phrases", ErrInvalidConfig)
	}
	if c.VADThreshold < 0 || c.VADThreshold > 1 {
		return fmt.Errorf("%w: VAD threshold %.2f outside [0,1]", ErrInvalidConfig, c.VADThreshold)
	}
	if c.MatchThreshold < 0 || c.MatchThreshold > 1 {
		return fmt.Errorf("%w: match threshold %.2f outside [0,1]", ErrInvalidConfig, c.MatchThreshold)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window %v", ErrInvalidConfig, c.Window)
	}
	if c.MinGap < 0 {
		return fmt.Errorf("%w: min gap %v", ErrInvalidConfig, c.MinGap)
	}
	return nil
}

// Deps are the collaborators of a Detector
type Deps struct {
	Source          audio.Source
	Selection       audio.Selection
	FramesPerBuffer int
	// Classifier must run at 16 kHz and is owned by the detector's callback
	Classifier  vad.Classifier
	Transcriber recognition.Transcriber
	// Lock serializes transcription with other users of Transcriber
	Lock     sync.Locker
	OnDetect func(phrase string)
	Clock    clock.Clock
	Log      logger.Interface
	Metrics  *observe.Metrics
}

// Detector is an ambient wake phrase listener
type Detector struct {
	cfg     Config
	deps    Deps
	matcher *Matcher
	log     logger.Interface
	window  int // samples
	minSeg  int

	opMu   sync.Mutex
	stream audio.Stream
	queue  chan []float32
	wg     sync.WaitGroup

	// callback state
	mu         sync.Mutex
	running    bool
	paused     bool
	resampler  *audio.ResampleStream
	resampled  []float32
	framer     *audio.Framer
	segment    []float32
	overflow   bool
	inSegment  bool
	lastSpeech time.Time
	lastDetect time.Time
}

// New creates a detector. The stream is not opened until Start.
func New(cfg Config, deps Deps) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Source == nil || deps.Classifier == nil || deps.Transcriber == nil {
		return nil, fmt.Errorf("%w: source, classifier and transcriber are required", ErrInvalidConfig)
	}
	if deps.Classifier.SampleRate() != audio.TargetRate {
		return nil, fmt.Errorf("%w: classifier runs at %d Hz", vad.ErrSampleRate, deps.Classifier.SampleRate())
	}
	if deps.Selection.SampleRate <= 0 {
		return nil, fmt.Errorf("%w: capture rate %d", ErrInvalidConfig, deps.Selection.SampleRate)
	}
	if deps.FramesPerBuffer <= 0 {
		// 30 ms at the capture rate
		deps.FramesPerBuffer = deps.Selection.SampleRate * 3 / 100
	}
	if deps.Lock == nil {
		deps.Lock = &sync.Mutex{}
	}
	if deps.Clock == nil {
		deps.Clock = clock.Real{}
	}
	if deps.Metrics == nil {
		deps.Metrics = observe.Nop()
	}

	d := &Detector{
		cfg:     cfg,
		deps:    deps,
		matcher: NewMatcher(cfg.Phrases, cfg.MatchThreshold),
		log:     logger.Named(deps.Log, "wakeword"),
		window:  int(cfg.Window.Seconds() * audio.TargetRate),
		minSeg:  int(MinSegment.Seconds() * audio.TargetRate),
	}
	d.resampler = audio.NewResampler(deps.Selection.SampleRate, audio.TargetRate).NewStream()
	d.framer = audio.NewFramer(deps.Classifier.FrameSize(), d.onFrame)
	d.segment = make([]float32, 0, d.window+deps.Classifier.FrameSize())
	return d, nil
}

// Start opens the capture stream and starts the worker
func (d *Detector) Start(ctx context.Context) error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.stream != nil {
		return nil
	}

	d.mu.Lock()
	d.resetLocked()
	d.paused = false
	d.running = true
	d.mu.Unlock()

	d.queue = make(chan []float32, QueueSize)
	d.wg.Add(1)
	go d.worker(ctx, d.queue)

	stream, err := d.deps.Source.Open(d.deps.Selection, d.deps.FramesPerBuffer, audio.LowLatency, d.onChunk)
	if err == nil {
		err = stream.Start()
		if err != nil {
			stream.Close()
		}
	}
	if err != nil {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
		d.queue <- nil
		d.wg.Wait()
		return fmt.Errorf("failed to start wake word listener: %w", err)
	}

	d.stream = stream
	d.log.Info("wake word listener active (%v)", d.matcher.Phrases())
	return nil
}

// Stop closes the stream and joins the worker
func (d *Detector) Stop() error {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	if d.stream == nil {
		return nil
	}

	d.mu.Lock()
	d.running = false
	d.mu.Unlock()

	stopErr := d.stream.Stop()
	closeErr := d.stream.Close()
	d.stream = nil

	// The callback no longer sends once running is false, so the sentinel
	// is the last value the worker sees.
	d.queue <- nil
	d.wg.Wait()

	return errors.Join(stopErr, closeErr)
}

// Pause suspends detection. Audio keeps flowing but is discarded.
func (d *Detector) Pause() {
	d.mu.Lock()
	d.paused = true
	d.resetLocked()
	d.mu.Unlock()
}

// Resume restarts detection. The cooldown restarts from now so the tail
// of a dictation cannot re-trigger immediately.
func (d *Detector) Resume() {
	d.mu.Lock()
	d.paused = false
	d.resetLocked()
	d.lastDetect = d.deps.Clock.Now()
	d.mu.Unlock()
}

// Paused reports whether detection is suspended
func (d *Detector) Paused() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused
}

func (d *Detector) resetLocked() {
	d.resampler.Reset()
	d.resampled = d.resampled[:0]
	d.framer.Reset()
	d.segment = d.segment[:0]
	d.overflow = false
	d.inSegment = false
	d.lastSpeech = time.Time{}
	d.deps.Classifier.Reset()
}

// onChunk is the audio callback.
func (d *Detector) onChunk(in []float32) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running || d.paused {
		return
	}
	d.resampled = d.resampler.Process(d.resampled[:0], in)
	d.framer.Write(d.resampled)
}

// onFrame runs under mu from the framer.
func (d *Detector) onFrame(frame []float32) {
	prob, err := d.deps.Classifier.SpeechProb(frame)
	if err != nil {
		d.log.Debug("VAD failed: %v", err)
		return
	}
	now := d.deps.Clock.Now()

	if prob >= d.cfg.VADThreshold {
		if len(d.segment)+len(frame) <= cap(d.segment) {
			d.segment = append(d.segment, frame...)
		} else {
			d.overflow = true
		}
		d.inSegment = true
		d.lastSpeech = now
		return
	}

	if d.inSegment && now.Sub(d.lastSpeech) >= SilenceTimeout {
		d.flushLocked()
	}
}

func (d *Detector) flushLocked() {
	seg := d.segment
	overflow := d.overflow
	d.segment = d.segment[:0]
	d.overflow = false
	d.inSegment = false

	ctx := context.Background()
	if overflow || len(seg) > d.window || len(seg) == 0 {
		d.deps.Metrics.RecordWakeSegment(ctx, observe.SegmentDiscarded)
		return
	}

	out := make([]float32, len(seg))
	copy(out, seg)
	select {
	case d.queue <- out:
		d.deps.Metrics.RecordWakeSegment(ctx, observe.SegmentQueued)
	default:
		d.deps.Metrics.RecordWakeSegment(ctx, observe.SegmentDropped)
		d.log.Debug("segment dropped: queue full")
	}
}

func (d *Detector) worker(ctx context.Context, queue <-chan []float32) {
	defer d.wg.Done()

	for seg := range queue {
		if seg == nil {
			return
		}
		d.process(ctx, seg)
	}
}

func (d *Detector) process(ctx context.Context, seg []float32) {
	if len(seg) < d.minSeg || len(seg) > d.window {
		d.deps.Metrics.RecordWakeSegment(ctx, observe.SegmentDiscarded)
		return
	}
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	d.deps.Lock.Lock()
	text, err := d.deps.Transcriber.Transcribe(ctx, seg)
	d.deps.Lock.Unlock()
	d.deps.Metrics.RecordTranscription(ctx, "wake_word", time.Since(start).Seconds(), err)
	if err != nil {
		d.log.Error("transcription failed: %v", err)
		return
	}

	phrase, ok := d.matcher.Match(text)
	if !ok {
		d.log.Debug("no wake phrase in %q", text)
		return
	}

	d.mu.Lock()
	now := d.deps.Clock.Now()
	if d.paused || (!d.lastDetect.IsZero() && now.Sub(d.lastDetect) < d.cfg.MinGap) {
		d.mu.Unlock()
		d.deps.Metrics.WakeSuppressed.Add(ctx, 1)
		d.log.Debug("wake phrase %q suppressed", phrase)
		return
	}
	d.lastDetect = now
	d.mu.Unlock()

	d.deps.Metrics.WakeDetections.Add(ctx, 1)
	d.log.Info("wake phrase detected: %q (heard %q)", phrase, text)
	d.notify(phrase)
}

// notify runs OnDetect on the worker; a panic is logged and the worker keeps going.
func (d *Detector) notify(phrase string) {
	if d.deps.OnDetect == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("wake callback panicked: %v", r)
		}
	}()
	d.deps.OnDetect(phrase)
}
