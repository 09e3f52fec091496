// Package recording drives dictation: it starts and stops capture on chord
// edges, hands-free toggles, wake detections, silence endpoints and the
// maximum duration, and transcribes each finished utterance on a worker.
package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/yok-tottii/local-dictation/internal/audio"
	"github.com/yok-tottii/local-dictation/internal/clock"
	"github.com/yok-tottii/local-dictation/internal/endpoint"
	"github.com/yok-tottii/local-dictation/internal/logger"
	"github.com/yok-tottii/local-dictation/internal/observe"
	"github.com/yok-tottii/local-dictation/internal/recognition"
	"github.com/yok-tottii/local-dictation/internal/sched"
	"github.com/yok-tottii/local-dictation/internal/vad"
)

// State represents the current recording state
type State int

const (
	// Idle means not recording
	Idle State = iota
	// Recording means currently recording audio
	Recording
	// Processing means transcriptions are pending
	Processing
)

// String returns the string representation of the state
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Recording:
		return "Recording"
	case Processing:
		return "Processing"
	default:
		return "Unknown"
	}
}

// Recorder is the capture side of a Manager
type Recorder interface {
	Start(ctx context.Context) error
	Stop() ([]float32, error)
	SetTap(tap func([]float32))
	Selection() audio.Selection
}

// WakeListener is paused while dictation records
type WakeListener interface {
	Pause()
	Resume()
}

// Result is one transcribed utterance
type Result struct {
	ID       uuid.UUID
	Trigger  string
	Text     string
	Samples  int
	Duration time.Duration // transcription time
	Err      error
}

// Config holds configuration for the recording manager
type Config struct {
	MaxDuration time.Duration
	Endpoint    endpoint.Config
	// Smoothing is the majority-vote window ahead of the endpoint manager;
	// values below 2 disable it.
	Smoothing int
	// TrimSilence removes non-speech before transcription
	TrimSilence bool
	VAD         vad.Config
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		MaxDuration: 90 * time.Second,
		Endpoint:    endpoint.DefaultConfig(),
		Smoothing:   1,
		VAD:         vad.DefaultConfig(),
	}
}

// Deps are the collaborators of a Manager
type Deps struct {
	Recorder    Recorder
	Transcriber recognition.Transcriber
	// Lock serializes transcription with the wake word detector
	Lock sync.Locker
	// Classifier feeds the endpoint manager from the audio callback.
	// Without it, hands-free and wake recordings only stop on the
	// maximum duration.
	Classifier vad.Classifier
	// TrimClassifier is used by the transcription worker for TrimSilence
	TrimClassifier vad.Classifier
	Scheduler      *sched.Scheduler
	Wake           WakeListener
	Clock          clock.Clock
	Log            logger.Interface
	Metrics        *observe.Metrics
}

type eventKind int

const (
	evChord eventKind = iota
	evCancel
	evToggle
	evWake
	evEndpoint
	evMaxDuration
)

type event struct {
	kind  eventKind
	value bool
	gen   uint64
}

type job struct {
	id      uuid.UUID
	trigger string
	samples []float32
}

const (
	eventQueueSize = 16
	jobQueueSize   = 8
	resultsSize    = 16
)

// Manager manages the recording lifecycle
type Manager struct {
	config  Config
	deps    Deps
	log     logger.Interface
	metrics *observe.Metrics
	tracer  trace.Tracer

	events  chan event
	signals chan event
	jobs    chan job
	results chan Result
	stop    chan struct{}
	wg      sync.WaitGroup
	workers sync.WaitGroup

	// control goroutine state
	gen        uint64
	trigger    string
	handsFree  bool
	wakePaused bool
	maxTask    *sched.Task
	recording  atomic.Bool
	pending    atomic.Int32

	// audio callback state
	tapMu     sync.Mutex
	tapActive bool
	tapGen    uint64
	ep        *endpoint.Manager
	smoother  *vad.Smoother
	resampler *audio.ResampleStream
	resampled []float32
	framer    *audio.Framer

	runMu   sync.Mutex
	running bool
	stopped bool
}

// New creates a new recording manager
func New(config Config, deps Deps) (*Manager, error) {
	if deps.Recorder == nil || deps.Transcriber == nil {
		return nil, errors.New("recorder and transcriber are required")
	}
	if config.MaxDuration <= 0 {
		return nil, fmt.Errorf("invalid max duration: %v", config.MaxDuration)
	}
	if deps.Classifier != nil && deps.Classifier.SampleRate() != audio.TargetRate {
		return nil, fmt.Errorf("%w: endpoint classifier runs at %d Hz", vad.ErrSampleRate, deps.Classifier.SampleRate())
	}
	if config.TrimSilence && deps.TrimClassifier == nil {
		return nil, errors.New("silence trimming needs a classifier")
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

	m := &Manager{
		config:  config,
		deps:    deps,
		log:     logger.Named(deps.Log, "recording"),
		metrics: deps.Metrics,
		tracer:  otel.Tracer("github.com/yok-tottii/local-dictation/internal/recording"),
		events:  make(chan event, eventQueueSize),
		signals: make(chan event, eventQueueSize),
		jobs:    make(chan job, jobQueueSize),
		results: make(chan Result, resultsSize),
		ep:      endpoint.New(config.Endpoint, deps.Classifier, deps.Clock),
	}

	if deps.Classifier != nil {
		m.smoother = vad.NewSmoother(config.Smoothing)
		rate := deps.Recorder.Selection().SampleRate
		m.resampler = audio.NewResampler(rate, audio.TargetRate).NewStream()
		m.framer = audio.NewFramer(deps.Classifier.FrameSize(), m.onFrame)
		deps.Recorder.SetTap(m.onAudio)
	}
	return m, nil
}

// Results delivers transcribed utterances. It is closed by Stop.
func (m *Manager) Results() <-chan Result {
	return m.results
}

// State returns the current recording state
func (m *Manager) State() State {
	switch {
	case m.recording.Load():
		return Recording
	case m.pending.Load() > 0:
		return Processing
	default:
		return Idle
	}
}

// Start begins the control loop and the transcription worker. A stopped
// Manager cannot be restarted.
func (m *Manager) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if m.running || m.stopped {
		return
	}
	m.running = true
	m.stop = make(chan struct{})

	m.wg.Add(1)
	go m.control(ctx, m.stop)
	m.workers.Add(1)
	go m.worker(ctx)
}

// Stop ends any recording without transcribing it, waits for pending
// transcriptions and closes Results.
func (m *Manager) Stop() {
	m.runMu.Lock()
	defer m.runMu.Unlock()

	if !m.running {
		return
	}
	m.running = false
	m.stopped = true
	close(m.stop)
	m.wg.Wait()

	close(m.jobs)
	m.workers.Wait()
	close(m.results)
}

// OnChordActive is the push-to-talk callback
func (m *Manager) OnChordActive(active bool) {
	m.post(event{kind: evChord, value: active})
}

// OnChordCancel discards a push-to-talk recording that was only a tap
func (m *Manager) OnChordCancel() {
	m.post(event{kind: evCancel})
}

// OnToggle is the hands-free callback
func (m *Manager) OnToggle(armed bool) {
	m.post(event{kind: evToggle, value: armed})
}

// OnWake is the wake word callback
func (m *Manager) OnWake(phrase string) {
	m.post(event{kind: evWake})
}

func (m *Manager) post(ev event) {
	m.runMu.Lock()
	stop := m.stop
	m.runMu.Unlock()
	if stop == nil {
		return
	}
	select {
	case m.events <- ev:
	case <-stop:
	}
}

// signal never blocks; it runs on the audio callback and on the scheduler.
func (m *Manager) signal(ev event) {
	select {
	case m.signals <- ev:
	default:
	}
}

func (m *Manager) control(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()
	defer m.abort()

	for {
		select {
		case ev := <-m.events:
			m.handle(ctx, ev)
		case ev := <-m.signals:
			m.handle(ctx, ev)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (m *Manager) handle(ctx context.Context, ev event) {
	active := m.recording.Load()

	switch ev.kind {
	case evChord:
		switch {
		case ev.value && !active:
			m.begin(ctx, observe.TriggerPushToTalk, endpoint.PushToTalk)
		case !ev.value && active && m.trigger == observe.TriggerPushToTalk:
			m.finish(ctx, true)
		}

	case evCancel:
		if active && m.trigger == observe.TriggerPushToTalk {
			m.log.Debug("tap, push-to-talk audio discarded")
			m.finish(ctx, false)
		}

	case evToggle:
		m.handsFree = ev.value
		switch {
		case ev.value && !active:
			m.log.Info("hands-free armed")
			m.begin(ctx, observe.TriggerHandsFree, endpoint.AutoStopVad)
		case ev.value:
			m.log.Info("hands-free armed while %s recording runs", m.trigger)
		case active && m.trigger == observe.TriggerHandsFree:
			m.log.Info("hands-free disarmed")
			m.finish(ctx, true)
		default:
			m.log.Info("hands-free disarmed")
		}

	case evWake:
		if active {
			return
		}
		m.begin(ctx, observe.TriggerWakeWord, endpoint.AutoStopVad)

	case evEndpoint, evMaxDuration:
		if !active || ev.gen != m.gen {
			// stale signal from an earlier recording
			return
		}
		if ev.kind == evEndpoint {
			m.metrics.EndpointStops.Add(ctx, 1)
			m.log.Debug("silence endpoint")
		} else {
			m.log.Info("maximum duration of %v reached", m.config.MaxDuration)
		}
		m.finish(ctx, true)
	}

	if m.recording.Load() {
		return
	}
	if m.handsFree {
		m.begin(ctx, observe.TriggerHandsFree, endpoint.AutoStopVad)
		return
	}
	if m.wakePaused {
		m.wakePaused = false
		m.deps.Wake.Resume()
	}
}

// begin starts a recording. Runs on the control goroutine.
func (m *Manager) begin(ctx context.Context, trigger string, mode endpoint.Mode) {
	if m.deps.Wake != nil && !m.wakePaused {
		m.deps.Wake.Pause()
		m.wakePaused = true
	}

	m.gen++
	gen := m.gen

	m.tapMu.Lock()
	m.ep.SetMode(mode)
	m.ep.Reset()
	if m.framer != nil {
		m.resampler.Reset()
		m.framer.Reset()
		m.smoother.Reset()
	}
	m.tapGen = gen
	m.tapActive = mode == endpoint.AutoStopVad && m.deps.Classifier != nil
	m.tapMu.Unlock()

	if err := m.deps.Recorder.Start(ctx); err != nil {
		m.tapMu.Lock()
		m.tapActive = false
		m.tapMu.Unlock()
		m.metrics.CaptureErrors.Add(ctx, 1)
		m.log.Error("failed to start recording: %v", err)
		m.deliver(Result{ID: uuid.New(), Trigger: trigger, Err: fmt.Errorf("failed to start recording: %w", err)})
		// a broken device would otherwise restart in a loop
		m.handsFree = false
		return
	}

	m.trigger = trigger
	m.recording.Store(true)
	if m.deps.Scheduler != nil {
		m.maxTask = m.deps.Scheduler.After(m.config.MaxDuration, func() {
			m.signal(event{kind: evMaxDuration, gen: gen})
		})
	}
	m.metrics.RecordRecording(ctx, trigger)
	m.log.Info("recording started (%s, %s)", trigger, mode)
}

// finish stops the active recording and queues it for transcription when
// transcribe is set. Runs on the control goroutine.
func (m *Manager) finish(ctx context.Context, transcribe bool) {
	m.tapMu.Lock()
	m.tapActive = false
	m.tapMu.Unlock()

	if m.maxTask != nil {
		m.maxTask.Cancel()
		m.maxTask = nil
	}

	trigger := m.trigger
	samples, err := m.deps.Recorder.Stop()
	m.recording.Store(false)
	m.trigger = ""

	if err != nil {
		m.metrics.CaptureErrors.Add(ctx, 1)
		m.log.Error("failed to stop recording: %v", err)
		if transcribe {
			m.deliver(Result{ID: uuid.New(), Trigger: trigger, Err: err})
		}
		return
	}
	if !transcribe {
		return
	}
	if len(samples) == 0 {
		m.log.Info("no audio captured")
		return
	}

	seconds := float64(len(samples)) / audio.TargetRate
	m.metrics.RecordingDuration.Record(ctx, seconds)
	m.log.Info("recording stopped (%.2fs)", seconds)

	j := job{id: uuid.New(), trigger: trigger, samples: samples}
	m.pending.Add(1)
	select {
	case m.jobs <- j:
	default:
		m.pending.Add(-1)
		m.log.Warn("transcription queue full, dropping %.2fs of audio", seconds)
	}
}

// abort stops an active recording on shutdown.
func (m *Manager) abort() {
	if m.recording.Load() {
		m.finish(context.Background(), false)
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.workers.Done()

	for j := range m.jobs {
		res := m.transcribe(ctx, j)
		m.pending.Add(-1)
		if res.Err == nil && res.Text == "" {
			m.log.Info("no speech recognized")
			continue
		}
		m.deliver(res)
	}
}

func (m *Manager) transcribe(ctx context.Context, j job) Result {
	ctx, span := m.tracer.Start(ctx, "recording.transcribe",
		trace.WithAttributes(
			attribute.String("trigger", j.trigger),
			attribute.Int("samples", len(j.samples)),
		))
	defer span.End()

	res := Result{ID: j.id, Trigger: j.trigger, Samples: len(j.samples)}
	samples := j.samples

	if m.config.TrimSilence {
		trimmed, err := vad.FilterSpeechSegments(m.deps.TrimClassifier, samples, m.config.VAD)
		if err != nil {
			m.log.Warn("silence trimming failed, using full audio: %v", err)
		} else {
			m.log.Debug("trimmed %d -> %d samples", len(samples), len(trimmed))
			samples = trimmed
		}
		if len(samples) == 0 {
			return res
		}
	}

	start := time.Now()
	m.deps.Lock.Lock()
	text, err := m.deps.Transcriber.Transcribe(ctx, samples)
	m.deps.Lock.Unlock()
	res.Duration = time.Since(start)
	m.metrics.RecordTranscription(ctx, "dictation", res.Duration.Seconds(), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transcription failed")
		m.log.Error("transcription failed: %v", err)
		res.Err = fmt.Errorf("transcription failed: %w", err)
		return res
	}
	res.Text = text
	m.log.Info("transcribed %.2fs of audio in %v", float64(len(samples))/audio.TargetRate, res.Duration.Round(time.Millisecond))
	return res
}

// deliver never blocks; a full channel drops the result.
func (m *Manager) deliver(res Result) {
	select {
	case m.results <- res:
	default:
		m.log.Warn("results channel full, dropping result %s", res.ID)
	}
}

// onAudio is the recorder tap; it runs on the audio callback.
func (m *Manager) onAudio(in []float32) {
	m.tapMu.Lock()
	defer m.tapMu.Unlock()

	if !m.tapActive {
		return
	}
	m.resampled = m.resampler.Process(m.resampled[:0], in)
	m.framer.Write(m.resampled)
}

// onFrame runs under tapMu from the framer.
func (m *Manager) onFrame(frame []float32) {
	prob, err := m.deps.Classifier.SpeechProb(frame)
	if err != nil {
		return
	}
	if m.config.Smoothing > 1 {
		speech := m.smoother.Push(prob >= m.config.Endpoint.ProbThreshold)
		prob = 0
		if speech {
			prob = 1
		}
	}
	if m.ep.OnProb(prob) == endpoint.ShouldStop {
		m.signal(event{kind: evEndpoint, gen: m.tapGen})
	}
}
