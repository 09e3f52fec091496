package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/yok-tottii/local-dictation/internal/logger"
)

// CaptureMetrics is a point-in-time view of a Recorder.
type CaptureMetrics struct {
	Callbacks        uint64
	SamplesAvailable int
	BufferUsage      float64
	Active           bool
}

// Recorder captures from a Source into a ring buffer sized for the maximum
// recording duration, and hands back a filtered, resampled copy on Stop.
type Recorder struct {
	src       Source
	sel       Selection
	config    Config
	resampler *Resampler
	highpass  *Highpass
	log       logger.Interface

	// opMu serializes Start and Stop; mu guards the data-plane state the
	// audio callback touches.
	opMu      sync.Mutex
	mu        sync.Mutex
	ring      *RingBuffer
	active    bool
	stream    Stream
	tap       func([]float32)
	callbacks uint64
}

// NewRecorder creates a recorder for the negotiated selection.
func NewRecorder(src Source, sel Selection, config Config, log logger.Interface) (*Recorder, error) {
	if sel.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid capture rate: %d", sel.SampleRate)
	}
	if config.TargetRate <= 0 {
		config.TargetRate = TargetRate
	}
	if config.FramesPerBuffer <= 0 {
		config.FramesPerBuffer = 1024
	}
	capacity := int(config.MaxDuration.Seconds() * float64(sel.SampleRate))
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid max duration: %v", config.MaxDuration)
	}

	r := &Recorder{
		src:       src,
		sel:       sel,
		config:    config,
		resampler: NewResampler(sel.SampleRate, config.TargetRate),
		log:       logger.Named(log, "audio"),
		ring:      NewRingBuffer(capacity),
	}

	if config.HighpassHz > 0 {
		hp, err := NewHighpass(config.HighpassHz, sel.SampleRate)
		if err != nil {
			return nil, err
		}
		r.highpass = hp
	}

	if r.resampler.NeedsResample() {
		up, down := r.resampler.Factors()
		r.log.Info("resampling %d Hz -> %d Hz (up=%d, down=%d)", sel.SampleRate, config.TargetRate, up, down)
	} else {
		r.log.Info("capture rate is %d Hz, no resampling necessary", sel.SampleRate)
	}

	return r, nil
}

// Selection returns the device and rate the recorder captures with.
func (r *Recorder) Selection() Selection { return r.sel }

// SetTap installs a function that receives every captured chunk at the
// device rate. It runs on the audio callback and must not block.
func (r *Recorder) SetTap(tap func([]float32)) {
	r.mu.Lock()
	r.tap = tap
	r.mu.Unlock()
}

// Start begins capturing. Calling Start while active is a no-op.
func (r *Recorder) Start(ctx context.Context) error {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return nil
	}
	r.ring.Reset()
	r.callbacks = 0
	r.mu.Unlock()

	stream, err := r.src.Open(r.sel, r.config.FramesPerBuffer, r.config.Latency, r.onChunk)
	if err != nil {
		return fmt.Errorf("failed to open stream: %w", err)
	}

	r.mu.Lock()
	r.active = true
	r.stream = stream
	r.mu.Unlock()

	if err := stream.Start(); err != nil {
		r.mu.Lock()
		r.active = false
		r.stream = nil
		r.mu.Unlock()
		stream.Close()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	return nil
}

// onChunk is the audio callback.
func (r *Recorder) onChunk(in []float32) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return
	}
	r.ring.Write(in)
	r.callbacks++
	tap := r.tap
	r.mu.Unlock()

	if tap != nil {
		tap(in)
	}
}

// Stop ends capture and returns the samples at the target rate, oldest
// first. It returns nil without error when nothing was captured or the
// recorder was not active.
func (r *Recorder) Stop() ([]float32, error) {
	r.opMu.Lock()
	defer r.opMu.Unlock()

	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return nil, nil
	}
	r.active = false
	stream := r.stream
	r.stream = nil
	r.mu.Unlock()

	// The callback may still be running; it sees active == false.
	stopErr := stream.Stop()
	closeErr := stream.Close()
	if stopErr != nil {
		return nil, fmt.Errorf("failed to stop stream: %w", stopErr)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close stream: %w", closeErr)
	}

	r.mu.Lock()
	samples := r.ring.Snapshot()
	r.mu.Unlock()

	if len(samples) == 0 {
		return nil, nil
	}

	return r.postProcess(samples)
}

func (r *Recorder) postProcess(samples []float32) (out []float32, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = nil, fmt.Errorf("post-processing failed: %v", p)
		}
	}()

	if r.highpass != nil {
		r.highpass.Apply(samples)
	}
	return r.resampler.Resample(samples), nil
}

// IsRecording returns whether capture is active
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// Metrics returns buffer and callback counters.
func (r *Recorder) Metrics() CaptureMetrics {
	r.mu.Lock()
	defer r.mu.Unlock()
	return CaptureMetrics{
		Callbacks:        r.callbacks,
		SamplesAvailable: r.ring.Len(),
		BufferUsage:      float64(r.ring.Len()) / float64(r.ring.Cap()),
		Active:           r.active,
	}
}
