// Package observe holds the OpenTelemetry instruments for dictation and
// wake-word activity, and the provider setup that exports them to
// Prometheus.
package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// meterName is the instrumentation scope name used for all metrics.
const meterName = "github.com/yok-tottii/local-dictation"

// Recording triggers
const (
	TriggerPushToTalk = "push_to_talk"
	TriggerHandsFree  = "hands_free"
	TriggerWakeWord   = "wake_word"
)

// Wake segment outcomes
const (
	SegmentQueued    = "queued"
	SegmentDropped   = "dropped"   // queue full
	SegmentDiscarded = "discarded" // too short or too long
)

// Metrics holds all metric instruments. The underlying OTel types are safe
// for concurrent use.
type Metrics struct {
	// Recordings counts started recordings by trigger.
	Recordings metric.Int64Counter
	// RecordingDuration tracks captured audio length.
	RecordingDuration metric.Float64Histogram
	// TranscriptionDuration tracks transcription latency by source
	// (dictation or wake_word).
	TranscriptionDuration metric.Float64Histogram
	// TranscriptionErrors counts failed transcriptions by source.
	TranscriptionErrors metric.Int64Counter
	// EndpointStops counts recordings ended by silence detection.
	EndpointStops metric.Int64Counter
	// CaptureErrors counts audio stream failures.
	CaptureErrors metric.Int64Counter
	// WakeSegments counts wake-word speech segments by outcome.
	WakeSegments metric.Int64Counter
	// WakeDetections counts matched wake phrases.
	WakeDetections metric.Int64Counter
	// WakeSuppressed counts matches ignored during the cooldown.
	WakeSuppressed metric.Int64Counter
}

var latencyBuckets = []float64{
	0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16,
}

var durationBuckets = []float64{
	0.5, 1, 2, 5, 10, 20, 30, 60, 90,
}

// NewMetrics creates every instrument from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.Recordings, err = m.Int64Counter("local_dictation.recordings",
		metric.WithDescription("Recordings started, by trigger."),
	); err != nil {
		return nil, err
	}
	if met.RecordingDuration, err = m.Float64Histogram("local_dictation.recording.duration",
		metric.WithDescription("Length of captured dictation audio."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionDuration, err = m.Float64Histogram("local_dictation.transcription.duration",
		metric.WithDescription("Latency of speech-to-text transcription."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.TranscriptionErrors, err = m.Int64Counter("local_dictation.transcription.errors",
		metric.WithDescription("Failed transcriptions, by source."),
	); err != nil {
		return nil, err
	}
	if met.EndpointStops, err = m.Int64Counter("local_dictation.endpoint.stops",
		metric.WithDescription("Recordings stopped by trailing silence."),
	); err != nil {
		return nil, err
	}
	if met.CaptureErrors, err = m.Int64Counter("local_dictation.capture.errors",
		metric.WithDescription("Audio capture failures."),
	); err != nil {
		return nil, err
	}
	if met.WakeSegments, err = m.Int64Counter("local_dictation.wake.segments",
		metric.WithDescription("Wake-word speech segments, by outcome."),
	); err != nil {
		return nil, err
	}
	if met.WakeDetections, err = m.Int64Counter("local_dictation.wake.detections",
		metric.WithDescription("Wake phrases detected."),
	); err != nil {
		return nil, err
	}
	if met.WakeSuppressed, err = m.Int64Counter("local_dictation.wake.suppressed",
		metric.WithDescription("Wake phrases ignored during the cooldown."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// Nop returns metrics backed by a no-op provider.
func Nop() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}
	return m
}

// RecordRecording records a started recording.
func (m *Metrics) RecordRecording(ctx context.Context, trigger string) {
	m.Recordings.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", trigger)))
}

// RecordTranscription records one transcription and its outcome.
func (m *Metrics) RecordTranscription(ctx context.Context, source string, seconds float64, err error) {
	attrs := metric.WithAttributes(attribute.String("source", source))
	m.TranscriptionDuration.Record(ctx, seconds, attrs)
	if err != nil {
		m.TranscriptionErrors.Add(ctx, 1, attrs)
	}
}

// RecordWakeSegment records a wake-word segment outcome.
func (m *Metrics) RecordWakeSegment(ctx context.Context, outcome string) {
	m.WakeSegments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
