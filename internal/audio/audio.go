package audio

import "time"

// TargetRate is the sample rate every consumer downstream of capture works at.
const TargetRate = 16000

// DefaultDevice selects the host's default input device.
const DefaultDevice = -1

// Device represents an audio input device
type Device struct {
	ID                int
	Name              string
	MaxInputChannels  int
	DefaultSampleRate float64
	IsDefault         bool
}

// Selection is the outcome of device negotiation: the rate the stream is
// opened at and the device to open it on.
type Selection struct {
	SampleRate int
	DeviceID   int
	DeviceName string
}

// LatencyMode defines the latency priority
type LatencyMode int

const (
	// LowLatency prioritizes low latency (real-time)
	LowLatency LatencyMode = iota
	// HighStability prioritizes stability (larger buffer)
	HighStability
)

// Config holds capture configuration for a Recorder
type Config struct {
	MaxDuration     time.Duration
	TargetRate      int
	HighpassHz      float64
	FramesPerBuffer int
	Latency         LatencyMode
}

// DefaultConfig returns the default capture configuration
// Max duration: 90s, target rate: 16kHz, high-pass disabled
func DefaultConfig() Config {
	return Config{
		MaxDuration:     90 * time.Second,
		TargetRate:      TargetRate,
		HighpassHz:      0,
		FramesPerBuffer: 1024,
		Latency:         LowLatency,
	}
}

// Host enumerates devices and validates stream formats.
type Host interface {
	// Devices returns every device known to the host, input or not
	Devices() ([]Device, error)

	// DefaultInputDevice returns the system default input device
	DefaultInputDevice() (Device, error)

	// CheckRate reports whether a mono float32 input stream can be opened on
	// the device at the given rate. deviceID may be DefaultDevice.
	CheckRate(deviceID int, rate int) error
}

// Stream is an opened capture stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Source opens callback-driven mono float32 input streams.
// The callback runs on the audio thread and must not block.
type Source interface {
	Open(sel Selection, framesPerBuffer int, latency LatencyMode, callback func(in []float32)) (Stream, error)
}
