package audio

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioHost implements Host and Source using PortAudio
type PortAudioHost struct {
	mu     sync.Mutex
	closed bool
}

// NewPortAudioHost initializes PortAudio
func NewPortAudioHost() (*PortAudioHost, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	return &PortAudioHost{}, nil
}

// Devices returns every PortAudio device
func (h *PortAudioHost) Devices() ([]Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		// Continue without marking any device as default
		defaultInput = nil
	}

	result := make([]Device, 0, len(devices))
	for i, dev := range devices {
		result = append(result, Device{
			ID:                i,
			Name:              dev.Name,
			MaxInputChannels:  dev.MaxInputChannels,
			DefaultSampleRate: dev.DefaultSampleRate,
			IsDefault:         defaultInput != nil && dev.Name == defaultInput.Name,
		})
	}
	return result, nil
}

// DefaultInputDevice returns the system default input device
func (h *PortAudioHost) DefaultInputDevice() (Device, error) {
	devices, err := portaudio.Devices()
	if err != nil {
		return Device{}, fmt.Errorf("failed to list devices: %w", err)
	}
	dev, err := portaudio.DefaultInputDevice()
	if err != nil {
		return Device{}, fmt.Errorf("failed to get default input device: %w", err)
	}
	id := DefaultDevice
	for i, d := range devices {
		if d == dev {
			id = i
			break
		}
	}
	return Device{
		ID:                id,
		Name:              dev.Name,
		MaxInputChannels:  dev.MaxInputChannels,
		DefaultSampleRate: dev.DefaultSampleRate,
		IsDefault:         true,
	}, nil
}

// CheckRate validates a mono float32 input format on the device
func (h *PortAudioHost) CheckRate(deviceID int, rate int) error {
	dev, err := resolveDevice(deviceID)
	if err != nil {
		return err
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      float64(rate),
		FramesPerBuffer: portaudio.FramesPerBufferUnspecified,
	}
	return portaudio.IsFormatSupported(params, func(in []float32) {})
}

// Open opens a mono callback stream on the selected device
func (h *PortAudioHost) Open(sel Selection, framesPerBuffer int, latency LatencyMode, callback func(in []float32)) (Stream, error) {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return nil, fmt.Errorf("PortAudio host is closed")
	}

	dev, err := resolveDevice(sel.DeviceID)
	if err != nil {
		return nil, err
	}

	// Validate device has input channels
	if dev.MaxInputChannels <= 0 {
		return nil, fmt.Errorf("selected device '%s' (ID: %d) has no input channels (output-only device)",
			dev.Name, sel.DeviceID)
	}

	var lat time.Duration
	switch latency {
	case LowLatency:
		lat = dev.DefaultLowInputLatency
	default:
		lat = dev.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  lat,
		},
		SampleRate:      float64(sel.SampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	stream, err := portaudio.OpenStream(params, callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open stream on '%s': %w", dev.Name, err)
	}
	return stream, nil
}

// Close terminates PortAudio
func (h *PortAudioHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil
	}
	h.closed = true
	if err := portaudio.Terminate(); err != nil {
		return fmt.Errorf("failed to terminate PortAudio: %w", err)
	}
	return nil
}

func resolveDevice(deviceID int) (*portaudio.DeviceInfo, error) {
	if deviceID == DefaultDevice {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("failed to get default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	if deviceID < 0 || deviceID >= len(devices) {
		return nil, fmt.Errorf("invalid device ID: %d", deviceID)
	}
	return devices[deviceID], nil
}
