package audio

import (
	"strings"

	"github.com/yok-tottii/local-dictation/internal/logger"
)

// Negotiator chooses the capture device and rate.
type Negotiator struct {
	Host       Host
	TargetRate int
	Log        logger.Interface
}

// NewNegotiator returns a negotiator aiming for TargetRate.
func NewNegotiator(host Host, log logger.Interface) *Negotiator {
	return &Negotiator{
		Host:       host,
		TargetRate: TargetRate,
		Log:        logger.Named(log, "audio"),
	}
}

// PickRate selects the first input device whose name contains hint
// (case-insensitive), or the default device when hint is empty or nothing
// matches. It returns the target rate if the device accepts it and the
// device's native rate otherwise. It never fails.
func (n *Negotiator) PickRate(hint string) Selection {
	sel := Selection{SampleRate: n.TargetRate, DeviceID: DefaultDevice}

	var dev *Device
	if hint != "" {
		devices, err := n.Host.Devices()
		if err != nil {
			n.Log.Warn("failed to list devices, using default: %v", err)
		}
		needle := strings.ToLower(hint)
		for i := range devices {
			d := devices[i]
			if d.MaxInputChannels > 0 && strings.Contains(strings.ToLower(d.Name), needle) {
				dev = &d
				break
			}
		}
		if dev == nil && err == nil {
			n.Log.Warn("no input device matches %q, using default", hint)
		}
	}

	if dev == nil {
		d, err := n.Host.DefaultInputDevice()
		if err != nil {
			n.Log.Warn("no default input device: %v", err)
			return sel
		}
		dev = &d
	} else {
		sel.DeviceID = dev.ID
	}
	sel.DeviceName = dev.Name

	if err := n.Host.CheckRate(sel.DeviceID, n.TargetRate); err == nil {
		n.Log.Info("capturing from %q at %d Hz", dev.Name, sel.SampleRate)
		return sel
	} else if native := int(dev.DefaultSampleRate); native > 0 {
		n.Log.Info("%q rejects %d Hz (%v), using native %d Hz", dev.Name, n.TargetRate, err, native)
		sel.SampleRate = native
	}
	return sel
}

// ListInputDevices returns the host's devices that have input channels.
func ListInputDevices(host Host) ([]Device, error) {
	devices, err := host.Devices()
	if err != nil {
		return nil, err
	}
	var result []Device
	for _, d := range devices {
		if d.MaxInputChannels > 0 {
			result = append(result, d)
		}
	}
	return result, nil
}
