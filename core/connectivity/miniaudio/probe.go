//go:build cgo

// Package miniaudio probes microphone access through malgo.
package miniaudio

import (
	"context"

	"github.com/gen2brain/malgo"
	"github.com/ljubanic/parley-core/core/connectivity"
	"github.com/ljubanic/parley-core/core/speechtotext"
)

type Probe struct{}

func NewProbe() *Probe { return &Probe{} }

// Probe initializes a capture device and tears it straight back down. A
// device that opens is a granted microphone; a context that cannot
// initialize at all means audio is restricted on this host.
func (p *Probe) Probe(_ context.Context) connectivity.PermissionStatus {
	audioCtx, err := malgo.InitContext(
		nil,
		malgo.ContextConfig{},
		func(message string) {},
	)
	if err != nil {
		return connectivity.PermissionRestricted
	}
	defer func() {
		audioCtx.Uninit()
		audioCtx.Free()
	}()

	config := malgo.DefaultDeviceConfig(malgo.Capture)
	config.SampleRate = uint32(speechtotext.DefaultSampleRate)
	config.Capture.Format = malgo.FormatS16
	config.Capture.Channels = 1
	config.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(audioCtx.Context, config, malgo.DeviceCallbacks{})
	if err != nil {
		return connectivity.PermissionDenied
	}
	device.Uninit()

	return connectivity.PermissionGranted
}
