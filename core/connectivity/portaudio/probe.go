//go:build cgo

// Package portaudio probes microphone access through PortAudio. It is the
// fallback backend for hosts where miniaudio misbehaves.
package portaudio

import (
	"context"

	"github.com/gordonklaus/portaudio"
	"github.com/ljubanic/parley-core/core/connectivity"
	"github.com/ljubanic/parley-core/core/speechtotext"
)

type Probe struct{}

func NewProbe() *Probe { return &Probe{} }

func (p *Probe) Probe(_ context.Context) connectivity.PermissionStatus {
	if err := portaudio.Initialize(); err != nil {
		return connectivity.PermissionRestricted
	}
	defer portaudio.Terminate()

	buffer := make([]int16, 512)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(speechtotext.DefaultSampleRate), len(buffer), buffer)
	if err != nil {
		return connectivity.PermissionDenied
	}
	stream.Close()

	return connectivity.PermissionGranted
}
