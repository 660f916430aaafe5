// Package connectivity answers the two preconditions every live stream has:
// is there a network, and may we open the microphone.
package connectivity

import "context"

// PermissionStatus is the microphone access state as the platform reports it.
type PermissionStatus string

const (
	// PermissionUndecided means the user was never asked; a request may
	// still succeed.
	PermissionUndecided PermissionStatus = "undecided"
	// PermissionGranted means capture is allowed.
	PermissionGranted PermissionStatus = "granted"
	// PermissionDenied means the user declined but can be asked again.
	PermissionDenied PermissionStatus = "denied"
	// PermissionPermanentlyDenied means only the system settings can
	// restore access; requesting again is pointless.
	PermissionPermanentlyDenied PermissionStatus = "permanently_denied"
	// PermissionRestricted means an external policy blocks capture.
	PermissionRestricted PermissionStatus = "restricted"
)

// Checker reports connection and microphone preconditions.
type Checker interface {
	HasConnection(ctx context.Context) bool
	MicrophonePermission(ctx context.Context) PermissionStatus
	RequestMicrophonePermission(ctx context.Context) PermissionStatus
}

// MicrophoneProbe attempts to open a capture device to learn the current
// permission state. Opening the device is what triggers the OS prompt on
// platforms that have one, so a probe doubles as a permission request.
type MicrophoneProbe interface {
	Probe(ctx context.Context) PermissionStatus
}
