package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/ljubanic/parley-core/core/connectivity"
)

type microphoneProbeStub struct {
	status connectivity.PermissionStatus
	calls  int
}

func (m *microphoneProbeStub) Probe(context.Context) connectivity.PermissionStatus {
	m.calls++
	return m.status
}

func TestHasConnectionAgainstLocalListener(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to open local listener: %v", err)
	}
	defer listener.Close()

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	checker := NewChecker(nil, WithProbeAddr(listener.Addr().String()), WithProbeTimeout(time.Second))
	if !checker.HasConnection(context.Background()) {
		t.Fatalf("expected connection to local listener to be detected")
	}
}

func TestHasConnectionReportsFalseWhenUnreachable(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to open local listener: %v", err)
	}
	addr := listener.Addr().String()
	listener.Close()

	checker := NewChecker(nil, WithProbeAddr(addr), WithProbeTimeout(100*time.Millisecond))
	if checker.HasConnection(context.Background()) {
		t.Fatalf("expected closed address to be reported as unreachable")
	}
}

func TestMicrophonePermissionStartsUndecided(t *testing.T) {
	checker := NewChecker(&microphoneProbeStub{status: connectivity.PermissionGranted})

	if got := checker.MicrophonePermission(context.Background()); got != connectivity.PermissionUndecided {
		t.Fatalf("expected undecided before any request, got %q", got)
	}
}

func TestRequestMicrophonePermissionCachesOutcome(t *testing.T) {
	stub := &microphoneProbeStub{status: connectivity.PermissionGranted}
	checker := NewChecker(stub)

	if got := checker.RequestMicrophonePermission(context.Background()); got != connectivity.PermissionGranted {
		t.Fatalf("expected granted from probe, got %q", got)
	}
	if got := checker.MicrophonePermission(context.Background()); got != connectivity.PermissionGranted {
		t.Fatalf("expected cached granted, got %q", got)
	}
	if stub.calls != 1 {
		t.Fatalf("expected exactly one probe, got %d", stub.calls)
	}
}

func TestRequestMicrophonePermissionWithoutProbeIsRestricted(t *testing.T) {
	checker := NewChecker(nil)

	if got := checker.RequestMicrophonePermission(context.Background()); got != connectivity.PermissionRestricted {
		t.Fatalf("expected restricted without a probe backend, got %q", got)
	}
}
