// Package probe implements connectivity.Checker with a TCP dial probe and a
// pluggable microphone probe.
package probe

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/ljubanic/parley-core/core/connectivity"
)

const (
	defaultProbeAddr    = "1.1.1.1:443"
	defaultProbeTimeout = 2 * time.Second
)

type Checker struct {
	probeAddr    string
	probeTimeout time.Duration
	microphone   connectivity.MicrophoneProbe

	mu         sync.Mutex
	lastStatus connectivity.PermissionStatus
}

type CheckerOption func(*Checker)

func WithProbeAddr(addr string) CheckerOption {
	return func(c *Checker) {
		c.probeAddr = addr
	}
}

func WithProbeTimeout(timeout time.Duration) CheckerOption {
	return func(c *Checker) {
		c.probeTimeout = timeout
	}
}

func NewChecker(microphone connectivity.MicrophoneProbe, opts ...CheckerOption) *Checker {
	checker := &Checker{
		probeAddr:    defaultProbeAddr,
		probeTimeout: defaultProbeTimeout,
		microphone:   microphone,
		lastStatus:   connectivity.PermissionUndecided,
	}
	for _, opt := range opts {
		opt(checker)
	}
	return checker
}

func (c *Checker) HasConnection(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: c.probeTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", c.probeAddr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// MicrophonePermission returns the last known state without opening the
// device again. Before the first request it reports undecided.
func (c *Checker) MicrophonePermission(_ context.Context) connectivity.PermissionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastStatus
}

// RequestMicrophonePermission opens the capture device once, which raises the
// OS prompt where one exists, and caches the outcome.
func (c *Checker) RequestMicrophonePermission(ctx context.Context) connectivity.PermissionStatus {
	status := connectivity.PermissionRestricted
	if c.microphone != nil {
		status = c.microphone.Probe(ctx)
	}

	c.mu.Lock()
	c.lastStatus = status
	c.mu.Unlock()
	return status
}
