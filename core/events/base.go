package events

import "time"

type Kind string

type Event interface {
	Kind() Kind
	Timestamp() time.Time
	SessionID() string
}

type Base struct {
	kind      Kind
	sessionID string
	timestamp time.Time
}

// BaseOption rebases parts of an event's envelope, e.g. to preserve the
// original timestamp when an event is decoded off the wire.
type BaseOption func(*Base)

func WithTimestamp(timestamp time.Time) BaseOption {
	return func(b *Base) {
		b.timestamp = timestamp
	}
}

func NewBase(kind Kind, sessionID string, opts ...BaseOption) Base {
	base := Base{kind: kind, sessionID: sessionID, timestamp: time.Now()}
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

func (b Base) Kind() Kind {
	return b.kind
}

func (b Base) SessionID() string {
	return b.sessionID
}

func (b Base) Timestamp() time.Time {
	return b.timestamp
}
