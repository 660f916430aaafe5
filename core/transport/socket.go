// Package transport defines the participant-facing socket contract and the
// wire codec for session events.
package transport

import (
	"context"

	"github.com/ljubanic/parley-core/core/events"
)

// Socket is one participant endpoint's connection to a session. Events
// arrive in the order the distribution layer produced them.
type Socket interface {
	Connect(ctx context.Context, sessionID string) error
	Send(event events.Event) error
	Events() <-chan events.Event
	Disconnect() error
}
