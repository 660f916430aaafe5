// Package store defines the durable append-only record store the
// coordination core writes final transcripts and translations to.
package store

import (
	"context"
	"time"
)

type Kind string

const (
	KindTranscript  Kind = "transcript"
	KindTranslation Kind = "translation"
)

// Record is one persisted transcript or translation. Records are immutable
// once saved.
type Record struct {
	ID        string
	SessionID string
	Kind      Kind

	Text           string
	SourceText     string
	SourceLanguage string
	TargetLanguage string

	Timestamp time.Time
}

// Store is an append-only record store keyed by session id.
//
// GetAll and GetRecent return records in chronological order regardless of
// the store's native ordering. Subscribe delivers every record saved after
// the subscription was opened; the returned cancel func ends the
// subscription and closes the channel.
type Store interface {
	Save(ctx context.Context, record Record) error
	GetAll(ctx context.Context, sessionID string) ([]Record, error)
	GetRecent(ctx context.Context, sessionID string, limit int) ([]Record, error)
	Subscribe(ctx context.Context, sessionID string) (<-chan Record, func())
}
