package coordination

import (
	"context"
	"fmt"

	"github.com/ljubanic/parley-core/core/store"
)

// PersistenceSync appends finalized results to the durable store. It is a
// durability add-on, never a gate: write failures are logged and reported,
// and the live pipeline carries on regardless.
type PersistenceSync struct {
	recordStore store.Store
}

func NewPersistenceSync(recordStore store.Store) *PersistenceSync {
	return &PersistenceSync{recordStore: recordStore}
}

// SaveFragment appends one final transcript fragment. Non-final fragments
// are never persisted.
func (p *PersistenceSync) SaveFragment(ctx context.Context, fragment TranscriptFragment) error {
	if !fragment.IsFinal {
		return nil
	}

	err := p.recordStore.Save(ctx, store.Record{
		ID:             fragment.ID,
		SessionID:      fragment.SessionID,
		Kind:           store.KindTranscript,
		Text:           fragment.Text,
		SourceLanguage: fragment.LanguageCode,
		Timestamp:      fragment.Timestamp,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to persist transcript fragment",
			"session", fragment.SessionID, "fragment", fragment.ID, "error", err)
		return NewServerFailure(fmt.Sprintf("failed to persist transcript: %v", err))
	}
	return nil
}

// SaveTranslation appends one translation result.
func (p *PersistenceSync) SaveTranslation(ctx context.Context, result TranslationResult) error {
	err := p.recordStore.Save(ctx, store.Record{
		ID:             result.ID,
		SessionID:      result.SessionID,
		Kind:           store.KindTranslation,
		Text:           result.TargetText,
		SourceText:     result.SourceText,
		SourceLanguage: result.SourceLanguage,
		TargetLanguage: result.TargetLanguage,
		Timestamp:      result.Timestamp,
	})
	if err != nil {
		logger.WarnContext(ctx, "failed to persist translation",
			"session", result.SessionID, "translation", result.ID, "error", err)
		return NewServerFailure(fmt.Sprintf("failed to persist translation: %v", err))
	}
	return nil
}

// History returns every persisted record for the session in chronological
// order.
func (p *PersistenceSync) History(ctx context.Context, sessionID string) ([]store.Record, error) {
	return p.recordStore.GetAll(ctx, sessionID)
}

// Recent returns the newest limit records in chronological order.
func (p *PersistenceSync) Recent(ctx context.Context, sessionID string, limit int) ([]store.Record, error) {
	return p.recordStore.GetRecent(ctx, sessionID, limit)
}

// Subscribe follows new records for the session until cancel is called or
// ctx ends.
func (p *PersistenceSync) Subscribe(ctx context.Context, sessionID string) (<-chan store.Record, func()) {
	return p.recordStore.Subscribe(ctx, sessionID)
}
