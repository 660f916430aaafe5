package transport

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ljubanic/parley-core/core/events"
)

type wireEvent struct {
	Kind      string    `json:"kind"`
	SessionID string    `json:"sessionId"`
	Timestamp time.Time `json:"timestamp"`

	Text                 string         `json:"text,omitempty"`
	IsFinal              bool           `json:"isFinal,omitempty"`
	TargetLanguage       string         `json:"targetLanguage,omitempty"`
	Count                int            `json:"count,omitempty"`
	LanguageDistribution map[string]int `json:"languageDistribution,omitempty"`
	Message              string         `json:"message,omitempty"`
}

// Encode serializes an event for the wire.
func Encode(event events.Event) ([]byte, error) {
	wire := wireEvent{
		Kind:      string(event.Kind()),
		SessionID: event.SessionID(),
		Timestamp: event.Timestamp(),
	}

	switch typedEvent := event.(type) {
	case events.TranscriptEvent:
		wire.Text = typedEvent.Text
		wire.IsFinal = typedEvent.IsFinal
	case events.TranslationEvent:
		wire.Text = typedEvent.Text
		wire.TargetLanguage = typedEvent.TargetLanguage
	case events.AudienceCountEvent:
		wire.Count = typedEvent.Count
		wire.LanguageDistribution = typedEvent.LanguageDistribution
	case events.ErrorEvent:
		wire.Message = typedEvent.Message
	default:
		return nil, fmt.Errorf("unknown event type %T", event)
	}

	return json.Marshal(wire)
}

// Decode reconstructs an event from its wire form, keeping the original
// timestamp.
func Decode(data []byte) (events.Event, error) {
	var wire wireEvent
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	rebase := events.WithTimestamp(wire.Timestamp)
	switch events.Kind(wire.Kind) {
	case events.KindTranscript:
		return events.NewTranscriptEvent(wire.SessionID, wire.Text, wire.IsFinal, rebase), nil
	case events.KindTranslation:
		return events.NewTranslationEvent(wire.SessionID, wire.TargetLanguage, wire.Text, rebase), nil
	case events.KindAudienceCount:
		return events.NewAudienceCountEvent(wire.SessionID, wire.Count, wire.LanguageDistribution, rebase), nil
	case events.KindError:
		return events.NewErrorEvent(wire.SessionID, wire.Message, rebase), nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", wire.Kind)
	}
}
