package events

const (
	// KindTranscript identifies transcript text, partial or final.
	KindTranscript Kind = "session.transcript"
	// KindTranslation identifies translated text for one target language.
	KindTranslation Kind = "session.translation"
	// KindAudienceCount identifies a recomputed audience membership snapshot.
	KindAudienceCount Kind = "session.audience_count"
	// KindError identifies a terminal session failure message.
	KindError Kind = "session.error"
)

// TranscriptEvent carries recognized speech text for the session's speaker.
type TranscriptEvent struct {
	Base
	Text    string
	IsFinal bool
}

// NewTranscriptEvent creates a transcript event.
func NewTranscriptEvent(sessionID, text string, isFinal bool, opts ...BaseOption) TranscriptEvent {
	return TranscriptEvent{Base: NewBase(KindTranscript, sessionID, opts...), Text: text, IsFinal: isFinal}
}

// TranslationEvent carries a final transcript rendered into one target language.
type TranslationEvent struct {
	Base
	TargetLanguage string
	Text           string
}

// NewTranslationEvent creates a translation event.
func NewTranslationEvent(sessionID, targetLanguage, text string, opts ...BaseOption) TranslationEvent {
	return TranslationEvent{Base: NewBase(KindTranslation, sessionID, opts...), TargetLanguage: targetLanguage, Text: text}
}

// AudienceCountEvent carries the full audience snapshot for a session.
type AudienceCountEvent struct {
	Base
	Count                int
	LanguageDistribution map[string]int
}

// NewAudienceCountEvent creates an audience snapshot event.
func NewAudienceCountEvent(sessionID string, count int, languageDistribution map[string]int, opts ...BaseOption) AudienceCountEvent {
	return AudienceCountEvent{
		Base:                 NewBase(KindAudienceCount, sessionID, opts...),
		Count:                count,
		LanguageDistribution: languageDistribution,
	}
}

// ErrorEvent carries a terminal failure message for a session.
type ErrorEvent struct {
	Base
	Message string
}

// NewErrorEvent creates an error event.
func NewErrorEvent(sessionID, message string, opts ...BaseOption) ErrorEvent {
	return ErrorEvent{Base: NewBase(KindError, sessionID, opts...), Message: message}
}
