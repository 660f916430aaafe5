package coordination

import (
	"time"

	"github.com/google/uuid"
)

// TranscriptFragment is one unit of recognized speech. A non-final fragment
// is a live partial that later fragments with the same ID replace; a final
// fragment is committed and immutable.
type TranscriptFragment struct {
	ID           string
	SessionID    string
	Text         string
	LanguageCode string
	Timestamp    time.Time
	IsFinal      bool
}

func newFragmentID() string { return uuid.NewString() }

func newTranscriptFragment(id, sessionID, text, languageCode string, isFinal bool) TranscriptFragment {
	return TranscriptFragment{
		ID:           id,
		SessionID:    sessionID,
		Text:         text,
		LanguageCode: languageCode,
		Timestamp:    time.Now(),
		IsFinal:      isFinal,
	}
}

// TranslationResult is one final fragment rendered into one target language.
// Immutable once created.
type TranslationResult struct {
	ID             string
	SessionID      string
	SourceLanguage string
	TargetLanguage string
	SourceText     string
	TargetText     string
	Timestamp      time.Time
}

func newTranslationResult(sessionID, sourceLanguage, targetLanguage, sourceText, targetText string) TranslationResult {
	return TranslationResult{
		ID:             uuid.NewString(),
		SessionID:      sessionID,
		SourceLanguage: sourceLanguage,
		TargetLanguage: targetLanguage,
		SourceText:     sourceText,
		TargetText:     targetText,
		Timestamp:      time.Now(),
	}
}
