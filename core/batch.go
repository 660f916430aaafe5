package coordination

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ljubanic/parley-core/core/speechtotext"
)

// BatchTranscriber transcribes one complete, already-captured audio buffer.
// This path is bounded and short-lived: it retries a fixed small number of
// times with linearly growing delays, independent of the stream handler's
// exponential backoff.
type BatchTranscriber struct {
	recognizer Recognizer

	extraAttempts int
	retryDelay    time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
}

type BatchTranscriberOption func(*BatchTranscriber)

func WithExtraAttempts(extraAttempts int) BatchTranscriberOption {
	return func(b *BatchTranscriber) {
		b.extraAttempts = extraAttempts
	}
}

func WithRetryDelay(delay time.Duration) BatchTranscriberOption {
	return func(b *BatchTranscriber) {
		b.retryDelay = delay
	}
}

func NewBatchTranscriber(recognizer Recognizer, opts ...BatchTranscriberOption) *BatchTranscriber {
	transcriber := &BatchTranscriber{
		recognizer:    recognizer,
		extraAttempts: 2,
		retryDelay:    500 * time.Millisecond,
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(transcriber)
	}
	return transcriber
}

// Transcribe recognizes the buffer and returns the highest-confidence
// candidate as a final fragment. Ties keep the first-seen candidate. Empty
// buffers fail immediately without touching the network.
func (b *BatchTranscriber) Transcribe(ctx context.Context, sessionID string, audio []byte, languageCode string) (*TranscriptFragment, *Failure) {
	ctx, span := tracer.Start(ctx, "transcribe audio buffer")
	defer span.End()
	span.SetAttributes(attribute.Int("request.audio_bytes", len(audio)))

	if len(audio) == 0 {
		failure := NewSpeechRecognitionFailure("audio data is empty")
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	if !b.recognizer.Init() {
		failure := NewSpeechRecognitionFailure("recognizer failed to initialize")
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	var lastErr error
	for attempt := 0; attempt <= b.extraAttempts; attempt++ {
		if attempt > 0 {
			if err := b.sleep(ctx, time.Duration(attempt)*b.retryDelay); err != nil {
				return nil, NewSpeechRecognitionFailure(err.Error())
			}
		}

		candidates, err := b.recognizer.TranscribeAudio(ctx, audio, languageCode)
		if err != nil {
			lastErr = err
			continue
		}
		if len(candidates) == 0 {
			lastErr = nil
			continue
		}

		best := pickBestCandidate(candidates)
		fragment := newTranscriptFragment(newFragmentID(), sessionID, best.Transcript, languageCode, true)
		return &fragment, nil
	}

	if lastErr != nil {
		failure := NewSpeechRecognitionFailure(lastErr.Error())
		span.RecordError(lastErr)
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}
	failure := NewSpeechRecognitionFailure("no transcription candidates returned")
	span.SetStatus(codes.Error, failure.Error())
	return nil, failure
}

func pickBestCandidate(candidates []speechtotext.Candidate) speechtotext.Candidate {
	best := candidates[0]
	for _, candidate := range candidates[1:] {
		if candidate.Confidence > best.Confidence {
			best = candidate
		}
	}
	return best
}
