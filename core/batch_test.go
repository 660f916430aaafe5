package coordination

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ljubanic/parley-core/core/speechtotext"
)

func TestBatchEmptyBufferFailsWithoutRecognizerCall(t *testing.T) {
	stub := &recognizerStub{}
	transcriber := NewBatchTranscriber(stub)

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", nil, "en")
	if fragment != nil {
		t.Fatalf("expected no fragment, got %+v", fragment)
	}
	if failure == nil || failure.FailureKind != FailureSpeechRecognition {
		t.Fatalf("expected a speech recognition failure, got %+v", failure)
	}
	if failure.Message != "audio data is empty" {
		t.Fatalf("unexpected failure message: %q", failure.Message)
	}
	if stub.transcribeCalls != 0 {
		t.Fatal("an empty buffer must not reach the recognizer")
	}
}

func TestBatchUninitializedRecognizerFailsWithoutRecognizerCall(t *testing.T) {
	stub := &recognizerStub{initFails: true}
	transcriber := NewBatchTranscriber(stub)

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", []byte{1}, "en")
	if fragment != nil {
		t.Fatalf("expected no fragment, got %+v", fragment)
	}
	if failure == nil || failure.FailureKind != FailureSpeechRecognition {
		t.Fatalf("expected a speech recognition failure, got %+v", failure)
	}
	if failure.Message != "recognizer failed to initialize" {
		t.Fatalf("unexpected failure message: %q", failure.Message)
	}
	if stub.transcribeCalls != 0 {
		t.Fatal("an uninitialized recognizer must not be asked to transcribe")
	}
}

func TestBatchPicksHighestConfidenceCandidate(t *testing.T) {
	stub := &recognizerStub{
		transcribe: func(context.Context, []byte, string) ([]speechtotext.Candidate, error) {
			return []speechtotext.Candidate{
				{Transcript: "their", Confidence: 0.72},
				{Transcript: "there", Confidence: 0.91},
				{Transcript: "they're", Confidence: 0.84},
			}, nil
		},
	}
	transcriber := NewBatchTranscriber(stub)

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", []byte{1, 2}, "en")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if fragment.Text != "there" {
		t.Fatalf("expected the highest-confidence candidate, got %q", fragment.Text)
	}
	if !fragment.IsFinal {
		t.Fatal("batch results are always final")
	}
	if fragment.SessionID != "session-1" || fragment.LanguageCode != "en" {
		t.Fatalf("fragment carries wrong metadata: %+v", fragment)
	}
}

func TestBatchConfidenceTieKeepsFirstCandidate(t *testing.T) {
	stub := &recognizerStub{
		transcribe: func(context.Context, []byte, string) ([]speechtotext.Candidate, error) {
			return []speechtotext.Candidate{
				{Transcript: "first", Confidence: 0.8},
				{Transcript: "second", Confidence: 0.8},
			}, nil
		},
	}
	transcriber := NewBatchTranscriber(stub)

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", []byte{1}, "en")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if fragment.Text != "first" {
		t.Fatalf("expected the first-seen candidate on a tie, got %q", fragment.Text)
	}
}

func TestBatchRetriesLinearlyThenSucceeds(t *testing.T) {
	calls := 0
	stub := &recognizerStub{
		transcribe: func(context.Context, []byte, string) ([]speechtotext.Candidate, error) {
			calls++
			if calls < 3 {
				return nil, errors.New("temporarily unavailable")
			}
			return []speechtotext.Candidate{{Transcript: "made it", Confidence: 0.9}}, nil
		},
	}

	transcriber := NewBatchTranscriber(stub,
		WithExtraAttempts(2),
		WithRetryDelay(10*time.Millisecond),
	)
	sleep, recordedDelays := instantSleep()
	transcriber.sleep = sleep

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", []byte{1}, "en")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if fragment.Text != "made it" {
		t.Fatalf("unexpected transcript: %q", fragment.Text)
	}

	delays := recordedDelays()
	if len(delays) != 2 {
		t.Fatalf("expected two retry sleeps, got %v", delays)
	}
	if delays[0] != 10*time.Millisecond || delays[1] != 20*time.Millisecond {
		t.Fatalf("expected linearly growing delays [10ms 20ms], got %v", delays)
	}
}

func TestBatchGivesUpAfterAllAttempts(t *testing.T) {
	stub := &recognizerStub{
		transcribe: func(context.Context, []byte, string) ([]speechtotext.Candidate, error) {
			return nil, errors.New("service down")
		},
	}

	transcriber := NewBatchTranscriber(stub, WithExtraAttempts(2))
	sleep, _ := instantSleep()
	transcriber.sleep = sleep

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", []byte{1}, "en")
	if fragment != nil {
		t.Fatalf("expected no fragment, got %+v", fragment)
	}
	if failure == nil || failure.FailureKind != FailureSpeechRecognition {
		t.Fatalf("expected a speech recognition failure, got %+v", failure)
	}
	if stub.transcribeCalls != 3 {
		t.Fatalf("expected 3 attempts, got %d", stub.transcribeCalls)
	}
}

func TestBatchNoCandidatesIsAFailure(t *testing.T) {
	stub := &recognizerStub{
		transcribe: func(context.Context, []byte, string) ([]speechtotext.Candidate, error) {
			return nil, nil
		},
	}

	transcriber := NewBatchTranscriber(stub, WithExtraAttempts(0))

	fragment, failure := transcriber.Transcribe(context.Background(), "session-1", []byte{1}, "en")
	if fragment != nil {
		t.Fatalf("expected no fragment, got %+v", fragment)
	}
	if failure == nil || failure.Message != "no transcription candidates returned" {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}
