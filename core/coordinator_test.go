package coordination

import (
	"context"
	"testing"
	"time"

	"github.com/ljubanic/parley-core/core/events"
	"github.com/ljubanic/parley-core/core/speechtotext"
	"github.com/ljubanic/parley-core/core/store"
)

type translatorStub struct{}

func (translatorStub) Translate(_ context.Context, text, _, targetLanguage string) (string, error) {
	return "[" + targetLanguage + "] " + text, nil
}

func newTestCoordinator(stub *recognizerStub, checker *checkerStub, opts ...CoordinatorOption) *Coordinator {
	session := Session{Code: "s1", Role: RoleSpeaker, LanguageCode: "en"}
	base := []CoordinatorOption{
		WithRecognizerFactory(singleStubFactory(stub)),
		WithConnectivityChecker(checker),
		WithCountdownSeconds(1),
		WithCountdownInterval(time.Millisecond),
	}
	return NewCoordinator(session, append(base, opts...)...)
}

func waitForStatus(t *testing.T, sub *Subscription[StatusSnapshot], want Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snapshot, ok := <-sub.Updates():
			if !ok {
				t.Fatalf("status channel closed while waiting for %s", want)
			}
			if snapshot.Status == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %s", want)
		}
	}
}

func TestCoordinatorGoLiveFlow(t *testing.T) {
	stub := &recognizerStub{}
	coordinator := newTestCoordinator(stub, newCheckerStub(), WithTranslator(translatorStub{}))
	defer coordinator.Close()

	statusSub := coordinator.SubscribeStatus()
	defer statusSub.Cancel()

	listener := &sinkStub{}
	coordinator.Join("a-es", Session{Code: "s1", Role: RoleAudience, LanguageCode: "es"}, listener)

	if err := coordinator.GoLive(context.Background()); err != nil {
		t.Fatalf("failed to go live: %v", err)
	}

	waitForStatus(t, statusSub, StatusCountdown)
	waitForStatus(t, statusSub, StatusListening)

	stub.emitPartial("hell")
	stub.emitFinal("hello world", 0.95)

	waitForStatus(t, statusSub, StatusTranslating)
	waitForStatus(t, statusSub, StatusBuffering)
	waitForStatus(t, statusSub, StatusSpeaking)
	waitForStatus(t, statusSub, StatusListening)

	waitFor(t, func() bool {
		for _, event := range listener.received() {
			if translation, ok := event.(events.TranslationEvent); ok {
				return translation.TargetLanguage == "es" && translation.Text == "[es] hello world"
			}
		}
		return false
	}, "listener never received the translation")

	// Transcript and translation both end up persisted; the writes are
	// asynchronous so poll.
	waitFor(t, func() bool {
		records, err := coordinator.History(context.Background())
		return err == nil && len(records) == 2
	}, "expected transcript and translation in history")

	records, err := coordinator.History(context.Background())
	if err != nil {
		t.Fatalf("failed to read history: %v", err)
	}
	kinds := map[store.Kind]bool{}
	for _, record := range records {
		kinds[record.Kind] = true
	}
	if !kinds[store.KindTranscript] || !kinds[store.KindTranslation] {
		t.Fatalf("expected one transcript and one translation, got %+v", records)
	}

	coordinator.Stop()
	waitForStatus(t, statusSub, StatusIdle)
}

func TestCoordinatorGoLiveIsSpeakerOnly(t *testing.T) {
	coordinator := NewCoordinator(Session{Code: "s1", Role: RoleAudience, LanguageCode: "es"},
		WithRecognizerFactory(singleStubFactory(&recognizerStub{})),
		WithConnectivityChecker(newCheckerStub()),
	)
	defer coordinator.Close()

	if err := coordinator.GoLive(context.Background()); err == nil {
		t.Fatal("audience members must not go live")
	}
	if coordinator.Status() != StatusIdle {
		t.Fatalf("status must stay idle, got %s", coordinator.Status())
	}
}

func TestCoordinatorGoLiveRequiresIdle(t *testing.T) {
	stub := &recognizerStub{}
	coordinator := newTestCoordinator(stub, newCheckerStub())
	defer coordinator.Close()

	statusSub := coordinator.SubscribeStatus()
	defer statusSub.Cancel()

	if err := coordinator.GoLive(context.Background()); err != nil {
		t.Fatalf("failed to go live: %v", err)
	}
	waitForStatus(t, statusSub, StatusListening)

	if err := coordinator.GoLive(context.Background()); err == nil {
		t.Fatal("a second go-live must be rejected while the session is active")
	}
}

func TestCoordinatorGoLiveWithoutConnection(t *testing.T) {
	checker := newCheckerStub()
	checker.setConnected(false)

	coordinator := newTestCoordinator(&recognizerStub{}, checker)
	defer coordinator.Close()

	listener := &sinkStub{}
	coordinator.Join("a-es", Session{Code: "s1", Role: RoleAudience, LanguageCode: "es"}, listener)

	err := coordinator.GoLive(context.Background())
	failure, ok := AsFailure(err)
	if !ok || failure.FailureKind != FailureNetwork {
		t.Fatalf("expected a network failure, got %v", err)
	}
	if coordinator.Status() != StatusError {
		t.Fatalf("expected the error status, got %s", coordinator.Status())
	}

	waitFor(t, func() bool {
		for _, event := range listener.received() {
			if _, ok := event.(events.ErrorEvent); ok {
				return true
			}
		}
		return false
	}, "listener never received the failure notice")
}

func TestCoordinatorTerminalStreamFailureReachesParticipants(t *testing.T) {
	checker := newCheckerStub()
	stub := &recognizerStub{}
	coordinator := newTestCoordinator(stub, checker,
		WithStreamBackoffPolicy(BackoffPolicy{
			BaseDelay:  time.Millisecond,
			MaxDelay:   time.Millisecond,
			MaxRetries: 0,
		}),
	)
	defer coordinator.Close()

	statusSub := coordinator.SubscribeStatus()
	defer statusSub.Cancel()

	listener := &sinkStub{}
	coordinator.Join("a-es", Session{Code: "s1", Role: RoleAudience, LanguageCode: "es"}, listener)

	if err := coordinator.GoLive(context.Background()); err != nil {
		t.Fatalf("failed to go live: %v", err)
	}
	waitForStatus(t, statusSub, StatusListening)

	stub.emitClosed(context.DeadlineExceeded)

	waitForStatus(t, statusSub, StatusError)
	waitFor(t, func() bool {
		for _, event := range listener.received() {
			if _, ok := event.(events.ErrorEvent); ok {
				return true
			}
		}
		return false
	}, "listener never received the failure notice")

	// Stop is the only way out of error.
	coordinator.Stop()
	waitForStatus(t, statusSub, StatusIdle)
}

func TestCoordinatorStopDuringCountdownReturnsToIdle(t *testing.T) {
	stub := &recognizerStub{}
	coordinator := newTestCoordinator(stub, newCheckerStub(),
		WithCountdownSeconds(5),
		WithCountdownInterval(time.Minute),
	)
	defer coordinator.Close()

	statusSub := coordinator.SubscribeStatus()
	defer statusSub.Cancel()

	if err := coordinator.GoLive(context.Background()); err != nil {
		t.Fatalf("failed to go live: %v", err)
	}
	waitForStatus(t, statusSub, StatusCountdown)

	coordinator.Stop()
	waitForStatus(t, statusSub, StatusIdle)

	if _, stops := stub.counts(); stops != 1 {
		t.Fatalf("expected the recognizer to be torn down, got %d stops", stops)
	}
}

func TestCoordinatorPauseAndResume(t *testing.T) {
	stub := &recognizerStub{}
	coordinator := newTestCoordinator(stub, newCheckerStub())
	defer coordinator.Close()

	statusSub := coordinator.SubscribeStatus()
	defer statusSub.Cancel()

	if err := coordinator.GoLive(context.Background()); err != nil {
		t.Fatalf("failed to go live: %v", err)
	}
	waitForStatus(t, statusSub, StatusListening)

	coordinator.Pause()
	waitForStatus(t, statusSub, StatusPaused)

	coordinator.Resume()
	waitForStatus(t, statusSub, StatusListening)

	stub.mu.Lock()
	pauses, resumes := stub.pauseCalls, stub.resumeCalls
	stub.mu.Unlock()
	if pauses != 1 || resumes != 1 {
		t.Fatalf("recognizer not paused/resumed: pause=%d resume=%d", pauses, resumes)
	}
}

func TestCoordinatorNoListenersSkipsTranslation(t *testing.T) {
	stub := &recognizerStub{}
	coordinator := newTestCoordinator(stub, newCheckerStub(), WithTranslator(translatorStub{}))
	defer coordinator.Close()

	statusSub := coordinator.SubscribeStatus()
	defer statusSub.Cancel()

	speakerSink := &sinkStub{}
	coordinator.Join("speaker", Session{Code: "s1", Role: RoleSpeaker, LanguageCode: "en"}, speakerSink)

	if err := coordinator.GoLive(context.Background()); err != nil {
		t.Fatalf("failed to go live: %v", err)
	}
	waitForStatus(t, statusSub, StatusListening)

	stub.emitFinal("talking to myself", 0.9)

	// The status still walks the full leg and comes back to listening.
	waitForStatus(t, statusSub, StatusTranslating)
	waitForStatus(t, statusSub, StatusListening)

	waitFor(t, func() bool {
		for _, event := range speakerSink.received() {
			if transcript, ok := event.(events.TranscriptEvent); ok {
				return transcript.Text == "talking to myself" && transcript.IsFinal
			}
		}
		return false
	}, "speaker never received the transcript")

	for _, event := range speakerSink.received() {
		if _, ok := event.(events.TranslationEvent); ok {
			t.Fatal("no translation should be produced without listeners")
		}
	}
}

func TestCoordinatorBatchTranscription(t *testing.T) {
	stub := &recognizerStub{
		transcribe: func(context.Context, []byte, string) ([]speechtotext.Candidate, error) {
			return []speechtotext.Candidate{{Transcript: "from the recording", Confidence: 0.9}}, nil
		},
	}
	coordinator := newTestCoordinator(stub, newCheckerStub())
	defer coordinator.Close()

	speakerSink := &sinkStub{}
	coordinator.Join("speaker", Session{Code: "s1", Role: RoleSpeaker, LanguageCode: "en"}, speakerSink)

	fragment, failure := coordinator.TranscribeAudio(context.Background(), []byte{1, 2, 3}, "en")
	if failure != nil {
		t.Fatalf("unexpected failure: %v", failure)
	}
	if fragment.Text != "from the recording" || !fragment.IsFinal {
		t.Fatalf("unexpected fragment: %+v", fragment)
	}

	waitFor(t, func() bool {
		for _, event := range speakerSink.received() {
			if transcript, ok := event.(events.TranscriptEvent); ok {
				return transcript.Text == "from the recording"
			}
		}
		return false
	}, "speaker never received the batch transcript")

	waitFor(t, func() bool {
		records, err := coordinator.History(context.Background())
		return err == nil && len(records) == 1
	}, "expected the batch fragment in history")
}
