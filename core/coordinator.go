package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ljubanic/parley-core/core/connectivity"
	"github.com/ljubanic/parley-core/core/store"
	"github.com/ljubanic/parley-core/core/store/memory"
	"github.com/ljubanic/parley-core/core/translation"
	"github.com/ljubanic/parley-core/core/transport"
)

// Coordinator runs one live interpretation session end to end: it owns the
// stream handler, the status machine, the distribution layer and the
// persistence writer, and exposes the imperative session surface
// (go-live/pause/resume/stop/join/leave) to callers.
type Coordinator struct {
	session Session

	status      *StatusMachine
	streams     *StreamHandler
	distributor *Distributor
	persistence *PersistenceSync

	translator    translation.Translator
	checker       connectivity.Checker
	newRecognizer RecognizerFactory
	recordStore   store.Store
	socket        transport.Socket

	streamOpts        []StreamHandlerOption
	countdownSeconds  int
	countdownInterval time.Duration

	closeOnce   sync.Once
	baseContext context.Context

	mu              sync.Mutex
	subscription    *Subscription[StreamResult]
	countdownCancel context.CancelFunc
}

func NewCoordinator(session Session, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		session:           session,
		status:            NewStatusMachine(),
		distributor:       NewDistributor(),
		countdownSeconds:  3,
		countdownInterval: time.Second,
		baseContext:       context.Background(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.recordStore == nil {
		c.recordStore = memory.NewStore()
	}
	c.persistence = NewPersistenceSync(c.recordStore)

	if c.checker != nil && c.newRecognizer != nil {
		c.streams = NewStreamHandler(c.newRecognizer, c.checker, c.streamOpts...)
	}

	return c
}

// Status returns the current session status.
func (c *Coordinator) Status() Status { return c.status.Status() }

// SubscribeStatus attaches a status observer; the current snapshot is
// delivered first.
func (c *Coordinator) SubscribeStatus() *Subscription[StatusSnapshot] {
	return c.status.Subscribe()
}

// GoLive starts the speaker's lead-in countdown and the recognition stream.
// The status reaches listening once the countdown hits zero with a
// confirmed live stream.
func (c *Coordinator) GoLive(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "go live")
	defer span.End()

	if c.session.Role != RoleSpeaker {
		return fmt.Errorf("only the speaker can go live")
	}
	if c.streams == nil {
		return fmt.Errorf("no recognizer or connectivity checker configured")
	}

	if c.status.Status() != StatusIdle || c.status.Apply(EventGoLive) != StatusCountdown {
		return fmt.Errorf("session is not idle")
	}
	c.baseContext = ctx

	subscription, err := c.streams.Start(ctx, c.session.Code, c.session.LanguageCode)
	if err != nil {
		c.status.Apply(EventStreamFailed)
		c.distributor.PublishError(c.session.Code, err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	countdownCtx, cancelCountdown := context.WithCancel(context.WithoutCancel(ctx))

	c.mu.Lock()
	c.subscription = subscription
	c.countdownCancel = cancelCountdown
	c.mu.Unlock()

	if c.socket != nil {
		if err := c.socket.Connect(ctx, c.session.Code); err != nil {
			logger.WarnContext(ctx, "failed to connect relay socket, continuing local-only",
				"session", c.session.Code, "error", err)
		} else {
			c.distributor.JoinMirror(c.session.Code, "relay", c.socket)
		}
	}

	go c.runCountdown(countdownCtx)
	go c.consumeResults(ctx, subscription)

	return nil
}

func (c *Coordinator) runCountdown(ctx context.Context) {
	for remaining := c.countdownSeconds; remaining > 0; remaining-- {
		c.status.SetCountdownRemaining(remaining)
		if err := sleepContext(ctx, c.countdownInterval); err != nil {
			return
		}
	}
	c.status.SetCountdownRemaining(0)

	// The counter reaching zero is not enough; the stream has to be
	// confirmed live before the session starts listening.
	for !c.streams.IsStreaming(c.session.Code) {
		if c.status.Status() != StatusCountdown {
			return
		}
		if err := sleepContext(ctx, c.countdownInterval/10); err != nil {
			return
		}
	}
	c.status.Apply(EventCountdownFinished)
}

func (c *Coordinator) consumeResults(ctx context.Context, subscription *Subscription[StreamResult]) {
	for result := range subscription.Updates() {
		switch {
		case result.Err != nil:
			c.status.Apply(EventStreamFailed)
			c.distributor.PublishError(c.session.Code, result.Err.Message)
			return
		case result.Fragment == nil:
		case result.Fragment.IsFinal:
			c.distributor.PublishTranscript(*result.Fragment)
			c.status.Apply(EventFinalTranscript)
			c.translateAndDistribute(ctx, *result.Fragment)
		default:
			c.distributor.PublishTranscript(*result.Fragment)
			c.status.Apply(EventSpeechDetected)
		}
	}
}

// translateAndDistribute renders one final fragment into every listener
// language, persists everything, and walks the status through the
// translating/buffering/speaking leg. Persistence failures are logged by
// the writer and never stall the live path.
func (c *Coordinator) translateAndDistribute(ctx context.Context, fragment TranscriptFragment) {
	ctx, span := tracer.Start(ctx, "translate and distribute fragment")
	defer span.End()

	go c.persistence.SaveFragment(context.WithoutCancel(ctx), fragment)

	targets := c.distributor.ListenerLanguages(c.session.Code)
	if len(targets) == 0 || c.translator == nil {
		c.status.Apply(EventTranslationPending)
		c.status.Apply(EventTranslationReady)
		c.status.Apply(EventPlaybackFinished)
		return
	}

	c.status.Apply(EventTranslationPending)

	translations, failures := translation.All(ctx, c.translator, fragment.Text, fragment.LanguageCode, targets)
	for targetLanguage, err := range failures {
		logger.WarnContext(ctx, "translation target failed",
			"session", c.session.Code, "target_language", targetLanguage, "error", err)
		span.RecordError(err)
	}

	c.status.Apply(EventTranslationReady)

	for targetLanguage, translated := range translations {
		result := newTranslationResult(c.session.Code, fragment.LanguageCode, targetLanguage, fragment.Text, translated)
		c.distributor.PublishTranslation(result)
		go c.persistence.SaveTranslation(context.WithoutCancel(ctx), result)
	}

	c.status.Apply(EventPlaybackFinished)
}

// SendAudio forwards captured audio to the live recognition stream.
func (c *Coordinator) SendAudio(audio []byte) error {
	if c.streams == nil {
		return fmt.Errorf("no recognizer configured")
	}
	return c.streams.SendAudio(c.session.Code, audio)
}

// TranscribeAudio runs the one-shot batch path for an already-captured
// buffer and feeds the result through distribution and persistence like any
// live final fragment.
func (c *Coordinator) TranscribeAudio(ctx context.Context, audio []byte, languageCode string) (*TranscriptFragment, *Failure) {
	if c.newRecognizer == nil {
		return nil, NewServerFailure("no recognizer configured")
	}

	transcriber := NewBatchTranscriber(c.newRecognizer())
	fragment, failure := transcriber.Transcribe(ctx, c.session.Code, audio, languageCode)
	if failure != nil {
		return nil, failure
	}

	c.distributor.PublishTranscript(*fragment)
	go c.persistence.SaveFragment(context.WithoutCancel(ctx), *fragment)
	return fragment, nil
}

// Pause pauses the recognizer and the session status. The stream and its
// delivery channel stay open.
func (c *Coordinator) Pause() {
	if c.streams != nil {
		if err := c.streams.Pause(c.session.Code); err != nil {
			logger.Warn("failed to pause recognizer", "session", c.session.Code, "error", err)
		}
	}
	c.status.Apply(EventPause)
}

// Resume returns the recognizer and the status to their pre-pause state.
func (c *Coordinator) Resume() {
	if c.streams != nil {
		if err := c.streams.Resume(c.session.Code); err != nil {
			logger.Warn("failed to resume recognizer", "session", c.session.Code, "error", err)
		}
	}
	c.status.Apply(EventResume)
}

// Stop ends the session explicitly. This is also the only way out of the
// error status.
func (c *Coordinator) Stop() {
	if c.streams != nil {
		c.streams.Stop(c.session.Code)
	}

	c.mu.Lock()
	subscription := c.subscription
	c.subscription = nil
	cancelCountdown := c.countdownCancel
	c.countdownCancel = nil
	c.mu.Unlock()
	if cancelCountdown != nil {
		cancelCountdown()
	}
	if subscription != nil {
		subscription.Cancel()
	}

	c.status.Apply(EventStop)
}

// Join attaches a participant endpoint (typically an audience member's
// socket) to the session's event feed.
func (c *Coordinator) Join(participantID string, session Session, sink EventSink) {
	c.distributor.Join(c.session.Code, participantID, session, sink)
}

// Leave detaches a participant endpoint.
func (c *Coordinator) Leave(participantID string) {
	c.distributor.Leave(c.session.Code, participantID)
}

// History returns the session's persisted records in chronological order.
func (c *Coordinator) History(ctx context.Context) ([]store.Record, error) {
	return c.persistence.History(ctx, c.session.Code)
}

// SubscribeHistory follows newly persisted records.
func (c *Coordinator) SubscribeHistory(ctx context.Context) (<-chan store.Record, func()) {
	return c.persistence.Subscribe(ctx, c.session.Code)
}

// Close releases every session resource. Idempotent.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.Stop()
		c.distributor.Shutdown(c.session.Code)

		if c.socket != nil {
			if err := c.socket.Disconnect(); err != nil {
				recordedErr := fmt.Errorf("failed to disconnect relay socket: %w", err)
				span := trace.SpanFromContext(c.baseContext)
				span.RecordError(recordedErr)
				span.SetStatus(codes.Error, recordedErr.Error())
			}
		}
	})
}
