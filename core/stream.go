package coordination

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ljubanic/parley-core/core/connectivity"
	"github.com/ljubanic/parley-core/core/speechtotext"
	"go.opentelemetry.io/otel/codes"
)

// StreamResult is one delivery from a live recognition stream: either a
// fragment or a terminal failure, never both.
type StreamResult struct {
	Fragment *TranscriptFragment
	Err      *Failure
}

// streamState is the lifecycle of one stream instance. stopped and errored
// are terminal; a fresh Start creates a new instance.
type streamState string

const (
	streamStateIdle         streamState = "idle"
	streamStateInitializing streamState = "initializing"
	streamStateStreaming    streamState = "streaming"
	streamStateRecovering   streamState = "recovering"
	streamStateStopped      streamState = "stopped"
	streamStateErrored      streamState = "errored"
)

// activeStream is the runtime record for one session's live stream. Owned
// exclusively by the StreamHandler; the alive flag is the kill switch
// in-flight callbacks consult so late results from a superseded or stopped
// stream are discarded.
type activeStream struct {
	sessionID    string
	languageCode string

	recognizer Recognizer
	results    *broadcaster[StreamResult]

	// alive flips false at the start of teardown, before any resource is
	// released.
	alive   atomic.Bool
	state   streamState
	attempt int

	// pendingFragmentID is the id partials are delivered under until a
	// final fragment closes the slot.
	pendingFragmentID string

	cancel context.CancelFunc
	done   chan struct{}
}

// StreamHandler manages at most one live recognition stream per session id,
// recovering from transient recognizer failures with jittered exponential
// backoff.
type StreamHandler struct {
	newRecognizer RecognizerFactory
	checker       connectivity.Checker
	backoff       BackoffPolicy

	// graceDelay is observed between tearing down a superseded stream and
	// starting its replacement, so the previous recognizer can release
	// exclusive device resources.
	graceDelay      time.Duration
	teardownTimeout time.Duration
	sleep           func(ctx context.Context, d time.Duration) error

	mu      sync.Mutex
	streams map[string]*activeStream
}

type StreamHandlerOption func(*StreamHandler)

func WithBackoffPolicy(policy BackoffPolicy) StreamHandlerOption {
	return func(h *StreamHandler) {
		h.backoff = policy
	}
}

func WithGraceDelay(delay time.Duration) StreamHandlerOption {
	return func(h *StreamHandler) {
		h.graceDelay = delay
	}
}

func WithTeardownTimeout(timeout time.Duration) StreamHandlerOption {
	return func(h *StreamHandler) {
		h.teardownTimeout = timeout
	}
}

func NewStreamHandler(newRecognizer RecognizerFactory, checker connectivity.Checker, opts ...StreamHandlerOption) *StreamHandler {
	handler := &StreamHandler{
		newRecognizer:   newRecognizer,
		checker:         checker,
		backoff:         DefaultBackoffPolicy(),
		graceDelay:      200 * time.Millisecond,
		teardownTimeout: 2 * time.Second,
		sleep:           sleepContext,
		streams:         map[string]*activeStream{},
	}
	for _, opt := range opts {
		opt(handler)
	}
	return handler
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Start opens a live recognition stream for the session and returns a
// subscription to its results. An already active stream for the same
// session id is fully torn down first, then a short grace delay is observed
// before the new stream connects.
//
// Additional observers attach through Subscribe; when the last one detaches
// the stream is torn down automatically.
func (h *StreamHandler) Start(ctx context.Context, sessionID, languageCode string) (*Subscription[StreamResult], error) {
	ctx, span := tracer.Start(ctx, "start recognition stream")
	defer span.End()

	if previous := h.lookup(sessionID); previous != nil {
		h.teardown(previous, streamStateStopped)
		if err := h.sleep(ctx, h.graceDelay); err != nil {
			return nil, err
		}
	}

	if !h.checker.HasConnection(ctx) {
		failure := NewNetworkFailure()
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	if failure := h.ensureMicrophonePermission(ctx); failure != nil {
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	recognizer := h.newRecognizer()
	if !recognizer.Init() {
		failure := NewSpeechRecognitionFailure("recognizer failed to initialize")
		span.SetStatus(codes.Error, failure.Error())
		return nil, failure
	}

	stream := &activeStream{
		sessionID:    sessionID,
		languageCode: languageCode,
		recognizer:   recognizer,
		state:        streamStateInitializing,
		done:         make(chan struct{}),
	}
	stream.alive.Store(true)
	stream.results = newBroadcaster[StreamResult](func() { h.Stop(sessionID) })

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream.cancel = cancel

	h.mu.Lock()
	h.streams[sessionID] = stream
	h.mu.Unlock()

	if err := h.openRecognizerStream(streamCtx, stream); err != nil {
		h.teardown(stream, streamStateErrored)
		err = fmt.Errorf("failed to start recognition stream: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, NewSpeechRecognitionFailure(err.Error())
	}

	return stream.results.Subscribe(), nil
}

// Subscribe attaches another observer to the session's live stream.
func (h *StreamHandler) Subscribe(sessionID string) (*Subscription[StreamResult], error) {
	stream := h.lookup(sessionID)
	if stream == nil {
		return nil, fmt.Errorf("no active stream for session %s", sessionID)
	}
	return stream.results.Subscribe(), nil
}

// IsStreaming reports whether the session currently has a live stream.
func (h *StreamHandler) IsStreaming(sessionID string) bool {
	stream := h.lookup(sessionID)
	if stream == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return stream.state == streamStateStreaming || stream.state == streamStateRecovering
}

// SendAudio forwards one captured audio chunk to the session's recognizer.
func (h *StreamHandler) SendAudio(sessionID string, audio []byte) error {
	stream := h.lookup(sessionID)
	if stream == nil {
		return fmt.Errorf("no active stream for session %s", sessionID)
	}
	return stream.recognizer.SendAudio(audio)
}

// Pause forwards a pause to the recognizer. The delivery channel stays open.
func (h *StreamHandler) Pause(sessionID string) error {
	stream := h.lookup(sessionID)
	if stream == nil {
		return fmt.Errorf("no active stream for session %s", sessionID)
	}
	return stream.recognizer.PauseStreaming()
}

func (h *StreamHandler) Resume(sessionID string) error {
	stream := h.lookup(sessionID)
	if stream == nil {
		return fmt.Errorf("no active stream for session %s", sessionID)
	}
	return stream.recognizer.ResumeStreaming()
}

// Stop tears down the session's stream. Idempotent and safe to call with no
// active stream.
func (h *StreamHandler) Stop(sessionID string) {
	if stream := h.lookup(sessionID); stream != nil {
		h.teardown(stream, streamStateStopped)
	}
}

func (h *StreamHandler) lookup(sessionID string) *activeStream {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.streams[sessionID]
}

func (h *StreamHandler) ensureMicrophonePermission(ctx context.Context) *Failure {
	status := h.checker.MicrophonePermission(ctx)
	switch status {
	case connectivity.PermissionGranted:
		return nil
	case connectivity.PermissionUndecided, connectivity.PermissionDenied:
		if h.checker.RequestMicrophonePermission(ctx) == connectivity.PermissionGranted {
			return nil
		}
		return NewPermissionFailure("microphone access denied")
	case connectivity.PermissionPermanentlyDenied:
		return NewPermissionFailure("microphone access permanently denied, enable it in the system settings")
	default:
		return NewPermissionFailure("microphone access restricted on this device")
	}
}

func (h *StreamHandler) openRecognizerStream(ctx context.Context, stream *activeStream) error {
	err := stream.recognizer.StartStreaming(ctx,
		speechtotext.WithLanguage(stream.languageCode),
		speechtotext.WithInterimTranscriptionCallback(func(transcript string) {
			h.deliverTranscript(stream, speechtotext.Candidate{Transcript: transcript})
		}),
		speechtotext.WithTranscriptionCallback(func(candidate speechtotext.Candidate) {
			h.deliverTranscript(stream, candidate)
		}),
		speechtotext.WithStreamClosedCallback(func(cause error) {
			go h.recover(ctx, stream, cause)
		}),
	)
	if err != nil {
		return err
	}

	h.mu.Lock()
	stream.state = streamStateStreaming
	h.mu.Unlock()
	return nil
}

// deliverTranscript publishes one recognizer result, guarded by the kill
// switch so a superseded or stopped stream cannot leak stale fragments.
func (h *StreamHandler) deliverTranscript(stream *activeStream, candidate speechtotext.Candidate) {
	if !stream.alive.Load() || h.lookup(stream.sessionID) != stream {
		return
	}

	h.mu.Lock()
	// Any delivered result proves the stream is healthy again.
	stream.attempt = 0
	if stream.state == streamStateRecovering {
		stream.state = streamStateStreaming
	}

	if stream.pendingFragmentID == "" {
		stream.pendingFragmentID = newFragmentID()
	}
	fragmentID := stream.pendingFragmentID
	if candidate.IsFinal {
		stream.pendingFragmentID = ""
	}
	h.mu.Unlock()

	fragment := newTranscriptFragment(fragmentID, stream.sessionID, candidate.Transcript, stream.languageCode, candidate.IsFinal)
	stream.results.Publish(StreamResult{Fragment: &fragment})
}

// recover handles an unexpected stream death: retry with backoff while
// attempts remain and the failure is transient, otherwise surface a single
// terminal failure.
func (h *StreamHandler) recover(ctx context.Context, stream *activeStream, cause error) {
	if !stream.alive.Load() || h.lookup(stream.sessionID) != stream {
		return
	}

	// A dead network is not retryable until connectivity returns; surface
	// it immediately instead of burning retries.
	if !h.checker.HasConnection(ctx) {
		h.fail(stream, NewNetworkFailure())
		return
	}

	h.mu.Lock()
	if stream.attempt >= h.backoff.MaxRetries {
		h.mu.Unlock()
		h.fail(stream, NewSpeechRecognitionFailure(fmt.Sprintf("recognition stream failed after %d retries: %v", h.backoff.MaxRetries, cause)))
		return
	}
	stream.state = streamStateRecovering
	delay := h.backoff.Delay(stream.attempt)
	stream.attempt++
	h.mu.Unlock()

	if err := h.sleep(ctx, delay); err != nil {
		return
	}

	if !stream.alive.Load() {
		return
	}

	if err := h.openRecognizerStream(ctx, stream); err != nil {
		go h.recover(ctx, stream, err)
	}
}

// fail publishes one terminal failure and tears the stream down.
func (h *StreamHandler) fail(stream *activeStream, failure *Failure) {
	if !stream.alive.CompareAndSwap(true, false) {
		return
	}
	stream.results.Publish(StreamResult{Err: failure})
	h.teardown(stream, streamStateErrored)
}

// teardown releases the stream's resources and clears its active-set slot.
// It completes, or times out and force-completes, before the session id can
// be reused.
func (h *StreamHandler) teardown(stream *activeStream, terminal streamState) {
	stream.alive.Store(false)

	h.mu.Lock()
	if h.streams[stream.sessionID] == stream {
		delete(h.streams, stream.sessionID)
	}
	alreadyDone := stream.state == streamStateStopped || stream.state == streamStateErrored
	stream.state = terminal
	h.mu.Unlock()

	if alreadyDone {
		return
	}

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		if err := stream.recognizer.StopStreaming(); err != nil {
			logger.Warn("failed to stop recognizer cleanly", "session", stream.sessionID, "error", err)
		}
	}()
	select {
	case <-stopped:
	case <-time.After(h.teardownTimeout):
		logger.Warn("recognizer stop timed out, forcing teardown", "session", stream.sessionID)
	}

	if stream.cancel != nil {
		stream.cancel()
	}
	stream.results.Close()
	close(stream.done)
}
