package coordination

import (
	"context"
	"time"

	"github.com/ljubanic/parley-core/core/connectivity"
	"github.com/ljubanic/parley-core/core/speechtotext"
	"github.com/ljubanic/parley-core/core/store"
	"github.com/ljubanic/parley-core/core/translation"
	"github.com/ljubanic/parley-core/core/transport"
)

// Recognizer is the speech-to-text service the pipeline consumes. One
// recognizer instance carries at most one live stream, which is why the
// stream handler takes a factory rather than a shared instance.
type Recognizer interface {
	Init() bool
	StartStreaming(ctx context.Context, opts ...speechtotext.TranscriptionOption) error
	SendAudio(audio []byte) error
	StopStreaming() error
	PauseStreaming() error
	ResumeStreaming() error
	TranscribeAudio(ctx context.Context, audio []byte, languageCode string) ([]speechtotext.Candidate, error)
}

// RecognizerFactory creates a fresh recognizer for each stream instance.
type RecognizerFactory func() Recognizer

type CoordinatorOption func(*Coordinator)

func WithRecognizerFactory(factory RecognizerFactory) CoordinatorOption {
	return func(c *Coordinator) {
		c.newRecognizer = factory
	}
}

func WithTranslator(translator translation.Translator) CoordinatorOption {
	return func(c *Coordinator) {
		c.translator = translator
	}
}

func WithConnectivityChecker(checker connectivity.Checker) CoordinatorOption {
	return func(c *Coordinator) {
		c.checker = checker
	}
}

func WithStore(recordStore store.Store) CoordinatorOption {
	return func(c *Coordinator) {
		c.recordStore = recordStore
	}
}

// WithSocket attaches the relay connection the speaker's own events mirror
// to. Optional; local observers work without one.
func WithSocket(socket transport.Socket) CoordinatorOption {
	return func(c *Coordinator) {
		c.socket = socket
	}
}

func WithStreamBackoffPolicy(policy BackoffPolicy) CoordinatorOption {
	return func(c *Coordinator) {
		c.streamOpts = append(c.streamOpts, WithBackoffPolicy(policy))
	}
}

// WithCountdownSeconds sets the go-live lead-in length.
func WithCountdownSeconds(seconds int) CoordinatorOption {
	return func(c *Coordinator) {
		c.countdownSeconds = seconds
	}
}

// WithCountdownInterval compresses the countdown tick for tests.
func WithCountdownInterval(interval time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.countdownInterval = interval
	}
}
