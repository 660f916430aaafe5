package speechtotext

// Candidate is one hypothesis the recognizer produced for an utterance.
type Candidate struct {
	Transcript string
	Confidence float64
	IsFinal    bool
}

// Encoding describes the audio the recognizer should expect on the stream.
type Encoding struct {
	SampleRate int
	Format     string
}

const (
	DefaultSampleRate = 16000
	DefaultFormat     = "linear16"
)

func DefaultEncoding() Encoding {
	return Encoding{SampleRate: DefaultSampleRate, Format: DefaultFormat}
}

func (e Encoding) IsZero() bool {
	return e.SampleRate == 0 || e.Format == ""
}

type TranscriptionOptions struct {
	Language string
	Encoding Encoding

	InterimTranscriptionCallback func(transcript string)
	TranscriptionCallback        func(candidate Candidate)

	SpeechStartedCallback func()
	SpeechEndedCallback   func()

	// StreamClosedCallback fires once when the underlying stream dies for any
	// reason other than an explicit stop. The error carries the cause.
	StreamClosedCallback func(err error)
}

type TranscriptionOption func(*TranscriptionOptions)

func WithLanguage(language string) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Language = language
	}
}

func WithEncoding(encoding Encoding) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.Encoding = encoding
	}
}

func WithInterimTranscriptionCallback(callback func(transcript string)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.InterimTranscriptionCallback = callback
	}
}

func WithTranscriptionCallback(callback func(candidate Candidate)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.TranscriptionCallback = callback
	}
}

func WithSpeechStartedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechStartedCallback = callback
	}
}

func WithSpeechEndedCallback(callback func()) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.SpeechEndedCallback = callback
	}
}

func WithStreamClosedCallback(callback func(err error)) TranscriptionOption {
	return func(o *TranscriptionOptions) {
		o.StreamClosedCallback = callback
	}
}
