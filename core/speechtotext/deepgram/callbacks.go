package deepgram

import "github.com/ljubanic/parley-core/core/speechtotext"

type callbackConfig struct {
	interimTranscriptionCallback func(transcript string)
	transcriptionCallback        func(candidate speechtotext.Candidate)
	startSpeechCallback          func()
	endSpeechCallback            func()
	streamClosedCallback         func(err error)
}

type websocketConfig struct {
	shouldDetectSpeechStart            bool
	shouldEnhanceSpeechEndingDetection bool
	shouldRequestInterimResults        bool
}

func newCallbackConfig(options speechtotext.TranscriptionOptions) (callbackConfig, websocketConfig) {
	callbacks := callbackConfig{
		interimTranscriptionCallback: func(string) {},
		transcriptionCallback:        func(speechtotext.Candidate) {},
		startSpeechCallback:          func() {},
		endSpeechCallback:            func() {},
		streamClosedCallback:         func(error) {},
	}

	wsConfig := websocketConfig{
		shouldDetectSpeechStart: options.SpeechStartedCallback != nil,
		shouldEnhanceSpeechEndingDetection: options.TranscriptionCallback != nil ||
			options.SpeechEndedCallback != nil,
		shouldRequestInterimResults: options.InterimTranscriptionCallback != nil,
	}

	if options.InterimTranscriptionCallback != nil {
		callbacks.interimTranscriptionCallback = options.InterimTranscriptionCallback
	}
	if options.TranscriptionCallback != nil {
		callbacks.transcriptionCallback = options.TranscriptionCallback
	}
	if options.SpeechStartedCallback != nil {
		callbacks.startSpeechCallback = options.SpeechStartedCallback
	}
	if options.SpeechEndedCallback != nil {
		callbacks.endSpeechCallback = options.SpeechEndedCallback
	}
	if options.StreamClosedCallback != nil {
		callbacks.streamClosedCallback = options.StreamClosedCallback
	}

	return callbacks, wsConfig
}
