package coordination

import "errors"

// FailureKind classifies a pipeline failure so callers can tell retryable
// conditions from ones that need user action.
type FailureKind string

const (
	// FailureNetwork means there is no connectivity; retry once it returns.
	FailureNetwork FailureKind = "network"
	// FailurePermission means microphone access is denied; never retried
	// silently, the user has to act.
	FailurePermission FailureKind = "permission"
	// FailureSpeechRecognition is a recognizer-level error, retried
	// internally with backoff up to a bound.
	FailureSpeechRecognition FailureKind = "speech_recognition"
	// FailureServer is anything unexpected, including persistence errors.
	FailureServer FailureKind = "server"
)

// Failure is the error type every pipeline boundary surfaces.
type Failure struct {
	FailureKind FailureKind
	Message     string
}

func (f *Failure) Error() string {
	return string(f.FailureKind) + ": " + f.Message
}

// Retryable reports whether the stream handler may retry this failure on
// its own.
func (f *Failure) Retryable() bool {
	return f.FailureKind == FailureSpeechRecognition
}

func NewNetworkFailure() *Failure {
	return &Failure{FailureKind: FailureNetwork, Message: "no network connection"}
}

func NewPermissionFailure(message string) *Failure {
	return &Failure{FailureKind: FailurePermission, Message: message}
}

func NewSpeechRecognitionFailure(message string) *Failure {
	return &Failure{FailureKind: FailureSpeechRecognition, Message: message}
}

func NewServerFailure(message string) *Failure {
	return &Failure{FailureKind: FailureServer, Message: message}
}

// AsFailure unwraps err to the pipeline Failure it carries, if any.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure, true
	}
	return nil, false
}
