package coordination

import "sync"

// Status is the single value describing what a session is doing right now.
type Status string

const (
	StatusIdle        Status = "idle"
	StatusCountdown   Status = "countdown"
	StatusListening   Status = "listening"
	StatusTranslating Status = "translating"
	StatusBuffering   Status = "buffering"
	StatusSpeaking    Status = "speaking"
	StatusPaused      Status = "paused"
	StatusError       Status = "error"
)

// StatusEvent is one of the typed triggers that may move the status. Only
// stream handler events, the countdown timer, and explicit user actions
// produce them.
type StatusEvent string

const (
	// EventGoLive is the speaker's explicit "go live" action.
	EventGoLive StatusEvent = "go_live"
	// EventCountdownFinished fires when the lead-in counter reaches zero
	// and the stream handler has confirmed a live stream.
	EventCountdownFinished StatusEvent = "countdown_finished"
	// EventFinalTranscript fires when a final fragment is handed to
	// translation.
	EventFinalTranscript StatusEvent = "final_transcript"
	// EventTranslationPending fires while translation is in flight with no
	// new speech detected.
	EventTranslationPending StatusEvent = "translation_pending"
	// EventSpeechDetected fires on new speech activity.
	EventSpeechDetected StatusEvent = "speech_detected"
	// EventTranslationReady fires once a translation is ready for
	// playback/display.
	EventTranslationReady StatusEvent = "translation_ready"
	// EventPlaybackFinished fires once playback/display completed.
	EventPlaybackFinished StatusEvent = "playback_finished"
	// EventPause is an explicit pause or app backgrounding.
	EventPause StatusEvent = "pause"
	// EventResume returns from paused to the prior state.
	EventResume StatusEvent = "resume"
	// EventStreamFailed is an unrecoverable stream handler failure.
	EventStreamFailed StatusEvent = "stream_failed"
	// EventStop is the explicit session stop/reset.
	EventStop StatusEvent = "stop"
)

// transition is the pure status transition table. The second return value
// reports whether the (state, event) pair is defined at all; undefined pairs
// leave the state untouched.
//
// Pause, stream failure and explicit stop are defined from every state;
// resume's target is the remembered prior state and is resolved by the
// machine, not here.
func transition(current Status, event StatusEvent) (Status, bool) {
	switch event {
	case EventPause:
		return StatusPaused, true
	case EventStreamFailed:
		return StatusError, true
	case EventStop:
		return StatusIdle, true
	}

	switch current {
	case StatusIdle:
		if event == EventGoLive {
			return StatusCountdown, true
		}
	case StatusCountdown:
		if event == EventCountdownFinished {
			return StatusListening, true
		}
	case StatusListening:
		if event == EventFinalTranscript {
			return StatusTranslating, true
		}
	case StatusTranslating:
		if event == EventTranslationPending {
			return StatusBuffering, true
		}
	case StatusBuffering:
		switch event {
		case EventSpeechDetected:
			return StatusListening, true
		case EventTranslationReady:
			return StatusSpeaking, true
		}
	case StatusSpeaking:
		if event == EventPlaybackFinished {
			return StatusListening, true
		}
	}

	return current, false
}

// StatusSnapshot is what observers receive on every visible change.
type StatusSnapshot struct {
	Status Status
	// CountdownRemaining is the remaining lead-in seconds; meaningful only
	// while Status is countdown.
	CountdownRemaining int
}

// StatusMachine owns the session status. Nothing else mutates it.
type StatusMachine struct {
	mu                 sync.Mutex
	status             Status
	prior              Status
	countdownRemaining int

	observers *broadcaster[StatusSnapshot]
}

func NewStatusMachine() *StatusMachine {
	return &StatusMachine{
		status:    StatusIdle,
		prior:     StatusIdle,
		observers: newBroadcaster[StatusSnapshot](nil),
	}
}

func (m *StatusMachine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Apply feeds one event through the transition table and returns the
// resulting status. Undefined (state, event) pairs leave the status
// unchanged and notify nobody.
func (m *StatusMachine) Apply(event StatusEvent) Status {
	m.mu.Lock()

	if event == EventResume {
		if m.status != StatusPaused {
			status := m.status
			m.mu.Unlock()
			return status
		}
		m.status = m.prior
		snapshot := m.snapshotLocked()
		m.mu.Unlock()
		m.observers.Publish(snapshot)
		return snapshot.Status
	}

	next, defined := transition(m.status, event)
	if !defined || next == m.status {
		status := m.status
		m.mu.Unlock()
		return status
	}

	if event == EventPause {
		m.prior = m.status
	} else {
		m.prior = next
	}
	m.status = next
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.observers.Publish(snapshot)
	return next
}

// SetCountdownRemaining publishes a countdown tick. Ignored outside the
// countdown state.
func (m *StatusMachine) SetCountdownRemaining(seconds int) {
	m.mu.Lock()
	if m.status != StatusCountdown {
		m.mu.Unlock()
		return
	}
	m.countdownRemaining = seconds
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	m.observers.Publish(snapshot)
}

// Subscribe attaches a status observer. The current snapshot is delivered
// first so observers do not start blind.
func (m *StatusMachine) Subscribe() *Subscription[StatusSnapshot] {
	sub := m.observers.Subscribe()

	m.mu.Lock()
	snapshot := m.snapshotLocked()
	m.mu.Unlock()

	select {
	case sub.ch <- snapshot:
	default:
	}
	return sub
}

func (m *StatusMachine) snapshotLocked() StatusSnapshot {
	remaining := m.countdownRemaining
	if m.status != StatusCountdown {
		remaining = 0
	}
	return StatusSnapshot{Status: m.status, CountdownRemaining: remaining}
}
