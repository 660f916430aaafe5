package coordination

import (
	"sync"

	"github.com/jinzhu/copier"
	"github.com/ljubanic/parley-core/core/events"
)

// EventSink delivers one event to a connected participant endpoint. A
// transport.Socket satisfies it.
type EventSink interface {
	Send(event events.Event) error
}

// sessionQueueBuffer bounds the per-session outbound queue. Overflow drops
// the newest event instead of stalling the producers.
const sessionQueueBuffer = 256

// roleMirror marks an endpoint that mirrors the complete event feed, e.g.
// the relay socket. Never exposed as a participant role.
const roleMirror Role = "mirror"

type participant struct {
	session Session
	sink    EventSink
}

// delivery is one queued event together with the participants that were
// attached when it was produced. Resolving the recipients at enqueue time is
// what keeps a late joiner from seeing events produced before it attached.
type delivery struct {
	event   events.Event
	targets []participant
}

// sessionFanout is one session's outbound queue plus its connected
// participants. A single delivery goroutine drains the queue, which is what
// makes per-session ordering a property of the structure rather than of the
// callers.
type sessionFanout struct {
	sessionID string
	queue     chan delivery
	done      chan struct{}

	mu           sync.Mutex
	participants map[string]participant
}

// Distributor turns finalized domain results into socket events and fans
// them out to every connected participant, in production order per session.
type Distributor struct {
	mu       sync.Mutex
	sessions map[string]*sessionFanout
}

func NewDistributor() *Distributor {
	return &Distributor{sessions: map[string]*sessionFanout{}}
}

func (d *Distributor) fanout(sessionID string) *sessionFanout {
	d.mu.Lock()
	defer d.mu.Unlock()

	if fanout, ok := d.sessions[sessionID]; ok {
		return fanout
	}

	fanout := &sessionFanout{
		sessionID:    sessionID,
		queue:        make(chan delivery, sessionQueueBuffer),
		done:         make(chan struct{}),
		participants: map[string]participant{},
	}
	d.sessions[sessionID] = fanout
	go fanout.deliver()
	return fanout
}

// Join attaches one participant endpoint and emits a freshly recomputed
// audience snapshot.
func (d *Distributor) Join(sessionID, participantID string, session Session, sink EventSink) {
	fanout := d.fanout(sessionID)

	fanout.mu.Lock()
	fanout.participants[participantID] = participant{session: session, sink: sink}
	fanout.mu.Unlock()

	d.publishAudienceSnapshot(fanout)
}

// JoinMirror attaches an endpoint that receives every event for the
// session regardless of role or language. Mirrors do not count as audience.
func (d *Distributor) JoinMirror(sessionID, participantID string, sink EventSink) {
	fanout := d.fanout(sessionID)

	fanout.mu.Lock()
	fanout.participants[participantID] = participant{session: Session{Code: sessionID, Role: roleMirror}, sink: sink}
	fanout.mu.Unlock()
}

// Leave detaches one participant endpoint and emits a recomputed audience
// snapshot. Unknown participants are ignored.
func (d *Distributor) Leave(sessionID, participantID string) {
	fanout := d.lookup(sessionID)
	if fanout == nil {
		return
	}

	fanout.mu.Lock()
	_, known := fanout.participants[participantID]
	delete(fanout.participants, participantID)
	fanout.mu.Unlock()

	if known {
		d.publishAudienceSnapshot(fanout)
	}
}

// Audience returns a point-in-time copy of the session's audience-side
// participants.
func (d *Distributor) Audience(sessionID string) []Session {
	fanout := d.lookup(sessionID)
	if fanout == nil {
		return nil
	}

	fanout.mu.Lock()
	defer fanout.mu.Unlock()

	members := []Session{}
	for _, p := range fanout.participants {
		if p.session.Role == RoleAudience {
			members = append(members, p.session)
		}
	}
	return members
}

// ListenerLanguages returns the set of target languages currently requested
// by the session's audience.
func (d *Distributor) ListenerLanguages(sessionID string) []string {
	languages := []string{}
	seen := map[string]bool{}
	for _, member := range d.Audience(sessionID) {
		if !seen[member.LanguageCode] {
			seen[member.LanguageCode] = true
			languages = append(languages, member.LanguageCode)
		}
	}
	return languages
}

// PublishTranscript enqueues a transcript event for the session's speaker
// feed.
func (d *Distributor) PublishTranscript(fragment TranscriptFragment) {
	fanout := d.fanout(fragment.SessionID)
	fanout.enqueue(events.NewTranscriptEvent(fragment.SessionID, fragment.Text, fragment.IsFinal,
		events.WithTimestamp(fragment.Timestamp)))
}

// PublishTranslation enqueues a translation event for listeners of its
// target language.
func (d *Distributor) PublishTranslation(result TranslationResult) {
	fanout := d.fanout(result.SessionID)
	fanout.enqueue(events.NewTranslationEvent(result.SessionID, result.TargetLanguage, result.TargetText,
		events.WithTimestamp(result.Timestamp)))
}

// PublishError enqueues a terminal failure notice for every participant.
func (d *Distributor) PublishError(sessionID, message string) {
	fanout := d.fanout(sessionID)
	fanout.enqueue(events.NewErrorEvent(sessionID, message))
}

// Shutdown drops the session's queue and participants. Safe to call for an
// unknown session.
func (d *Distributor) Shutdown(sessionID string) {
	d.mu.Lock()
	fanout := d.sessions[sessionID]
	delete(d.sessions, sessionID)
	d.mu.Unlock()

	if fanout != nil {
		close(fanout.done)
	}
}

func (d *Distributor) lookup(sessionID string) *sessionFanout {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessions[sessionID]
}

// publishAudienceSnapshot recomputes count and language distribution from
// the full membership set. Never diffed incrementally, so it cannot drift.
func (d *Distributor) publishAudienceSnapshot(fanout *sessionFanout) {
	fanout.mu.Lock()
	count := 0
	distribution := map[string]int{}
	for _, p := range fanout.participants {
		if p.session.Role != RoleAudience {
			continue
		}
		count++
		distribution[p.session.LanguageCode]++
	}
	fanout.mu.Unlock()

	fanout.enqueue(events.NewAudienceCountEvent(fanout.sessionID, count, distribution))
}

// enqueue resolves the recipient set at production time. A participant that
// attaches while the queue still holds older events must not receive them.
func (f *sessionFanout) enqueue(event events.Event) {
	f.mu.Lock()
	targets := make([]participant, 0, len(f.participants))
	for _, p := range f.participants {
		if wantsEvent(p.session, event) {
			targets = append(targets, p)
		}
	}
	f.mu.Unlock()

	select {
	case f.queue <- delivery{event: event, targets: targets}:
	case <-f.done:
	default:
		logger.Warn("session event queue full, dropping event",
			"session", f.sessionID, "kind", string(event.Kind()))
	}
}

func (f *sessionFanout) deliver() {
	for {
		select {
		case <-f.done:
			return
		case d := <-f.queue:
			for _, target := range d.targets {
				if err := target.sink.Send(isolate(d.event)); err != nil {
					logger.Warn("failed to deliver event to participant",
						"session", f.sessionID, "kind", string(d.event.Kind()), "error", err)
				}
			}
		}
	}
}

// isolate hands each sink its own copy of any mutable payload, so one
// participant mutating a received map cannot leak the change into another
// participant's view.
func isolate(event events.Event) events.Event {
	snapshot, ok := event.(events.AudienceCountEvent)
	if !ok || snapshot.LanguageDistribution == nil {
		return event
	}

	distribution := map[string]int{}
	if err := copier.Copy(&distribution, snapshot.LanguageDistribution); err != nil {
		return event
	}
	snapshot.LanguageDistribution = distribution
	return snapshot
}

// wantsEvent routes events by role: the speaker follows their own
// transcript, listeners follow translations in their language, everyone
// sees audience changes and errors.
func wantsEvent(session Session, event events.Event) bool {
	if session.Role == roleMirror {
		return true
	}

	switch typedEvent := event.(type) {
	case events.TranscriptEvent:
		return session.Role == RoleSpeaker
	case events.TranslationEvent:
		return session.Role == RoleAudience && session.LanguageCode == typedEvent.TargetLanguage
	default:
		return true
	}
}
