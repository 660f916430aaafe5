package coordination

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the part a participant plays in a session.
type Role string

const (
	RoleSpeaker  Role = "speaker"
	RoleAudience Role = "audience"
)

// Session is one participant's identity in a live interpretation session.
// The code is shared by all participants of the same session; role and
// language are fixed for the participant's whole stay.
type Session struct {
	// Code is the short human-shareable session code.
	Code string
	Role Role
	// LanguageCode is the spoken language for a speaker, the desired target
	// language for an audience member.
	LanguageCode string
}

const sessionCodeLength = 6

// NewSessionCode generates a short shareable code. Derived from a uuid so
// collisions stay unlikely without coordination.
func NewSessionCode() string {
	compact := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return compact[:sessionCodeLength]
}
