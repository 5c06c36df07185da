package models

// UserID is the opaque identifier of a chat participant.
// Telegram users carry their decimal chat id, WebSocket users a "ws-" prefixed uuid.
type UserID string

func (id UserID) String() string { return string(id) }

// DefaultNickname is used in logs for users that never finished onboarding.
const DefaultNickname = "Stranger"

// UserProfile is the per-user session record. It lives for the process lifetime only.
type UserProfile struct {
	UserID   UserID
	Nickname *string
	State    ConversationState
	// Language is the client language code reported by the transport (e.g. "en", "uk").
	Language string
}

// DisplayName returns the chosen nickname or DefaultNickname.
func (p UserProfile) DisplayName() string {
	if p.Nickname == nil || *p.Nickname == "" {
		return DefaultNickname
	}
	return *p.Nickname
}

// HasNickname reports whether onboarding has been completed.
func (p UserProfile) HasNickname() bool {
	return p.Nickname != nil && *p.Nickname != ""
}
