package models

// ConversationState is the per-user conversation state.
type ConversationState string

const (
	// StateOnboarding waits for the user to choose a nickname.
	StateOnboarding ConversationState = "onboarding"
	// StateIdle means named, not searching and not paired.
	StateIdle ConversationState = "idle"
	// StateSearching means the user sits in the waiting queue.
	StateSearching ConversationState = "searching"
	// StateChatting means the user is paired with a partner.
	StateChatting ConversationState = "chatting"
	// StateCancelled is terminal until the next /start.
	StateCancelled ConversationState = "cancelled"
)

// AllStates lists every state, in lifecycle order.
var AllStates = []ConversationState{
	StateOnboarding,
	StateIdle,
	StateSearching,
	StateChatting,
	StateCancelled,
}

var validTransitions = map[ConversationState][]ConversationState{
	StateOnboarding: {StateIdle, StateCancelled},
	StateIdle:       {StateSearching, StateChatting},
	StateSearching:  {StateChatting, StateIdle},
	StateChatting:   {StateIdle},
}

// IsTransitionAllowed reports whether a user may move from one state to another.
// Staying in place and returning to onboarding (/start) are always allowed.
func IsTransitionAllowed(from, to ConversationState) bool {
	if from == to || to == StateOnboarding {
		return true
	}

	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}

	return false
}

// CanChat reports whether search, help and admin commands are available in the state.
func (s ConversationState) CanChat() bool {
	return s == StateIdle || s == StateSearching || s == StateChatting
}
