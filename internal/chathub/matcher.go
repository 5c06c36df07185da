// Package chathub holds the matchmaking core: the waiting queue, the partner
// registry, the message relay and the admin broadcaster.
package chathub

import (
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/session"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrAlreadySearching is returned when the user already sits in the queue.
	ErrAlreadySearching = errors.New("already searching")
	// ErrAlreadyChatting is returned when the user already has a partner.
	ErrAlreadyChatting = errors.New("already chatting")
)

// PairResult describes the outcome of TryPair.
type PairResult struct {
	// Paired is false when the requester was queued instead.
	Paired  bool
	Partner models.UserID
	RoomID  string
}

// EndOutcome tells what End actually stopped.
type EndOutcome int

const (
	// NotActive means the user was neither queued nor paired.
	NotActive EndOutcome = iota
	// EndedSearch means the user left the queue.
	EndedSearch
	// EndedChat means the user's pair was destroyed.
	EndedChat
)

// EndResult is returned by End.
type EndResult struct {
	Outcome EndOutcome
	Partner models.UserID
	RoomID  string
}

// Snapshot is a consistent copy of the queue and the registry.
type Snapshot struct {
	Queue    []models.UserID
	Partners map[models.UserID]models.UserID
}

// Matcher owns the waiting queue and the partner registry. Every operation on either
// runs as one critical section under mu, so a pop and the matching pair can never
// interleave with another user's search or end. Session states of the users involved
// are updated inside the same critical section (lock order: Matcher, then session.Store).
// No I/O is done while holding mu.
type Matcher struct {
	mu       sync.Mutex
	queue    *queue
	registry *Registry
	sessions *session.Store
	log      *slog.Logger

	newRoomID func() string
}

// NewMatcherService creates a Matcher bound to the session store.
func NewMatcherService(sessions *session.Store, log *slog.Logger) *Matcher {
	if log == nil {
		log = slog.Default()
	}
	return &Matcher{
		queue:     newQueue(),
		registry:  newRegistry(),
		sessions:  sessions,
		log:       log,
		newRoomID: uuid.NewString,
	}
}

// Enqueue appends the user to the tail of the queue and marks them searching.
func (m *Matcher) Enqueue(id models.UserID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueueLocked(id)
}

// TryPair pairs the requester with the oldest waiter. With an empty queue the
// requester is enqueued instead and no pairing happens.
func (m *Matcher) TryPair(id models.UserID) (PairResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.guardLocked(id); err != nil {
		return PairResult{}, err
	}

	partner, ok := m.queue.pop()
	if !ok {
		if err := m.enqueueLocked(id); err != nil {
			return PairResult{}, err
		}
		m.log.Debug("user added to the queue", "user_id", id, "waiting", m.queue.len())
		return PairResult{}, nil
	}

	roomID, err := m.pairLocked(id, partner)
	if err != nil {
		// Cannot happen while the queue and registry stay disjoint; put the waiter back.
		m.queue.pushFront(partner)
		return PairResult{}, fmt.Errorf("pair %s with %s: %w", id, partner, err)
	}

	m.log.Debug("matched users", "user_id", id, "partner_id", partner, "room_id", roomID)
	return PairResult{Paired: true, Partner: partner, RoomID: roomID}, nil
}

// CancelSearch removes the user from the queue. It reports whether they were queued.
func (m *Matcher) CancelSearch(id models.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelLocked(id)
}

// End stops whatever the user is doing: it unpairs a chatting user or cancels a search.
func (m *Matcher) End(id models.UserID) EndResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	if partner, roomID, ok := m.unpairLocked(id); ok {
		return EndResult{Outcome: EndedChat, Partner: partner, RoomID: roomID}
	}
	if m.cancelLocked(id) {
		return EndResult{Outcome: EndedSearch}
	}
	return EndResult{Outcome: NotActive}
}

// Pair links a and b directly. Neither may be paired already; both leave the queue.
func (m *Matcher) Pair(a, b models.UserID) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pairLocked(a, b)
}

// Unpair destroys the user's pair and returns the former partner. It is idempotent.
func (m *Matcher) Unpair(id models.UserID) (models.UserID, string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unpairLocked(id)
}

// UnpairIf destroys the pair only if a is still paired with b. It protects against
// ending a newer pair after a slow delivery failure.
func (m *Matcher) UnpairIf(a, b models.UserID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.registry.partner(a); !ok || current != b {
		return "", false
	}
	_, roomID, ok := m.unpairLocked(a)
	return roomID, ok
}

// Partner returns the user's current partner.
func (m *Matcher) Partner(id models.UserID) (models.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.partner(id)
}

// IsSearching reports whether the user sits in the queue.
func (m *Matcher) IsSearching(id models.UserID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.contains(id)
}

// WaitingCount returns the queue length.
func (m *Matcher) WaitingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.len()
}

// ActiveChatCount returns the number of pairs.
func (m *Matcher) ActiveChatCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.len() / 2
}

// ChattingUsers returns every user that currently has a partner.
func (m *Matcher) ChattingUsers() []models.UserID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.registry.keys()
}

// Snapshot returns a consistent copy of the queue and registry.
func (m *Matcher) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{Queue: m.queue.snapshot(), Partners: m.registry.snapshot()}
}

func (m *Matcher) guardLocked(id models.UserID) error {
	if m.registry.has(id) {
		return ErrAlreadyChatting
	}
	if m.queue.contains(id) {
		return ErrAlreadySearching
	}
	return nil
}

func (m *Matcher) enqueueLocked(id models.UserID) error {
	if err := m.guardLocked(id); err != nil {
		return err
	}
	m.queue.push(id)
	m.sessions.SetState(id, models.StateSearching)
	return nil
}

func (m *Matcher) cancelLocked(id models.UserID) bool {
	if !m.queue.remove(id) {
		return false
	}
	m.sessions.SetState(id, models.StateIdle)
	return true
}

func (m *Matcher) pairLocked(a, b models.UserID) (string, error) {
	roomID := m.newRoomID()
	if err := m.registry.pair(a, b, roomID); err != nil {
		return "", err
	}
	m.queue.remove(a)
	m.queue.remove(b)
	m.sessions.SetState(a, models.StateChatting)
	m.sessions.SetState(b, models.StateChatting)
	return roomID, nil
}

func (m *Matcher) unpairLocked(id models.UserID) (models.UserID, string, bool) {
	partner, roomID, ok := m.registry.unpair(id)
	if !ok {
		return "", "", false
	}
	m.sessions.SetState(id, models.StateIdle)
	m.sessions.SetState(partner, models.StateIdle)
	return partner, roomID, true
}
