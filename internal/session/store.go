// Package session keeps the per-user profile and conversation state in memory.
package session

import (
	"anonchat/backend/internal/models"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	// ErrEmptyNickname is returned when the chosen nickname is blank.
	ErrEmptyNickname = errors.New("nickname is empty")
	// ErrInvalidTransition is returned by Transition for moves outside the state table.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// TransitionRecorder observes every committed state change.
type TransitionRecorder func(from, to models.ConversationState)

// Store is a concurrency-safe map of user profiles. Unknown users are created lazily.
type Store struct {
	mu       sync.RWMutex
	profiles map[models.UserID]*models.UserProfile
	recorder TransitionRecorder
}

// NewStore creates an empty Store. recorder may be nil.
func NewStore(recorder TransitionRecorder) *Store {
	if recorder == nil {
		recorder = func(models.ConversationState, models.ConversationState) {}
	}
	return &Store{
		profiles: make(map[models.UserID]*models.UserProfile),
		recorder: recorder,
	}
}

// GetOrCreate returns a copy of the user's profile, creating it in the onboarding state.
func (s *Store) GetOrCreate(id models.UserID) (models.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, created := s.profileLocked(id)
	return clone(p), created
}

// Get returns the profile without creating it.
func (s *Store) Get(id models.UserID) (models.UserProfile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[id]
	if !ok {
		return models.UserProfile{}, false
	}
	return clone(p), true
}

// SetNickname stores the trimmed nickname and moves the user to idle.
func (s *Store) SetNickname(id models.UserID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyNickname
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.profileLocked(id)
	p.Nickname = &name
	s.setStateLocked(p, models.StateIdle)
	return nil
}

// SetLanguage remembers the client language for localized replies. Blank codes are ignored.
func (s *Store) SetLanguage(id models.UserID, lang string) {
	if lang == "" {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.profileLocked(id)
	p.Language = lang
}

// State returns the current conversation state (onboarding for unknown users).
func (s *Store) State(id models.UserID) models.ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.profiles[id]; ok {
		return p.State
	}
	return models.StateOnboarding
}

// SetState overwrites the state without consulting the transition table.
func (s *Store) SetState(id models.UserID, state models.ConversationState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.profileLocked(id)
	s.setStateLocked(p, state)
}

// Transition moves the user to a new state if the transition table allows it.
func (s *Store) Transition(id models.UserID, to models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.profileLocked(id)
	if !models.IsTransitionAllowed(p.State, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, p.State, to)
	}
	s.setStateLocked(p, to)
	return nil
}

// Reset clears the nickname and restarts onboarding.
func (s *Store) Reset(id models.UserID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, _ := s.profileLocked(id)
	p.Nickname = nil
	s.setStateLocked(p, models.StateOnboarding)
}

// CountByState returns the number of known users per state.
func (s *Store) CountByState() map[models.ConversationState]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[models.ConversationState]int, len(models.AllStates))
	for _, p := range s.profiles {
		counts[p.State]++
	}
	return counts
}

func (s *Store) profileLocked(id models.UserID) (*models.UserProfile, bool) {
	if p, ok := s.profiles[id]; ok {
		return p, false
	}
	p := &models.UserProfile{UserID: id, State: models.StateOnboarding}
	s.profiles[id] = p
	return p, true
}

func (s *Store) setStateLocked(p *models.UserProfile, to models.ConversationState) {
	from := p.State
	p.State = to
	if from != to {
		s.recorder(from, to)
	}
}

func clone(p *models.UserProfile) models.UserProfile {
	out := *p
	if p.Nickname != nil {
		name := *p.Nickname
		out.Nickname = &name
	}
	return out
}
