package chathub

import (
	"anonchat/backend/internal/models"
	"errors"

	"github.com/samber/lo"
)

// ErrAlreadyPaired is returned by pair when either side already has a partner.
var ErrAlreadyPaired = errors.New("user already paired")

// Registry is the symmetric partner mapping. It is not safe for concurrent use;
// the Matcher owns it and serializes every access behind its lock.
type Registry struct {
	partners map[models.UserID]models.UserID
	rooms    map[models.UserID]string
}

func newRegistry() *Registry {
	return &Registry{
		partners: make(map[models.UserID]models.UserID),
		rooms:    make(map[models.UserID]string),
	}
}

// pair links a and b in both directions in one step.
func (r *Registry) pair(a, b models.UserID, roomID string) error {
	if a == b {
		return errors.New("cannot pair a user with themselves")
	}
	if _, ok := r.partners[a]; ok {
		return ErrAlreadyPaired
	}
	if _, ok := r.partners[b]; ok {
		return ErrAlreadyPaired
	}

	r.partners[a] = b
	r.partners[b] = a
	r.rooms[a] = roomID
	r.rooms[b] = roomID
	return nil
}

// unpair removes both directions and returns the former partner. It is a no-op for
// users without a partner.
func (r *Registry) unpair(id models.UserID) (models.UserID, string, bool) {
	partner, ok := r.partners[id]
	if !ok {
		return "", "", false
	}
	roomID := r.rooms[id]

	delete(r.partners, id)
	delete(r.partners, partner)
	delete(r.rooms, id)
	delete(r.rooms, partner)
	return partner, roomID, true
}

func (r *Registry) partner(id models.UserID) (models.UserID, bool) {
	p, ok := r.partners[id]
	return p, ok
}

func (r *Registry) has(id models.UserID) bool {
	_, ok := r.partners[id]
	return ok
}

func (r *Registry) len() int { return len(r.partners) }

func (r *Registry) keys() []models.UserID { return lo.Keys(r.partners) }

func (r *Registry) snapshot() map[models.UserID]models.UserID {
	out := make(map[models.UserID]models.UserID, len(r.partners))
	for k, v := range r.partners {
		out[k] = v
	}
	return out
}
