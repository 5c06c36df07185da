package chathub

import "anonchat/backend/internal/models"

// queue is the FIFO of users waiting for a partner. Like Registry it is owned by
// the Matcher and never touched without its lock.
type queue struct {
	items   []models.UserID
	members map[models.UserID]struct{}
}

func newQueue() *queue {
	return &queue{members: make(map[models.UserID]struct{})}
}

func (q *queue) push(id models.UserID) bool {
	if q.contains(id) {
		return false
	}
	q.items = append(q.items, id)
	q.members[id] = struct{}{}
	return true
}

func (q *queue) pushFront(id models.UserID) {
	if q.contains(id) {
		return
	}
	q.items = append([]models.UserID{id}, q.items...)
	q.members[id] = struct{}{}
}

func (q *queue) pop() (models.UserID, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	delete(q.members, head)
	return head, true
}

func (q *queue) remove(id models.UserID) bool {
	if !q.contains(id) {
		return false
	}
	for i, item := range q.items {
		if item == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			break
		}
	}
	delete(q.members, id)
	return true
}

func (q *queue) contains(id models.UserID) bool {
	_, ok := q.members[id]
	return ok
}

func (q *queue) len() int { return len(q.items) }

func (q *queue) snapshot() []models.UserID {
	return append([]models.UserID(nil), q.items...)
}
