package models

import "time"

// ChatRoom is the journal record of one pairing between two users.
// It never stores message content and is not read back to restore state.
type ChatRoom struct {
	// RoomID is the unique identifier for the pairing (UUID).
	RoomID string `gorm:"primaryKey"`
	// User1ID is the user who issued the matching /search.
	User1ID string `gorm:"index"`
	// User2ID is the waiter popped from the queue.
	User2ID string `gorm:"index"`
	// IsActive is true until either side ends the chat.
	IsActive bool
	// StartedAt is the timestamp when the pair was created.
	StartedAt time.Time
	// EndedAt is set when the pair was destroyed.
	EndedAt *time.Time
	// EndReason is one of the EndReason* constants.
	EndReason string
}

const (
	EndReasonUser     = "user_end"
	EndReasonRestart  = "user_restart"
	EndReasonDelivery = "delivery_failure"
)
