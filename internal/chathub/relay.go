package chathub

import (
	"anonchat/backend/internal/models"
	"context"
	"errors"
	"fmt"
	"log/slog"
)

var (
	// ErrNotChatting is returned by Forward when the sender has no partner.
	ErrNotChatting = errors.New("not currently chatting")
	// ErrDeliveryFailed is returned by Forward when the gateway rejected the copy.
	// The pair has already been destroyed when it is returned.
	ErrDeliveryFailed = errors.New("delivery failed, chat ended")
)

// ForwardResult describes a Forward call.
type ForwardResult struct {
	Partner models.UserID
	// RoomID is set when a delivery failure destroyed the pair.
	RoomID string
}

// Relay forwards content between paired users.
type Relay struct {
	matcher *Matcher
	gateway Gateway
	log     *slog.Logger
}

// NewRelay creates a Relay.
func NewRelay(matcher *Matcher, gateway Gateway, log *slog.Logger) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{matcher: matcher, gateway: gateway, log: log}
}

// Forward copies msg to the sender's partner. A failed delivery is not retried: it is
// taken as proof that the partner's session is gone, and the pair is destroyed.
// Blank text is refused with ErrEmptyMessage and leaves the pair alone.
func (r *Relay) Forward(ctx context.Context, sender models.UserID, msg models.Message) (ForwardResult, error) {
	partner, ok := r.matcher.Partner(sender)
	if !ok {
		return ForwardResult{}, ErrNotChatting
	}

	if msg.IsBlankText() {
		return ForwardResult{Partner: partner}, ErrEmptyMessage
	}

	err := r.gateway.Forward(ctx, sender, partner, msg)
	if errors.Is(err, ErrEmptyMessage) {
		// The content was rejected, not the partner.
		return ForwardResult{Partner: partner}, err
	}
	if err == nil {
		r.log.Debug("message relayed", "user_id", sender, "partner_id", partner, "kind", msg.Kind)
		return ForwardResult{Partner: partner}, nil
	}

	r.log.Error("failed to relay message", "user_id", sender, "partner_id", partner, "kind", msg.Kind, "error", err)

	// Second, independent critical section. The pair may already be gone (or replaced)
	// if either side ended it while the forward was in flight.
	roomID, _ := r.matcher.UnpairIf(sender, partner)
	return ForwardResult{Partner: partner, RoomID: roomID}, fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
}
