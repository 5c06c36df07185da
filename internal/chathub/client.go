package chathub

import (
	"anonchat/backend/internal/models"
	"context"
	"errors"
)

// ErrRecipientUnreachable is returned by gateways when the recipient cannot be reached
// (blocked the bot, closed the connection, unknown chat).
var ErrRecipientUnreachable = errors.New("recipient unreachable")

// Gateway is the outbound side of any transport (e.g., Telegram, WebSocket).
// The hub never talks to a transport directly, only through this interface.
type Gateway interface {
	// SendText delivers a plain text notice to the user.
	SendText(ctx context.Context, to models.UserID, text string) error
	// Forward copies msg to the recipient without attaching the sender's identity.
	// The content kind is preserved; the gateway must not reinterpret the payload.
	Forward(ctx context.Context, from, to models.UserID, msg models.Message) error
}
