package conversation

import (
	"context"

	"anonchat/backend/internal/models"
)

// Handler processes one inbound event.
type Handler func(c *Context) error

// Middleware wraps handlers with additional behavior.
type Middleware func(Handler) Handler

// Context carries one event through the router and its middlewares.
type Context struct {
	Ctx     context.Context
	Event   models.Event
	Profile models.UserProfile

	machine *Machine
}

// UserID is the sender of the event.
func (c *Context) UserID() models.UserID { return c.Event.UserID }

// State is the sender's conversation state when the event was dispatched.
func (c *Context) State() models.ConversationState { return c.Profile.State }

// Action names the event for logs and metrics.
func (c *Context) Action() string {
	if c.Event.Kind == models.EventCommand {
		return "/" + c.Event.Command
	}
	return string(c.Event.Kind)
}

// T returns the localized text for key in the sender's language.
func (c *Context) T(key string, args ...any) string {
	return c.machine.loc.Format(c.Profile.Language, key, args...)
}

// Reply sends a localized text to the sender.
func (c *Context) Reply(key string, args ...any) error {
	return c.Send(c.T(key, args...))
}

// Send sends a raw text to the sender.
func (c *Context) Send(text string) error {
	return c.machine.gateway.SendText(c.Ctx, c.Event.UserID, text)
}
