package conversation

import (
	"log/slog"
	"sync"

	"anonchat/backend/internal/models"
)

type commandRoute struct {
	handler Handler
	// allowed is nil when the command works in every state.
	allowed map[models.ConversationState]struct{}
}

func (r commandRoute) allows(s models.ConversationState) bool {
	if r.allowed == nil {
		return true
	}
	_, ok := r.allowed[s]
	return ok
}

// Router dispatches commands and state-aware events.
type Router struct {
	mu             sync.RWMutex
	commands       map[string]commandRoute
	states         map[models.ConversationState]Handler
	defaultHandler Handler
	middlewares    []Middleware
	log            *slog.Logger
}

// NewRouter builds a Router with empty registries.
func NewRouter(log *slog.Logger) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		commands:    make(map[string]commandRoute),
		states:      make(map[models.ConversationState]Handler),
		middlewares: make([]Middleware, 0),
		log:         log,
	}
}

// RegisterCommand registers a handler for a command (without the slash). When states
// are given, the command only matches in those states and otherwise falls through to
// the state handler.
func (r *Router) RegisterCommand(cmd string, h Handler, states ...models.ConversationState) {
	route := commandRoute{handler: h}
	if len(states) > 0 {
		route.allowed = make(map[models.ConversationState]struct{}, len(states))
		for _, s := range states {
			route.allowed[s] = struct{}{}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd] = route
}

// RegisterState registers the handler for events that match no command in state s.
func (r *Router) RegisterState(s models.ConversationState, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[s] = h
}

// Use appends a middleware to the chain.
func (r *Router) Use(mw Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middlewares = append(r.middlewares, mw)
}

// SetDefault sets the fallback handler for unmatched events.
func (r *Router) SetDefault(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultHandler = h
}

// Route directs the event to the appropriate handler.
func (r *Router) Route(c *Context) error {
	if c.Event.Kind == models.EventCommand {
		if h := r.commandHandler(c.Event.Command, c.State()); h != nil {
			return r.Execute(h, c)
		}
	}

	if h := r.stateHandler(c.State()); h != nil {
		return r.Execute(h, c)
	}

	if h := r.getDefaultHandler(); h != nil {
		return r.Execute(h, c)
	}

	r.log.Info("no handler found", "user_id", c.UserID(), "state", c.State(), "action", c.Action())
	return nil
}

// Execute runs h wrapped in the middleware chain.
func (r *Router) Execute(h Handler, c *Context) error {
	wrapped := r.applyMiddlewares(h)
	if wrapped == nil {
		return nil
	}
	return wrapped(c)
}

func (r *Router) commandHandler(cmd string, s models.ConversationState) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	route, ok := r.commands[cmd]
	if !ok || !route.allows(s) {
		return nil
	}
	return route.handler
}

func (r *Router) stateHandler(s models.ConversationState) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.states[s]
}

func (r *Router) getDefaultHandler() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultHandler
}

// applyMiddlewares wraps the handler so the first registered middleware runs outermost.
func (r *Router) applyMiddlewares(h Handler) Handler {
	if h == nil {
		return nil
	}

	r.mu.RLock()
	middlewares := make([]Middleware, len(r.middlewares))
	copy(middlewares, r.middlewares)
	r.mu.RUnlock()

	wrapped := h
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}
