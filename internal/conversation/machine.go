// Package conversation drives each user through the chat lifecycle: onboarding,
// searching, chatting and back. Events are routed by command and by the sender's
// current state; all queue and partner bookkeeping is delegated to chathub.
package conversation

import (
	"context"
	"log/slog"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/localization"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/session"

	"github.com/samber/lo"
)

// Commands understood by the bot.
const (
	CmdStart        = "start"
	CmdSearch       = "search"
	CmdEnd          = "end"
	CmdHelp         = "help"
	CmdCancel       = "cancel"
	CmdAnnouncement = "announcement"
	CmdWaitingList  = "waitinglist"
	CmdStatus       = "status"
)

var knownCommands = map[string]struct{}{
	CmdStart: {}, CmdSearch: {}, CmdEnd: {}, CmdHelp: {}, CmdCancel: {},
	CmdAnnouncement: {}, CmdWaitingList: {}, CmdStatus: {},
}

func isKnownCommand(cmd string) bool {
	_, ok := knownCommands[cmd]
	return ok
}

// RoomJournal records chat rooms as they open and close. Implementations must not
// block for long; the machine calls them after the matcher has released its lock.
type RoomJournal interface {
	OpenRoom(ctx context.Context, roomID string, a, b models.UserID) error
	CloseRoom(ctx context.Context, roomID, reason string) error
}

// Deps are the collaborators of a Machine. Journal may be nil.
type Deps struct {
	Sessions    *session.Store
	Matcher     *chathub.Matcher
	Relay       *chathub.Relay
	Broadcaster *chathub.Broadcaster
	Gateway     chathub.Gateway
	Localizer   *localization.Localizer
	Journal     RoomJournal
	Log         *slog.Logger
}

// Machine is the conversation state machine.
type Machine struct {
	sessions    *session.Store
	matcher     *chathub.Matcher
	relay       *chathub.Relay
	broadcaster *chathub.Broadcaster
	gateway     chathub.Gateway
	loc         *localization.Localizer
	journal     RoomJournal
	router      *Router
	log         *slog.Logger
}

// NewMachine wires the handlers and the middleware chain.
func NewMachine(d Deps) *Machine {
	log := d.Log
	if log == nil {
		log = slog.Default()
	}

	m := &Machine{
		sessions:    d.Sessions,
		matcher:     d.Matcher,
		relay:       d.Relay,
		broadcaster: d.Broadcaster,
		gateway:     d.Gateway,
		loc:         d.Localizer,
		journal:     d.Journal,
		router:      NewRouter(log),
		log:         log,
	}

	// Announcements are framed in the default language.
	if m.broadcaster != nil {
		m.broadcaster.Format = func(text string) string {
			return m.loc.Format("", "announcement", text)
		}
	}

	m.router.Use(RecoveryMiddleware(log))
	m.router.Use(LoggingMiddleware(log))
	m.router.Use(MetricsMiddleware())
	m.router.Use(ErrorHandlingMiddleware(log))
	m.registerHandlers()

	return m
}

func (m *Machine) registerHandlers() {
	active := lo.Filter(models.AllStates, func(s models.ConversationState, _ int) bool { return s.CanChat() })

	m.router.RegisterCommand(CmdStart, m.handleStart)
	m.router.RegisterCommand(CmdCancel, m.handleCancel)
	m.router.RegisterCommand(CmdSearch, m.handleSearch, active...)
	m.router.RegisterCommand(CmdEnd, m.handleEnd, active...)
	m.router.RegisterCommand(CmdHelp, m.handleHelp, active...)
	m.router.RegisterCommand(CmdAnnouncement, m.handleAnnouncement, active...)
	m.router.RegisterCommand(CmdWaitingList, m.handleWaitingList, active...)
	m.router.RegisterCommand(CmdStatus, m.handleStatus, active...)

	m.router.RegisterState(models.StateOnboarding, m.handleNickname)
	for _, s := range active {
		m.router.RegisterState(s, m.handleChatInput)
	}
	// The cancelled state has no handler of its own.
	m.router.SetDefault(m.handleFallback)
}

// Handle processes a single event. Events of one user must not be handled
// concurrently; Pool guarantees that.
func (m *Machine) Handle(ctx context.Context, ev models.Event) error {
	profile, created := m.sessions.GetOrCreate(ev.UserID)
	if ev.Language != "" && m.loc.Has(ev.Language) {
		m.sessions.SetLanguage(ev.UserID, ev.Language)
		profile.Language = ev.Language
	}

	c := &Context{Ctx: ctx, Event: ev, Profile: profile, machine: m}

	// First contact always starts onboarding, whatever was sent.
	if created && !ev.IsCommand(CmdStart) {
		return m.router.Execute(m.handleStart, c)
	}
	return m.router.Route(c)
}

// notify sends a localized text to another user in that user's language.
// Failures are logged and returned.
func (m *Machine) notify(ctx context.Context, to models.UserID, key string, args ...any) error {
	profile, _ := m.sessions.Get(to)
	err := m.gateway.SendText(ctx, to, m.loc.Format(profile.Language, key, args...))
	if err != nil {
		m.log.Error("could not notify user", "user_id", to, "message", key, "error", err)
	}
	return err
}

func (m *Machine) nickname(id models.UserID) string {
	profile, _ := m.sessions.Get(id)
	return profile.DisplayName()
}

func (m *Machine) openRoom(ctx context.Context, roomID string, a, b models.UserID) {
	if m.journal == nil || roomID == "" {
		return
	}
	if err := m.journal.OpenRoom(ctx, roomID, a, b); err != nil {
		m.log.Warn("failed to journal room", "room_id", roomID, "error", err)
	}
}

func (m *Machine) closeRoom(ctx context.Context, roomID, reason string) {
	if m.journal == nil || roomID == "" {
		return
	}
	if err := m.journal.CloseRoom(ctx, roomID, reason); err != nil {
		m.log.Warn("failed to close journaled room", "room_id", roomID, "error", err)
	}
}
