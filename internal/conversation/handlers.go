package conversation

import (
	"errors"
	"strings"

	"anonchat/backend/internal/chathub"
	apperrors "anonchat/backend/internal/errors"
	"anonchat/backend/internal/metrics"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/session"
)

// handleStart restarts onboarding. A running chat or search is ended first.
func (m *Machine) handleStart(c *Context) error {
	id := c.UserID()

	res := m.matcher.End(id)
	switch res.Outcome {
	case chathub.EndedChat:
		m.finishChat(c, res, models.EndReasonRestart)
	case chathub.EndedSearch:
		m.log.Info("search cancelled by restart", "user_id", id)
	}

	m.sessions.Reset(id)
	return c.Reply("welcome")
}

// handleNickname stores the first text an onboarding user sends as their nickname.
func (m *Machine) handleNickname(c *Context) error {
	ev := c.Event
	if ev.Kind == models.EventCommand {
		return apperrors.NewUserStateError("nickname_required", nil)
	}
	if ev.Kind != models.EventText {
		return apperrors.NewValidationError("nickname_empty", session.ErrEmptyNickname)
	}

	if err := m.sessions.SetNickname(c.UserID(), ev.Message.Text); err != nil {
		if errors.Is(err, session.ErrEmptyNickname) {
			return apperrors.NewValidationError("nickname_empty", err)
		}
		return err
	}

	name := m.nickname(c.UserID())
	m.log.Info("nickname set", "user_id", c.UserID(), "nickname", name)
	return c.Reply("nickname_set", name)
}

func (m *Machine) handleCancel(c *Context) error {
	if c.State() != models.StateOnboarding {
		return c.Reply("nothing_to_cancel")
	}
	if err := m.sessions.Transition(c.UserID(), models.StateCancelled); err != nil {
		return err
	}
	return c.Reply("action_cancelled")
}

// handleFallback points the user back at /start.
func (m *Machine) handleFallback(c *Context) error {
	return c.Reply("use_start")
}

func (m *Machine) handleSearch(c *Context) error {
	id := c.UserID()

	res, err := m.matcher.TryPair(id)
	switch {
	case errors.Is(err, chathub.ErrAlreadyChatting):
		return apperrors.NewUserStateError("already_chatting", err)
	case errors.Is(err, chathub.ErrAlreadySearching):
		return apperrors.NewUserStateError("already_searching", err)
	case err != nil:
		return err
	}

	if !res.Paired {
		m.log.Info("user added to the queue", "user_id", id, "nickname", m.nickname(id))
		return c.Reply("searching")
	}

	metrics.RecordMatch()
	m.log.Info("matched users",
		"user_id", id, "nickname", m.nickname(id),
		"partner_id", res.Partner, "partner_nickname", m.nickname(res.Partner),
		"room_id", res.RoomID,
	)
	m.openRoom(c.Ctx, res.RoomID, id, res.Partner)

	_ = m.notify(c.Ctx, res.Partner, "connected")
	return c.Reply("connected")
}

func (m *Machine) handleEnd(c *Context) error {
	res := m.matcher.End(c.UserID())

	switch res.Outcome {
	case chathub.EndedChat:
		m.finishChat(c, res, models.EndReasonUser)
		return nil
	case chathub.EndedSearch:
		return c.Reply("search_stopped")
	default:
		return c.Reply("not_in_chat")
	}
}

// finishChat tells both sides a chat is over. The partner notification is best effort.
func (m *Machine) finishChat(c *Context, res chathub.EndResult, reason string) {
	id := c.UserID()
	m.log.Info("chat ended",
		"user_id", id, "nickname", m.nickname(id),
		"partner_id", res.Partner, "partner_nickname", m.nickname(res.Partner),
		"room_id", res.RoomID, "reason", reason,
	)
	m.closeRoom(c.Ctx, res.RoomID, reason)

	if err := c.Reply("you_disconnected"); err != nil {
		m.log.Error("could not notify user", "user_id", id, "message", "you_disconnected", "error", err)
	}
	_ = m.notify(c.Ctx, res.Partner, "partner_disconnected")
}

func (m *Machine) handleHelp(c *Context) error {
	text := c.T("help")
	if m.broadcaster.IsAdmin(c.UserID()) {
		text += "\n\n" + c.T("help_admin")
	}
	return c.Send(text)
}

// handleChatInput relays anything a chatting user sends, unknown commands included.
// The relay is attempted first so a user paired by someone else's search a moment
// ago is not told to search.
func (m *Machine) handleChatInput(c *Context) error {
	id := c.UserID()

	res, err := m.relay.Forward(c.Ctx, id, c.Event.Message)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, chathub.ErrNotChatting):
		if c.Event.Kind == models.EventCommand {
			return apperrors.NewUserStateError("unknown_command", nil)
		}
		if m.matcher.IsSearching(id) {
			return c.Reply("still_searching")
		}
		return c.Reply("use_search")
	case errors.Is(err, chathub.ErrEmptyMessage):
		return apperrors.NewValidationError("empty_text", err)
	case errors.Is(err, chathub.ErrDeliveryFailed):
		metrics.RecordRelayFailure()
		m.log.Warn("chat ended by delivery failure",
			"user_id", id, "nickname", m.nickname(id), "partner_id", res.Partner, "room_id", res.RoomID)
		m.closeRoom(c.Ctx, res.RoomID, models.EndReasonDelivery)
		return apperrors.NewDeliveryError("delivery_failed", err)
	default:
		return err
	}
}

func (m *Machine) handleAnnouncement(c *Context) error {
	if !m.broadcaster.IsAdmin(c.UserID()) {
		return apperrors.NewAuthorizationError(chathub.ErrUnauthorized)
	}
	text := strings.TrimSpace(c.Event.Args)
	if text == "" {
		return apperrors.NewValidationError("announcement_usage", chathub.ErrEmptyMessage)
	}
	if m.broadcaster.ActiveChatCount() == 0 {
		return c.Reply("nobody_chatting")
	}

	res, err := m.broadcaster.Broadcast(c.Ctx, c.UserID(), text)
	switch {
	case errors.Is(err, chathub.ErrUnauthorized):
		return apperrors.NewAuthorizationError(err)
	case errors.Is(err, chathub.ErrEmptyMessage):
		return apperrors.NewValidationError("announcement_usage", err)
	case err != nil:
		return err
	}

	metrics.RecordBroadcast(res.Success, res.Failure)
	return c.Reply("broadcast_report", res.Success, res.Failure)
}

func (m *Machine) handleWaitingList(c *Context) error {
	if !m.broadcaster.IsAdmin(c.UserID()) {
		return apperrors.NewAuthorizationError(chathub.ErrUnauthorized)
	}
	return c.Reply("waiting_list", m.broadcaster.WaitingCount())
}

func (m *Machine) handleStatus(c *Context) error {
	if !m.broadcaster.IsAdmin(c.UserID()) {
		return apperrors.NewAuthorizationError(chathub.ErrUnauthorized)
	}
	return c.Reply("status", m.broadcaster.ActiveChatCount(), m.broadcaster.WaitingCount())
}
