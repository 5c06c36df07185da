package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// API is the part of *tgbotapi.BotAPI the client needs.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client delivers messages to Telegram users. It implements chathub.Gateway for
// user ids that are decimal chat ids.
type Client struct {
	api API
	log *slog.Logger
}

// NewClient creates a Telegram gateway over api.
func NewClient(api API, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{api: api, log: log}
}

// Owns reports whether id is a Telegram chat id.
func (c *Client) Owns(id models.UserID) bool {
	_, err := chatID(id)
	return err == nil
}

// SendText sends a plain text message.
func (c *Client) SendText(_ context.Context, to models.UserID, text string) error {
	id, err := chatID(to)
	if err != nil {
		return err
	}

	if _, err := c.api.Send(tgbotapi.NewMessage(id, text)); err != nil {
		return classify(err)
	}
	return nil
}

// Forward copies msg to the recipient. Telegram-originated content goes through
// copyMessage, which keeps media intact and carries no trace of the sender. Content
// from other transports is rendered as text.
func (c *Client) Forward(ctx context.Context, from, to models.UserID, msg models.Message) error {
	if msg.Ref.Transport != models.TransportTelegram || msg.Ref.MessageID == 0 {
		body := msg.Body()
		if strings.TrimSpace(body) == "" {
			return fmt.Errorf("%w: nothing to send to %s", chathub.ErrEmptyMessage, to)
		}
		return c.SendText(ctx, to, body)
	}

	id, err := chatID(to)
	if err != nil {
		return err
	}

	copyCfg := tgbotapi.NewCopyMessage(id, msg.Ref.ChatID, msg.Ref.MessageID)
	if _, err := c.api.Request(copyCfg); err != nil {
		c.log.Debug("copyMessage failed", "user_id", from, "partner_id", to, "kind", msg.Kind, "error", err)
		return classify(err)
	}
	return nil
}

func chatID(id models.UserID) (int64, error) {
	n, err := strconv.ParseInt(string(id), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: %q is not a telegram chat", chathub.ErrRecipientUnreachable, id)
	}
	return n, nil
}

// classify marks errors that mean the user can no longer be reached: the bot was
// blocked, the chat is gone or the account was deactivated.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusForbidden, http.StatusBadRequest:
			return fmt.Errorf("%w: %w", chathub.ErrRecipientUnreachable, err)
		}
	}
	return fmt.Errorf("telegram request: %w", err)
}
