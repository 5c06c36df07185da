// Package telegram handles the integration with the Telegram Bot API.
// It is responsible for receiving updates from Telegram, turning them into
// events for the conversation machine, and delivering outgoing messages.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"anonchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const pollTimeout = 60

// Submitter accepts events for processing.
type Submitter interface {
	Submit(ctx context.Context, ev models.Event) error
}

// Deduper remembers update ids that were already handled.
type Deduper interface {
	MarkUpdateSeen(ctx context.Context, updateID int) (bool, error)
}

// BotService is responsible for receiving Telegram updates and routing them to the
// event pool.
type BotService struct {
	BotAPI *tgbotapi.BotAPI
	events Submitter
	dedupe Deduper
	log    *slog.Logger
}

// NewBotAPI authorizes the bot token.
func NewBotAPI(token string, log *slog.Logger) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}
	bot.Debug = false
	log.Info("authorized on account", "username", bot.Self.UserName)
	return bot, nil
}

// NewBotService creates a new BotService instance. dedupe may be nil.
func NewBotService(bot *tgbotapi.BotAPI, events Submitter, dedupe Deduper, log *slog.Logger) *BotService {
	if log == nil {
		log = slog.Default()
	}
	return &BotService{
		BotAPI: bot,
		events: events,
		dedupe: dedupe,
		log:    log,
	}
}

// Run is the main loop for receiving Telegram updates by long polling.
func (s *BotService) Run(ctx context.Context) error {
	// A webhook left over from an earlier deployment blocks getUpdates.
	if _, err := s.BotAPI.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		s.log.Warn("failed to delete webhook", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	updates := s.BotAPI.GetUpdatesChan(u)
	s.log.Info("polling telegram updates")

	for {
		select {
		case <-ctx.Done():
			s.BotAPI.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := s.HandleUpdate(ctx, update); err != nil {
				s.log.Error("failed to handle update", "update_id", update.UpdateID, "error", err)
			}
		}
	}
}

// RegisterWebhook points Telegram at url.
func (s *BotService) RegisterWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("build webhook: %w", err)
	}
	if _, err := s.BotAPI.Request(wh); err != nil {
		return fmt.Errorf("set webhook: %w", err)
	}
	s.log.Info("webhook registered", "url", url)
	return nil
}

// HandleUpdate converts one update and submits it. Redelivered updates and updates
// that carry no user message are dropped.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) error {
	ev, ok := EventFromUpdate(update)
	if !ok {
		return nil
	}

	if s.dedupe != nil {
		first, err := s.dedupe.MarkUpdateSeen(ctx, update.UpdateID)
		if err != nil {
			// Processing twice is better than dropping a message.
			s.log.Warn("update dedupe unavailable", "update_id", update.UpdateID, "error", err)
		} else if !first {
			s.log.Debug("duplicate update skipped", "update_id", update.UpdateID)
			return nil
		}
	}

	return s.events.Submit(ctx, ev)
}

// EventFromUpdate turns a private-chat message into an Event.
func EventFromUpdate(update tgbotapi.Update) (models.Event, bool) {
	msg := update.Message
	if msg == nil {
		return models.Event{}, false
	}
	if msg.Chat.Type != "" && !msg.Chat.IsPrivate() {
		return models.Event{}, false
	}

	ev := models.Event{
		UserID:  models.UserID(strconv.FormatInt(msg.Chat.ID, 10)),
		Message: messageFrom(msg),
	}
	if msg.From != nil {
		ev.Language = msg.From.LanguageCode
	}

	switch {
	case msg.IsCommand():
		ev.Kind = models.EventCommand
		ev.Command = strings.ToLower(msg.Command())
		ev.Args = strings.TrimSpace(msg.CommandArguments())
	case ev.Message.Kind == models.KindText:
		ev.Kind = models.EventText
	default:
		ev.Kind = models.EventMedia
	}
	return ev, true
}

// messageFrom extracts the content kind, file id and caption from a message.
func messageFrom(msg *tgbotapi.Message) models.Message {
	out := models.Message{
		Text:    msg.Text,
		Caption: msg.Caption,
		Ref: models.MessageRef{
			Transport: models.TransportTelegram,
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
		},
	}

	switch {
	case msg.Text != "":
		out.Kind = models.KindText
	case len(msg.Photo) > 0:
		out.Kind = models.KindPhoto
		out.FileID = msg.Photo[len(msg.Photo)-1].FileID
	case msg.Video != nil:
		out.Kind = models.KindVideo
		out.FileID = msg.Video.FileID
	case msg.Animation != nil:
		out.Kind = models.KindAnimation
		out.FileID = msg.Animation.FileID
	case msg.Document != nil:
		out.Kind = models.KindDocument
		out.FileID = msg.Document.FileID
	case msg.Audio != nil:
		out.Kind = models.KindAudio
		out.FileID = msg.Audio.FileID
	case msg.Voice != nil:
		out.Kind = models.KindVoice
		out.FileID = msg.Voice.FileID
	case msg.Sticker != nil:
		out.Kind = models.KindSticker
		out.FileID = msg.Sticker.FileID
	case msg.VideoNote != nil:
		out.Kind = models.KindVideoNote
		out.FileID = msg.VideoNote.FileID
	default:
		out.Kind = models.KindOther
	}
	return out
}
