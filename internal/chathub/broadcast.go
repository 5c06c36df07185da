package chathub

import (
	"anonchat/backend/internal/models"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrUnauthorized is returned when a non-admin calls an admin operation.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrEmptyMessage is returned for a blank announcement or blank chat text.
	ErrEmptyMessage = errors.New("empty message")
)

const defaultBroadcastConcurrency = 8

// AdminSet is the configured set of administrator ids.
type AdminSet map[models.UserID]struct{}

// NewAdminSet builds an AdminSet, ignoring blank ids.
func NewAdminSet(ids ...models.UserID) AdminSet {
	set := make(AdminSet, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}

// Contains reports whether id is an administrator.
func (a AdminSet) Contains(id models.UserID) bool {
	_, ok := a[id]
	return ok
}

// BroadcastResult counts delivered and failed announcement copies.
type BroadcastResult struct {
	Success int
	Failure int
}

// Broadcaster sends admin announcements to every chatting user.
type Broadcaster struct {
	matcher     *Matcher
	gateway     Gateway
	admins      AdminSet
	concurrency int
	log         *slog.Logger

	// Format turns the raw announcement into the text recipients see.
	Format func(text string) string
}

// NewBroadcaster creates a Broadcaster. concurrency <= 0 selects a default.
func NewBroadcaster(matcher *Matcher, gateway Gateway, admins AdminSet, concurrency int, log *slog.Logger) *Broadcaster {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = defaultBroadcastConcurrency
	}
	return &Broadcaster{
		matcher:     matcher,
		gateway:     gateway,
		admins:      admins,
		concurrency: concurrency,
		log:         log,
		Format:      func(text string) string { return text },
	}
}

// IsAdmin reports whether id may use admin commands.
func (b *Broadcaster) IsAdmin(id models.UserID) bool {
	return b.admins.Contains(id)
}

// Broadcast sends text to every user present in the partner registry at call time.
// Sends are independent: a failed recipient is counted and the rest continue.
// The registry is never modified, whatever the outcome.
func (b *Broadcaster) Broadcast(ctx context.Context, caller models.UserID, text string) (BroadcastResult, error) {
	if !b.IsAdmin(caller) {
		return BroadcastResult{}, ErrUnauthorized
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return BroadcastResult{}, ErrEmptyMessage
	}

	recipients := b.matcher.ChattingUsers()
	body := b.Format(text)

	var success, failure atomic.Int64
	g := new(errgroup.Group)
	g.SetLimit(b.concurrency)
	for _, id := range recipients {
		g.Go(func() error {
			if err := b.gateway.SendText(ctx, id, body); err != nil {
				b.log.Error("failed to send announcement", "user_id", id, "error", err)
				failure.Add(1)
				return nil
			}
			success.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := BroadcastResult{Success: int(success.Load()), Failure: int(failure.Load())}
	b.log.Info("announcement sent", "admin_id", caller, "recipients", len(recipients), "success", res.Success, "failure", res.Failure)
	return res, nil
}

// WaitingCount returns the number of queued users.
func (b *Broadcaster) WaitingCount() int { return b.matcher.WaitingCount() }

// ActiveChatCount returns the number of active pairs.
func (b *Broadcaster) ActiveChatCount() int { return b.matcher.ActiveChatCount() }
