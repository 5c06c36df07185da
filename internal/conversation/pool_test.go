package conversation_test

import (
	"anonchat/backend/internal/conversation"
	"anonchat/backend/internal/models"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_PerUserOrder(t *testing.T) {
	var mu sync.Mutex
	seen := make(map[models.UserID][]string)

	handle := func(_ context.Context, ev models.Event) error {
		mu.Lock()
		defer mu.Unlock()
		seen[ev.UserID] = append(seen[ev.UserID], ev.Message.Text)
		return nil
	}
	pool := conversation.NewPool(4, 8, handle, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	users := []models.UserID{"1", "2", "3", "ws-a", "ws-b"}
	for i := 0; i < 50; i++ {
		for _, id := range users {
			ev := models.Event{UserID: id, Kind: models.EventText, Message: models.Message{Text: fmt.Sprint(i)}}
			require.NoError(t, pool.Submit(context.Background(), ev))
		}
	}

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop")
	}

	for _, id := range users {
		require.Len(t, seen[id], 50)
		for i, text := range seen[id] {
			assert.Equal(t, fmt.Sprint(i), text)
		}
	}

	err := pool.Submit(context.Background(), models.Event{UserID: "1"})
	assert.ErrorIs(t, err, conversation.ErrPoolClosed)
}

func TestPool_SurvivesPanicsAndErrors(t *testing.T) {
	var mu sync.Mutex
	var handled []string

	handle := func(_ context.Context, ev models.Event) error {
		switch ev.Message.Text {
		case "panic":
			panic("boom")
		case "error":
			return fmt.Errorf("bad event")
		}
		mu.Lock()
		handled = append(handled, ev.Message.Text)
		mu.Unlock()
		return nil
	}
	pool := conversation.NewPool(1, 4, handle, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pool.Run(ctx) }()

	for _, text := range []string{"panic", "error", "ok"} {
		require.NoError(t, pool.Submit(context.Background(), models.Event{UserID: "1", Message: models.Message{Text: text}}))
	}
	cancel()
	<-done

	assert.Equal(t, []string{"ok"}, handled)
}
