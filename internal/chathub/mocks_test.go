package chathub_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"anonchat/backend/internal/session"
	"context"
	"io"
	"log/slog"

	"github.com/stretchr/testify/mock"
)

// MockGateway is a testify mock of chathub.Gateway.
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendText(ctx context.Context, to models.UserID, text string) error {
	args := m.Called(ctx, to, text)
	return args.Error(0)
}

func (m *MockGateway) Forward(ctx context.Context, from, to models.UserID, msg models.Message) error {
	args := m.Called(ctx, from, to, msg)
	return args.Error(0)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestMatcher returns a Matcher over a fresh store with the given users onboarded.
func newTestMatcher(users ...models.UserID) (*chathub.Matcher, *session.Store) {
	store := session.NewStore(nil)
	for _, id := range users {
		_ = store.SetNickname(id, "nick-"+string(id))
	}
	return chathub.NewMatcherService(store, testLogger()), store
}
