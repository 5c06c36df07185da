package chathub_test

import (
	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_Unauthorized(t *testing.T) {
	matcher, _ := newTestMatcher()
	gw := new(MockGateway)
	b := chathub.NewBroadcaster(matcher, gw, chathub.NewAdminSet("admin"), 2, testLogger())

	_, err := b.Broadcast(context.Background(), "someone", "Hello")

	assert.ErrorIs(t, err, chathub.ErrUnauthorized)
	gw.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything)
}

func TestBroadcaster_EmptyMessage(t *testing.T) {
	matcher, _ := newTestMatcher()
	b := chathub.NewBroadcaster(matcher, new(MockGateway), chathub.NewAdminSet("admin"), 2, testLogger())

	_, err := b.Broadcast(context.Background(), "admin", "   ")

	assert.ErrorIs(t, err, chathub.ErrEmptyMessage)
}

// TestBroadcaster_IsolatesFailures covers scenario 5: four chatting users, one
// unreachable, the registry untouched.
func TestBroadcaster_IsolatesFailures(t *testing.T) {
	matcher, _ := newTestMatcher("A", "B", "C", "D", "E")
	_, err := matcher.Pair("A", "B")
	require.NoError(t, err)
	_, err = matcher.Pair("C", "D")
	require.NoError(t, err)
	require.NoError(t, matcher.Enqueue("E"))
	before := matcher.Snapshot()

	gw := new(MockGateway)
	gw.On("SendText", mock.Anything, models.UserID("C"), "[!] Hello").Return(errors.New("blocked")).Once()
	gw.On("SendText", mock.Anything, mock.Anything, "[!] Hello").Return(nil)

	b := chathub.NewBroadcaster(matcher, gw, chathub.NewAdminSet("admin"), 2, testLogger())
	b.Format = func(text string) string { return "[!] " + text }

	res, err := b.Broadcast(context.Background(), "admin", " Hello ")

	require.NoError(t, err)
	assert.Equal(t, chathub.BroadcastResult{Success: 3, Failure: 1}, res)
	assert.Equal(t, before, matcher.Snapshot(), "broadcast never mutates the registry")
	gw.AssertNumberOfCalls(t, "SendText", 4)
	gw.AssertNotCalled(t, "SendText", mock.Anything, models.UserID("E"), mock.Anything)
}

func TestBroadcaster_NoRecipients(t *testing.T) {
	matcher, _ := newTestMatcher()
	b := chathub.NewBroadcaster(matcher, new(MockGateway), chathub.NewAdminSet("admin"), 0, testLogger())

	res, err := b.Broadcast(context.Background(), "admin", "Hello")

	require.NoError(t, err)
	assert.Zero(t, res.Success+res.Failure)
}

func TestBroadcaster_Counts(t *testing.T) {
	matcher, _ := newTestMatcher("A", "B", "C")
	_, _ = matcher.Pair("A", "B")
	require.NoError(t, matcher.Enqueue("C"))
	b := chathub.NewBroadcaster(matcher, new(MockGateway), chathub.NewAdminSet("", "admin"), 0, testLogger())

	assert.True(t, b.IsAdmin("admin"))
	assert.False(t, b.IsAdmin(""))
	assert.Equal(t, 1, b.WaitingCount())
	assert.Equal(t, 1, b.ActiveChatCount())
}
