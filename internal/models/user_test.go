package models_test

import (
	"anonchat/backend/internal/models"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestUserProfile_DisplayName verifies the nickname fallback used in logs.
func TestUserProfile_DisplayName(t *testing.T) {
	alice := "Alice"
	empty := ""

	tests := []struct {
		name    string
		profile models.UserProfile
		want    string
		named   bool
	}{
		{name: "nickname set", profile: models.UserProfile{UserID: "1", Nickname: &alice}, want: "Alice", named: true},
		{name: "no nickname", profile: models.UserProfile{UserID: "2"}, want: models.DefaultNickname},
		{name: "empty nickname", profile: models.UserProfile{UserID: "3", Nickname: &empty}, want: models.DefaultNickname},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.profile.DisplayName())
			assert.Equal(t, tt.named, tt.profile.HasNickname())
		})
	}
}

// TestIsTransitionAllowed covers the conversation transition table.
func TestIsTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to models.ConversationState
		allowed  bool
	}{
		{models.StateOnboarding, models.StateIdle, true},
		{models.StateOnboarding, models.StateCancelled, true},
		{models.StateOnboarding, models.StateSearching, false},
		{models.StateIdle, models.StateSearching, true},
		{models.StateIdle, models.StateChatting, true},
		{models.StateSearching, models.StateChatting, true},
		{models.StateSearching, models.StateIdle, true},
		{models.StateChatting, models.StateIdle, true},
		{models.StateChatting, models.StateSearching, false},
		{models.StateCancelled, models.StateIdle, false},
		{models.StateCancelled, models.StateOnboarding, true},
		{models.StateChatting, models.StateOnboarding, true},
		{models.StateIdle, models.StateIdle, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.allowed, models.IsTransitionAllowed(tt.from, tt.to))
		})
	}
}

func TestConversationState_CanChat(t *testing.T) {
	assert.False(t, models.StateOnboarding.CanChat())
	assert.False(t, models.StateCancelled.CanChat())
	assert.True(t, models.StateIdle.CanChat())
	assert.True(t, models.StateSearching.CanChat())
	assert.True(t, models.StateChatting.CanChat())
}

func TestMessage_Body(t *testing.T) {
	assert.Equal(t, "hi", models.Message{Kind: models.KindText, Text: "hi"}.Body())
	assert.Equal(t, "look", models.Message{Kind: models.KindPhoto, FileID: "f", Caption: "look"}.Body())
	assert.Empty(t, models.Message{Kind: models.KindSticker, FileID: "s"}.Body())
}

func TestEvent_IsCommand(t *testing.T) {
	ev := models.Event{Kind: models.EventCommand, Command: "search"}
	assert.True(t, ev.IsCommand("search"))
	assert.False(t, ev.IsCommand("end"))
	assert.False(t, models.Event{Kind: models.EventText, Command: "search"}.IsCommand("search"))
}
