package bot

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imagebot/internal/state"
	"imagebot/internal/telegram"
)

func newConversationFixture(t *testing.T) (*Conversation, *fixture) {
	t.Helper()
	f := newFixture(t)
	conv := NewConversation(f.controller, state.NewLocalStore(), f.messenger)
	return conv, f
}

func update(text string) telegram.Update {
	return telegram.Update{
		ID: 1,
		Message: &telegram.Message{
			ID:   1,
			Chat: telegram.Chat{ID: testUserChat, Type: "private"},
			From: &telegram.User{ID: testUserID},
			Text: text,
		},
	}
}

func TestStartSendsGreeting(t *testing.T) {
	conv, f := newConversationFixture(t)

	conv.HandleUpdate(context.Background(), update("/start"))

	msgs := f.messenger.messagesFor(testUserChat)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].text, "one request per 60 seconds")
	assert.Contains(t, msgs[0].text, "5 images per day")
	assert.Empty(t, f.provider.generateCalls)
}

func TestGenerateWithArgument(t *testing.T) {
	conv, f := newConversationFixture(t)

	conv.HandleUpdate(context.Background(), update("/generate a red bicycle"))

	assert.Equal(t, []string{"a red bicycle"}, f.provider.generateCalls)
	require.Len(t, f.messenger.photos, 2)
}

func TestBareGenerateAwaitsPrompt(t *testing.T) {
	conv, f := newConversationFixture(t)
	ctx := context.Background()

	conv.HandleUpdate(ctx, update("/generate"))

	msgs := f.messenger.messagesFor(testUserChat)
	require.Len(t, msgs, 1)
	assert.Equal(t, "K let's do this! What image should I generate?", msgs[0].text)
	assert.Empty(t, f.provider.generateCalls)

	// The next plain message is the prompt
	conv.HandleUpdate(ctx, update("a red bicycle"))
	assert.Equal(t, []string{"a red bicycle"}, f.provider.generateCalls)

	// And the one after that is back to being ignored
	conv.HandleUpdate(ctx, update("another message"))
	assert.Equal(t, []string{"a red bicycle"}, f.provider.generateCalls)
}

func TestPlainTextIgnoredWhenIdle(t *testing.T) {
	conv, f := newConversationFixture(t)

	conv.HandleUpdate(context.Background(), update("a red bicycle"))

	assert.Empty(t, f.provider.moderationCalls)
	assert.Empty(t, f.messenger.messages)
}

func TestCancelResetsAwaitingPrompt(t *testing.T) {
	conv, f := newConversationFixture(t)
	ctx := context.Background()

	conv.HandleUpdate(ctx, update("/generate"))
	conv.HandleUpdate(ctx, update("/cancel"))
	conv.HandleUpdate(ctx, update("a red bicycle"))

	assert.Empty(t, f.provider.generateCalls)
}

func TestGenerateWithBotMention(t *testing.T) {
	conv, f := newConversationFixture(t)

	conv.HandleUpdate(context.Background(), update("/generate@PaintMeBot a red bicycle"))

	assert.Equal(t, []string{"a red bicycle"}, f.provider.generateCalls)
}

func TestUpdatesFromBotsIgnored(t *testing.T) {
	conv, f := newConversationFixture(t)

	u := update("/generate a red bicycle")
	u.Message.From.IsBot = true
	conv.HandleUpdate(context.Background(), u)

	assert.Empty(t, f.provider.moderationCalls)
}

func TestUpdatesWithoutMessageIgnored(t *testing.T) {
	conv, f := newConversationFixture(t)

	conv.HandleUpdate(context.Background(), telegram.Update{ID: 1})

	assert.Empty(t, f.provider.moderationCalls)
	assert.Empty(t, f.messenger.messages)
}

func TestUnknownCommandIgnored(t *testing.T) {
	conv, f := newConversationFixture(t)

	conv.HandleUpdate(context.Background(), update("/weather tomorrow"))

	assert.Empty(t, f.provider.moderationCalls)
	assert.Empty(t, f.messenger.messages)
}

func TestGroupUpdateMarksRecord(t *testing.T) {
	conv, f := newConversationFixture(t)

	u := update("/generate a red bicycle")
	u.Message.Chat.Type = "supergroup"
	conv.HandleUpdate(context.Background(), u)

	require.Len(t, f.store.records, 1)
	assert.True(t, f.store.records[0].IsGroup)
}
