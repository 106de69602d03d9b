package telegram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseUpdates(t *testing.T) {
	body := []byte(`{
		"ok": true,
		"result": [
			{
				"update_id": 100,
				"message": {
					"message_id": 7,
					"from": {"id": 42, "is_bot": false, "username": "alice"},
					"chat": {"id": 42, "type": "private"},
					"date": 1717243200,
					"text": "/generate a red bicycle"
				}
			},
			{
				"update_id": 101,
				"message": {
					"message_id": 8,
					"from": {"id": 43, "is_bot": false},
					"chat": {"id": -100123, "type": "supergroup", "title": "painters"},
					"date": 1717243260,
					"text": "hello"
				}
			},
			{
				"update_id": 102,
				"edited_message": {"message_id": 9}
			}
		]
	}`)

	updates := ParseUpdates(body)
	require.Len(t, updates, 3)

	assert.Equal(t, int64(100), updates[0].ID)
	require.NotNil(t, updates[0].Message)
	assert.Equal(t, "/generate a red bicycle", updates[0].Message.Text)
	assert.Equal(t, int64(42), updates[0].Message.Chat.ID)
	assert.False(t, updates[0].Message.Chat.IsGroup())
	require.NotNil(t, updates[0].Message.From)
	assert.Equal(t, int64(42), updates[0].Message.From.ID)
	assert.Equal(t, "alice", updates[0].Message.From.Username)

	assert.True(t, updates[1].Message.Chat.IsGroup())
	assert.Equal(t, int64(-100123), updates[1].Message.Chat.ID)

	// Update types the bot does not handle still advance the offset
	assert.Equal(t, int64(102), updates[2].ID)
	assert.Nil(t, updates[2].Message)
}

func TestParseUpdatesEmpty(t *testing.T) {
	assert.Empty(t, ParseUpdates([]byte(`{"ok": true, "result": []}`)))
}

func TestParseUpdatesMalformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "oops"},
		{"missing result", `{"ok": true}`},
		{"result not array", `{"ok": true, "result": 5}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, ParseUpdates([]byte(tt.body)))
		})
	}
}

func TestParseUpdatesSkipsMissingID(t *testing.T) {
	body := []byte(`{"ok": true, "result": [
		{"message": {"message_id": 1}},
		{"update_id": 5}
	]}`)

	updates := ParseUpdates(body)
	require.Len(t, updates, 1)
	assert.Equal(t, int64(5), updates[0].ID)
}
