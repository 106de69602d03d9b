package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"imagebot/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := New("test-token")
	client.SetBaseURL(server.URL)
	return client
}

func TestSendMessage(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body = readBody(t, r)
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 1}}`))
	})

	err := client.SendMessage(context.Background(), SendMessageParams{
		ChatID:    42,
		Text:      "<pre>oops</pre>",
		ParseMode: ParseModeHTML,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(42), gjson.GetBytes(body, "chat_id").Int())
	assert.Equal(t, "<pre>oops</pre>", gjson.GetBytes(body, "text").String())
	assert.Equal(t, "HTML", gjson.GetBytes(body, "parse_mode").String())
}

func TestSendMessageOmitsEmptyOptionals(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body = readBody(t, r)
		_, _ = w.Write([]byte(`{"ok": true, "result": {}}`))
	})

	require.NoError(t, client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "hi"}))

	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.NotContains(t, fields, "parse_mode")
	assert.NotContains(t, fields, "reply_to_message_id")
}

func TestSendPhoto(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendPhoto", r.URL.Path)
		body = readBody(t, r)
		_, _ = w.Write([]byte(`{"ok": true, "result": {}}`))
	})

	err := client.SendPhoto(context.Background(), -100123, "https://images.example.com/abc.png", "group: a red bicycle")
	require.NoError(t, err)

	assert.Equal(t, int64(-100123), gjson.GetBytes(body, "chat_id").Int())
	assert.Equal(t, "https://images.example.com/abc.png", gjson.GetBytes(body, "photo").String())
	assert.Equal(t, "group: a red bicycle", gjson.GetBytes(body, "caption").String())
}

func TestSendChatAction(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendChatAction", r.URL.Path)
		body = readBody(t, r)
		_, _ = w.Write([]byte(`{"ok": true, "result": true}`))
	})

	require.NoError(t, client.SendChatAction(context.Background(), 42, ChatActionTyping))
	assert.Equal(t, "typing", gjson.GetBytes(body, "action").String())
}

func TestSendMessageAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok": false, "error_code": 400, "description": "Bad Request: chat not found"}`))
	})

	err := client.SendMessage(context.Background(), SendMessageParams{ChatID: 1, Text: "hi"})
	require.Error(t, err)

	apiErr, ok := core.AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, "telegram", apiErr.Service)
	assert.Equal(t, "Bad Request: chat not found", apiErr.Message)
}

func TestGetUpdates(t *testing.T) {
	var body []byte
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/getUpdates", r.URL.Path)
		body = readBody(t, r)
		_, _ = w.Write([]byte(`{"ok": true, "result": [
			{"update_id": 7, "message": {"message_id": 1, "chat": {"id": 42, "type": "private"}, "text": "/start"}}
		]}`))
	})

	updates, err := client.GetUpdates(context.Background(), 7, 30*time.Second)
	require.NoError(t, err)

	assert.Equal(t, int64(7), gjson.GetBytes(body, "offset").Int())
	assert.Equal(t, int64(30), gjson.GetBytes(body, "timeout").Int())

	require.Len(t, updates, 1)
	assert.Equal(t, int64(7), updates[0].ID)
	assert.Equal(t, "/start", updates[0].Message.Text)
}

func TestPollerAdvancesOffset(t *testing.T) {
	var offsets []int64
	calls := 0
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		offsets = append(offsets, gjson.GetBytes(readBody(t, r), "offset").Int())
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"ok": true, "result": [
				{"update_id": 10, "message": {"message_id": 1, "chat": {"id": 1, "type": "private"}, "text": "a"}},
				{"update_id": 11, "message": {"message_id": 2, "chat": {"id": 1, "type": "private"}, "text": "b"}}
			]}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok": true, "result": []}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	var handled []string
	poller := NewPoller(client, HandlerFunc(func(_ context.Context, u Update) {
		handled = append(handled, u.Message.Text)
		if len(handled) == 2 {
			cancel()
		}
	}))

	err := poller.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"a", "b"}, handled)

	require.GreaterOrEqual(t, len(offsets), 1)
	assert.Equal(t, int64(0), offsets[0])
	if len(offsets) > 1 {
		// Everything through update 11 is acknowledged on the next poll
		assert.Equal(t, int64(12), offsets[1])
	}
}

func readBody(t *testing.T, r *http.Request) []byte {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	return body
}
