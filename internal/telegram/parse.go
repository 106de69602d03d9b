package telegram

import (
	"log/slog"

	"github.com/tidwall/gjson"
)

// ParseUpdates extracts updates from a raw getUpdates response body. Unknown
// fields and update types the bot does not handle are skipped silently;
// malformed entries are logged and dropped rather than failing the batch.
func ParseUpdates(body []byte) []Update {
	result := gjson.GetBytes(body, "result")
	if !result.Exists() || !result.IsArray() {
		return nil
	}

	var updates []Update
	result.ForEach(func(_, raw gjson.Result) bool {
		id := raw.Get("update_id")
		if !id.Exists() {
			slog.Warn("skipping update without update_id")
			return true
		}

		u := Update{ID: id.Int()}
		if msg := raw.Get("message"); msg.Exists() {
			u.Message = parseMessage(msg)
		}
		updates = append(updates, u)
		return true
	})
	return updates
}

func parseMessage(raw gjson.Result) *Message {
	m := &Message{
		ID:   raw.Get("message_id").Int(),
		Text: raw.Get("text").String(),
		Chat: Chat{
			ID:   raw.Get("chat.id").Int(),
			Type: raw.Get("chat.type").String(),
		},
	}
	if from := raw.Get("from"); from.Exists() {
		m.From = &User{
			ID:       from.Get("id").Int(),
			Username: from.Get("username").String(),
			IsBot:    from.Get("is_bot").Bool(),
		}
	}
	return m
}
