// Package telegram implements the Telegram Bot API transport: a typed client
// for the handful of methods the bot needs, plus a long-polling update loop.
package telegram

import "strings"

// Update is a single incoming event from getUpdates.
type Update struct {
	ID      int64
	Message *Message
}

// Message is an incoming chat message. Only the fields the bot acts on are
// carried; everything else in the API payload is ignored.
type Message struct {
	ID   int64
	Chat Chat
	From *User
	Text string
}

// Chat identifies where a message came from.
type Chat struct {
	ID   int64
	Type string
}

// IsGroup reports whether the chat is a multi-user chat rather than a
// private conversation.
func (c Chat) IsGroup() bool {
	return c.Type == "group" || c.Type == "supergroup"
}

// User is the sender of a message.
type User struct {
	ID       int64
	Username string
	IsBot    bool
}

// ParseCommand splits a bot command message into its command name and
// trailing arguments. It accepts the "/cmd@BotName args" form used in group
// chats; the bot mention is stripped. ok is false when text is not a command.
func ParseCommand(text string) (command, args string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}

	head := text
	if i := strings.IndexAny(text, " \t\n"); i >= 0 {
		head = text[:i]
		args = strings.TrimSpace(text[i+1:])
	}

	command = strings.TrimPrefix(head, "/")
	if i := strings.Index(command, "@"); i >= 0 {
		command = command[:i]
	}
	if command == "" {
		return "", "", false
	}
	return strings.ToLower(command), args, true
}
