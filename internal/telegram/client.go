package telegram

import (
	"context"
	"net/http"
	"time"

	"imagebot/internal/pkg/apiclient"
)

const apiBase = "https://api.telegram.org"

// ParseModeHTML requests HTML entity parsing for outgoing messages.
const ParseModeHTML = "HTML"

// ChatActionTyping shows the "typing..." indicator in the chat.
const ChatActionTyping = "typing"

// Client is a typed client for the Bot API methods the bot uses.
type Client struct {
	client *apiclient.Client
}

// New creates a client for the bot identified by token.
func New(token string) *Client {
	cfg := apiclient.DefaultConfig("telegram", apiBase+"/bot"+token)
	// Two quick retries cover transient API hiccups for sends and polls
	// alike; persistent poll failures fall through to the poller's own
	// retry delay.
	cfg.MaxRetries = 2
	cfg.InitialBackoff = 500 * time.Millisecond
	return &Client{client: apiclient.New(cfg, nil)}
}

// NewWithHTTPClient creates a client with a custom HTTP client.
func NewWithHTTPClient(token string, httpClient *http.Client) *Client {
	cfg := apiclient.DefaultConfig("telegram", apiBase+"/bot"+token)
	cfg.MaxRetries = 2
	cfg.InitialBackoff = 500 * time.Millisecond
	return &Client{client: apiclient.NewWithHTTPClient(httpClient, cfg, nil)}
}

// SetBaseURL allows configuring a custom base URL (used in tests). The token
// must already be part of the URL.
func (c *Client) SetBaseURL(url string) {
	c.client.SetBaseURL(url)
}

// SendMessageParams are the options for SendMessage. ChatID and Text are
// required; the rest map to the optional Bot API fields.
type SendMessageParams struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

// SendMessage delivers a text message.
func (c *Client) SendMessage(ctx context.Context, params SendMessageParams) error {
	return c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/sendMessage",
		Body:     params,
	}, nil)
}

type sendPhotoParams struct {
	ChatID  int64  `json:"chat_id"`
	Photo   string `json:"photo"`
	Caption string `json:"caption,omitempty"`
}

// SendPhoto delivers a photo by URL; Telegram fetches and re-hosts it.
func (c *Client) SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error {
	return c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/sendPhoto",
		Body:     sendPhotoParams{ChatID: chatID, Photo: photoURL, Caption: caption},
	}, nil)
}

type sendChatActionParams struct {
	ChatID int64  `json:"chat_id"`
	Action string `json:"action"`
}

// SendChatAction shows a transient activity indicator in the chat.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	return c.client.Do(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/sendChatAction",
		Body:     sendChatActionParams{ChatID: chatID, Action: action},
	}, nil)
}

type getUpdatesParams struct {
	Offset         int64    `json:"offset,omitempty"`
	Timeout        int      `json:"timeout"`
	AllowedUpdates []string `json:"allowed_updates"`
}

// GetUpdates long-polls for new updates. offset must be one past the highest
// update ID already handled, which acknowledges everything before it.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	resp, err := c.client.DoRaw(ctx, apiclient.Request{
		Method:   http.MethodPost,
		Endpoint: "/getUpdates",
		Body: getUpdatesParams{
			Offset:         offset,
			Timeout:        int(timeout / time.Second),
			AllowedUpdates: []string{"message"},
		},
	})
	if err != nil {
		return nil, err
	}
	return ParseUpdates(resp.Body), nil
}
