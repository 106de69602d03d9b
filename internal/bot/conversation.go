package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"imagebot/internal/core"
	"imagebot/internal/observability"
	"imagebot/internal/state"
	"imagebot/internal/telegram"
)

// Conversation is the per-chat state machine sitting between the update
// stream and the controller. A chat is either idle (commands only) or
// awaiting a prompt after a bare /generate.
type Conversation struct {
	controller *Controller
	states     state.Store
	messenger  Messenger
}

// NewConversation creates the update handler.
func NewConversation(controller *Controller, states state.Store, messenger Messenger) *Conversation {
	return &Conversation{
		controller: controller,
		states:     states,
		messenger:  messenger,
	}
}

// HandleUpdate processes one incoming update. It never returns an error;
// everything unexpected goes through the controller's reporter so a single
// bad update cannot stop the poll loop.
func (c *Conversation) HandleUpdate(ctx context.Context, update telegram.Update) {
	observability.UpdatesReceived.Inc()

	msg := update.Message
	if msg == nil || msg.From == nil || msg.From.IsBot {
		return
	}

	ctx = core.WithRequestID(ctx, uuid.NewString())

	if command, args, ok := telegram.ParseCommand(msg.Text); ok {
		c.handleCommand(ctx, msg, command, args)
		return
	}
	c.handleText(ctx, msg)
}

func (c *Conversation) handleCommand(ctx context.Context, msg *telegram.Message, command, args string) {
	switch command {
	case "start":
		c.sendGreeting(ctx, msg.Chat.ID)
		c.setPhase(ctx, msg.Chat.ID, state.PhaseIdle)
	case "generate":
		c.dispatch(ctx, msg, args)
	case "cancel":
		c.setPhase(ctx, msg.Chat.ID, state.PhaseIdle)
	default:
		slog.Debug("ignoring unknown command", "command", command)
	}
}

func (c *Conversation) handleText(ctx context.Context, msg *telegram.Message) {
	phase, err := c.states.Get(ctx, msg.Chat.ID)
	if err != nil {
		slog.Error("failed to read conversation phase", "error", err)
		return
	}
	if phase != state.PhaseAwaitingPrompt {
		return
	}
	c.dispatch(ctx, msg, msg.Text)
}

// dispatch runs the request and applies the one state transition that
// exists: PromptRequired moves the chat to awaiting-prompt, everything else
// back to idle.
func (c *Conversation) dispatch(ctx context.Context, msg *telegram.Message, prompt string) {
	outcome := c.controller.AdmitAndDispatch(ctx, Request{
		UserID:  msg.From.ID,
		ChatID:  msg.Chat.ID,
		IsGroup: msg.Chat.IsGroup(),
		Prompt:  prompt,
	})

	next := state.PhaseIdle
	if outcome.Kind == OutcomePromptRequired {
		next = state.PhaseAwaitingPrompt
	}
	c.setPhase(ctx, msg.Chat.ID, next)
}

func (c *Conversation) setPhase(ctx context.Context, chatID int64, phase state.Phase) {
	if err := c.states.Set(ctx, chatID, phase); err != nil {
		slog.Error("failed to store conversation phase", "error", err, "chat_id", chatID)
	}
}

func (c *Conversation) sendGreeting(ctx context.Context, chatID int64) {
	cfg := c.controller.Config()
	greeting := fmt.Sprintf(
		"Hi there! Send me a prompt and I'll reply with a generated image.\n"+
			"As image generation is not for free, there is a limit of one request per %d seconds and %d images per day.\n"+
			"To enforce this, an anonymised hash of your user id is stored together with the timestamp of each request.\n"+
			"Prompts are stored as well, fully anonymised, to comply with the provider's moderation policy.\n\n"+
			"Use /generate <description> to request an image, or /generate on its own and I'll ask for one. /cancel resets the conversation.",
		int64(cfg.MinRequestInterval/time.Second), cfg.MaxRequestsPerDay)

	if err := c.messenger.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: greeting}); err != nil {
		slog.Error("failed to send greeting", "error", err)
	}
}
