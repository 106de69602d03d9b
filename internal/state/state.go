// Package state tracks per-chat conversation phase.
// Supports both local (in-memory) and Redis backends for multi-instance deployments.
package state

import "context"

// Phase is where a chat currently is in the request conversation.
type Phase string

const (
	// PhaseIdle means the chat has no conversation in flight; only commands
	// are acted on.
	PhaseIdle Phase = "idle"

	// PhaseAwaitingPrompt means the bot asked for a prompt after a bare
	// /generate and the next plain message is treated as that prompt.
	PhaseAwaitingPrompt Phase = "awaiting_prompt"
)

// Store persists conversation phase per chat.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get retrieves the phase for a chat. Chats with no stored phase are idle.
	Get(ctx context.Context, chatID int64) (Phase, error)

	// Set stores the phase for a chat. Setting PhaseIdle clears the entry.
	Set(ctx context.Context, chatID int64, phase Phase) error

	// Close releases any resources held by the store.
	Close() error
}
