package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Handler processes one incoming update.
type Handler interface {
	HandleUpdate(ctx context.Context, update Update)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(ctx context.Context, update Update)

func (f HandlerFunc) HandleUpdate(ctx context.Context, update Update) {
	f(ctx, update)
}

// Poller drives the long-polling loop and dispatches updates to a Handler.
type Poller struct {
	client      *Client
	handler     Handler
	pollTimeout time.Duration
	retryDelay  time.Duration
	offset      int64
}

// NewPoller creates a poller over client that feeds updates to handler.
func NewPoller(client *Client, handler Handler) *Poller {
	return &Poller{
		client:      client,
		handler:     handler,
		pollTimeout: 30 * time.Second,
		retryDelay:  5 * time.Second,
	}
}

// Run polls until ctx is cancelled. Updates within a batch are handled
// sequentially so per-chat ordering is preserved; a handler panic-free
// return advances the offset past the whole batch.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("starting update poller", "poll_timeout", p.pollTimeout)

	for {
		updates, err := p.client.GetUpdates(ctx, p.offset, p.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				slog.Info("update poller stopped")
				return ctx.Err()
			}
			slog.Error("failed to fetch updates", "error", err, "retry_in", p.retryDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.retryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.ID >= p.offset {
				p.offset = update.ID + 1
			}
			p.handler.HandleUpdate(ctx, update)
		}
	}
}
