// Package bot contains the admission and dispatch core: the decision whether
// an incoming generation request may proceed, the durable usage recording,
// and the two-stage provider call with results routed to the requester and
// the operator channel.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"imagebot/internal/core"
	"imagebot/internal/ledger"
	"imagebot/internal/observability"
	"imagebot/internal/telegram"
)

// Provider is the external moderation and image-generation service.
type Provider interface {
	CheckModeration(ctx context.Context, text string) (bool, error)
	GenerateImage(ctx context.Context, prompt string, size int, user string) (string, error)
}

// Messenger is the outbound side of the chat transport.
type Messenger interface {
	SendMessage(ctx context.Context, params telegram.SendMessageParams) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
	SendChatAction(ctx context.Context, chatID int64, action string) error
}

// Config holds the admission parameters. Fixed at startup.
type Config struct {
	// MinRequestInterval is the minimum gap between two accepted requests
	// from the same identity.
	MinRequestInterval time.Duration

	// MaxRequestsPerDay caps accepted requests per identity per calendar day.
	// The admission rule rejects only once the recorded count exceeds this
	// value, so one request beyond the cap is admitted. Deliberate: the
	// boundary is part of the contract, not an off-by-one to fix.
	MaxRequestsPerDay int

	// DefaultSize is the image edge length in pixels.
	DefaultSize int

	// OperatorChatID is the fixed chat that mirrors accepted, blocked and
	// errored requests.
	OperatorChatID int64

	// Location is the timezone used to compute the start of the current day.
	Location *time.Location
}

// DefaultConfig returns the default admission parameters.
func DefaultConfig() Config {
	return Config{
		MinRequestInterval: 60 * time.Second,
		MaxRequestsPerDay:  5,
		DefaultSize:        256,
		Location:           time.Local,
	}
}

// OutcomeKind classifies the result of one admission and dispatch cycle.
type OutcomeKind string

const (
	OutcomeDelivered      OutcomeKind = "delivered"
	OutcomeTooSoon        OutcomeKind = "too_soon"
	OutcomeQuotaExceeded  OutcomeKind = "quota_exceeded"
	OutcomePromptRequired OutcomeKind = "prompt_required"
	OutcomeBlocked        OutcomeKind = "blocked"
	OutcomeProviderError  OutcomeKind = "provider_error"
	OutcomeInternalError  OutcomeKind = "internal_error"
)

// Outcome is the result of AdmitAndDispatch. Only the fields relevant to the
// Kind are set.
type Outcome struct {
	Kind       OutcomeKind
	RetryAfter time.Duration // TooSoon: wait before the next attempt
	ImageURL   string        // Delivered
	Message    string        // ProviderError: provider-reported reason
}

// Request is one incoming generation request.
type Request struct {
	UserID  int64
	ChatID  int64
	IsGroup bool
	Prompt  string
}

// Controller applies the admission rules and drives the provider calls.
type Controller struct {
	cfg       Config
	ledger    *ledger.Ledger
	provider  Provider
	messenger Messenger
	reporter  *Reporter

	// now is replaceable in tests
	now func() time.Time

	// admit serializes the query-decide-append sequence so two concurrent
	// requests from one identity cannot both pass the checks before either
	// is recorded. Released before any network call.
	admit sync.Mutex
}

// NewController creates a controller. reporter receives diagnostics for
// failures that are not part of the normal outcome set.
func NewController(cfg Config, l *ledger.Ledger, provider Provider, messenger Messenger, reporter *Reporter) *Controller {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Controller{
		cfg:       cfg,
		ledger:    l,
		provider:  provider,
		messenger: messenger,
		reporter:  reporter,
		now:       time.Now,
	}
}

// Config returns the admission parameters the controller runs with.
func (c *Controller) Config() Config {
	return c.cfg
}

// AdmitAndDispatch runs one request through admission and, if admitted,
// through moderation and generation. It delivers all user- and
// operator-facing messages itself; the returned Outcome is for state
// transitions and tests.
func (c *Controller) AdmitAndDispatch(ctx context.Context, req Request) Outcome {
	outcome := c.admitAndDispatch(ctx, req)
	observability.RequestsTotal.WithLabelValues(string(outcome.Kind)).Inc()

	slog.Info("request handled",
		"outcome", outcome.Kind,
		"is_group", req.IsGroup,
		"request_id", core.GetRequestID(ctx))
	return outcome
}

func (c *Controller) admitAndDispatch(ctx context.Context, req Request) Outcome {
	prompt := strings.TrimSpace(req.Prompt)
	identity := ledger.HashUser(req.UserID)
	now := c.now()

	outcome, admitted := c.admitAndRecord(ctx, req, identity, prompt, now)
	if !admitted {
		c.deliverRejection(ctx, req.ChatID, outcome)
		return outcome
	}

	return c.dispatch(ctx, req, identity, prompt)
}

// admitAndRecord is the ledger critical section: interval check, quota
// check, prompt check, then the durable append. No network calls in here.
func (c *Controller) admitAndRecord(ctx context.Context, req Request, identity uint64, prompt string, now time.Time) (Outcome, bool) {
	c.admit.Lock()
	defer c.admit.Unlock()

	if gap := c.ledger.TimeSinceLast(identity, now); gap < c.cfg.MinRequestInterval {
		return Outcome{Kind: OutcomeTooSoon, RetryAfter: c.cfg.MinRequestInterval - gap}, false
	}

	local := now.In(c.cfg.Location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.cfg.Location)
	if count := c.ledger.CountSince(identity, dayStart); count > c.cfg.MaxRequestsPerDay {
		return Outcome{Kind: OutcomeQuotaExceeded}, false
	}

	if prompt == "" {
		return Outcome{Kind: OutcomePromptRequired}, false
	}

	rec := ledger.Record{
		IsGroup:   req.IsGroup,
		Timestamp: now,
		Prompt:    prompt,
		Size:      c.cfg.DefaultSize,
		Identity:  identity,
	}
	if err := c.ledger.Append(ctx, rec); err != nil {
		observability.LedgerAppendFailures.Inc()
		c.reporter.Report(ctx, "failed to record usage", err)
		return Outcome{Kind: OutcomeInternalError}, false
	}

	return Outcome{}, true
}

// dispatch runs the admitted request through moderation and generation and
// delivers the result. The usage record is already written, so a failure
// past this point still counts against quota.
func (c *Controller) dispatch(ctx context.Context, req Request, identity uint64, prompt string) Outcome {
	if err := c.messenger.SendChatAction(ctx, req.ChatID, telegram.ChatActionTyping); err != nil {
		slog.Warn("failed to send chat action", "error", err)
	}

	moderationStart := c.now()
	flagged, err := c.provider.CheckModeration(ctx, prompt)
	observability.ObserveProviderCall("openai", "moderation", moderationStart)
	if err != nil {
		return c.handleProviderError(ctx, req, prompt, err)
	}
	if flagged {
		c.sendText(ctx, req.ChatID, msgBlocked)
		c.sendOperatorText(ctx, fmt.Sprintf("This prompt doesn't comply with the content policy: %s.", prompt))
		return Outcome{Kind: OutcomeBlocked}
	}

	generateStart := c.now()
	imageURL, err := c.provider.GenerateImage(ctx, prompt, c.cfg.DefaultSize, strconv.FormatUint(identity, 10))
	observability.ObserveProviderCall("openai", "generate", generateStart)
	if err != nil {
		return c.handleProviderError(ctx, req, prompt, err)
	}

	if err := c.messenger.SendPhoto(ctx, req.ChatID, imageURL, prompt); err != nil {
		c.reporter.Report(ctx, "failed to deliver image", err)
		return Outcome{Kind: OutcomeInternalError}
	}

	audienceTag := "single user: "
	if req.IsGroup {
		audienceTag = "group: "
	}
	if err := c.messenger.SendPhoto(ctx, c.cfg.OperatorChatID, imageURL, audienceTag+prompt); err != nil {
		slog.Warn("failed to mirror image to operator", "error", err)
	}

	return Outcome{Kind: OutcomeDelivered, ImageURL: imageURL}
}

// handleProviderError surfaces recoverable provider errors (bad request,
// rate limit) to the requester and operator; anything else goes to the
// error reporter only.
func (c *Controller) handleProviderError(ctx context.Context, req Request, prompt string, err error) Outcome {
	if apiErr, ok := core.AsAPIError(err); ok && apiErr.Recoverable() {
		c.sendText(ctx, req.ChatID, apiErr.Message)
		c.sendOperatorText(ctx, prompt+"\n"+apiErr.Message)
		return Outcome{Kind: OutcomeProviderError, Message: apiErr.Message}
	}

	c.reporter.Report(ctx, "provider call failed", err)
	return Outcome{Kind: OutcomeInternalError}
}

const (
	msgBlocked        = "This prompt doesn't comply with the content policy."
	msgPromptRequired = "K let's do this! What image should I generate?"
)

func (c *Controller) deliverRejection(ctx context.Context, chatID int64, outcome Outcome) {
	switch outcome.Kind {
	case OutcomeTooSoon:
		retry := int64(outcome.RetryAfter.Round(time.Second) / time.Second)
		if retry < 1 {
			retry = 1
		}
		c.sendText(ctx, chatID, fmt.Sprintf(
			"Sorry, due to resource constraints, it's only allowed to send one request per %d seconds.\nPlease try again in %d seconds.",
			int64(c.cfg.MinRequestInterval/time.Second), retry))
	case OutcomeQuotaExceeded:
		c.sendText(ctx, chatID, fmt.Sprintf(
			"Sorry, as the image generation is not for free, there is a limit of %d images per day. Please try again tomorrow.",
			c.cfg.MaxRequestsPerDay))
	case OutcomePromptRequired:
		c.sendText(ctx, chatID, msgPromptRequired)
	}
}

func (c *Controller) sendText(ctx context.Context, chatID int64, text string) {
	if err := c.messenger.SendMessage(ctx, telegram.SendMessageParams{ChatID: chatID, Text: text}); err != nil {
		slog.Error("failed to send message", "error", err, "request_id", core.GetRequestID(ctx))
	}
}

func (c *Controller) sendOperatorText(ctx context.Context, text string) {
	c.sendText(ctx, c.cfg.OperatorChatID, text)
}

