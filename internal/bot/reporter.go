package bot

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"unicode/utf8"

	"imagebot/internal/core"
	"imagebot/internal/telegram"
)

// maxReportLength is the transport's message size limit.
const maxReportLength = 4096

// Reporter forwards unexpected failures to the operator channel as an
// HTML-escaped diagnostic. It never returns an error: a reporter failure is
// logged, not escalated, so a broken operator channel cannot take down the
// request loop.
type Reporter struct {
	messenger      Messenger
	operatorChatID int64
}

// NewReporter creates a reporter targeting the operator chat.
func NewReporter(messenger Messenger, operatorChatID int64) *Reporter {
	return &Reporter{messenger: messenger, operatorChatID: operatorChatID}
}

// Report logs err and sends the diagnostic to the operator channel.
func (r *Reporter) Report(ctx context.Context, summary string, err error) {
	slog.Error("unexpected failure while handling an update",
		"summary", summary,
		"error", err,
		"request_id", core.GetRequestID(ctx))

	detail := fmt.Sprintf("%s: %v", summary, err)
	message := "An exception was raised while handling an update\n<pre>" + html.EscapeString(detail) + "</pre>"
	message = truncateReport(message)

	sendErr := r.messenger.SendMessage(ctx, telegram.SendMessageParams{
		ChatID:    r.operatorChatID,
		Text:      message,
		ParseMode: telegram.ParseModeHTML,
	})
	if sendErr != nil {
		slog.Error("failed to notify operator", "error", sendErr)
	}
}

// truncateReport bounds the message to maxReportLength bytes, keeping the
// closing </pre> tag and never cutting through a UTF-8 sequence.
func truncateReport(message string) string {
	if len(message) <= maxReportLength {
		return message
	}

	cut := maxReportLength - len("</pre>")
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut] + "</pre>"
}
