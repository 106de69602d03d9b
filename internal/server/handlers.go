package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"imagebot/internal/ledger"
	"imagebot/internal/version"
)

// Handler holds the dependencies for HTTP handlers
type Handler struct {
	ledger *ledger.Ledger
	now    func() time.Time
}

// NewHandler creates a new handler over the ledger.
func NewHandler(l *ledger.Ledger) *Handler {
	return &Handler{ledger: l, now: time.Now}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
	})
}

// usageResponse is the admin view over the ledger.
type usageResponse struct {
	ledger.Summary
	Since string `json:"since"`
}

// Usage handles GET /admin/usage. RequestsSince counts from the start of the
// current UTC day.
func (h *Handler) Usage(c echo.Context) error {
	now := h.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	return c.JSON(http.StatusOK, usageResponse{
		Summary: h.ledger.Summarize(dayStart),
		Since:   dayStart.Format(time.RFC3339),
	})
}
