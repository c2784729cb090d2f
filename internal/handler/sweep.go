package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rsahakyan/seatledger/internal/sweeper"
)

// SweepHandler exposes the lifecycle sweeper's batch operations.  Both
// endpoints are operator actions and return the sweep report.
type SweepHandler struct {
	Sweeper *sweeper.Sweeper
}

// NewSweepHandler constructs a SweepHandler.
func NewSweepHandler(s *sweeper.Sweeper) *SweepHandler {
	if s == nil {
		panic("nil sweeper passed to NewSweepHandler")
	}
	return &SweepHandler{Sweeper: s}
}

// CancelPending handles POST /v1/sweep/cancel-pending.
func (h *SweepHandler) CancelPending(c echo.Context) error {
	report, err := h.Sweeper.CancelAllPending(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, report)
}

// PurgeCancelled handles POST /v1/sweep/purge-cancelled.
func (h *SweepHandler) PurgeCancelled(c echo.Context) error {
	report, err := h.Sweeper.PurgeCancelled(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	return c.JSON(http.StatusOK, report)
}
