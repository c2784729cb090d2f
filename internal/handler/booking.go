package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/cache"
	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/queue"
)

// EventPublisher is the slice of the queue publisher the handlers
// need.  A nil publisher disables event emission.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.BookingEvent) error
}

// BookingHandler exposes the reservation engine's operations over
// HTTP.  Events and cache invalidation happen after the engine call
// succeeds; both are best-effort and never fail the request.
type BookingHandler struct {
	Engine *engine.Engine
	Cache  *cache.Availability
	Events EventPublisher
	Log    *zap.Logger
}

// NewBookingHandler constructs a BookingHandler.  Engine and Cache
// must be non-nil; Events may be nil.
func NewBookingHandler(eng *engine.Engine, avail *cache.Availability, events EventPublisher, log *zap.Logger) *BookingHandler {
	if eng == nil || avail == nil {
		panic("nil dependency passed to NewBookingHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BookingHandler{Engine: eng, Cache: avail, Events: events, Log: log}
}

// Allocate handles POST /v1/shows/:id/bookings.  The body carries the
// customer and the number of seats; the engine picks the concrete
// seats deterministically.
func (h *BookingHandler) Allocate(c echo.Context) error {
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var body struct {
		CustomerID uint64 `json:"customer_id"`
		SeatCount  int    `json:"seat_count"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if body.CustomerID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "customer_id is required"})
	}

	res, err := h.Engine.AllocateSeats(c.Request().Context(), body.CustomerID, showID, body.SeatCount)
	if err != nil {
		return writeEngineError(c, err)
	}
	h.afterMutation(c, res.ShowID, queue.BookingEvent{
		Type:       queue.EventBookingCreated,
		BookingID:  res.BookingID,
		CustomerID: res.CustomerID,
		ShowID:     res.ShowID,
		SeatIDs:    res.SeatIDs,
		TotalCents: res.TotalCents,
	})
	return c.JSON(http.StatusCreated, echo.Map{
		"booking_id":  res.BookingID,
		"show_id":     res.ShowID,
		"seat_ids":    res.SeatIDs,
		"total_cents": res.TotalCents,
		"status":      "PENDING",
	})
}

// Swap handles POST /v1/bookings/:id/swap, moving part of the booking
// onto strictly cheaper seats when possible.
func (h *BookingHandler) Swap(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var body struct {
		SeatCount int `json:"seat_count"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}

	res, err := h.Engine.SwapToCheaperSeats(c.Request().Context(), bookingID, body.SeatCount)
	if err != nil {
		return writeEngineError(c, err)
	}
	if res.Swapped {
		h.afterMutation(c, res.ShowID, queue.BookingEvent{
			Type:       queue.EventBookingSwapped,
			BookingID:  res.BookingID,
			ShowID:     res.ShowID,
			SeatIDs:    res.ClaimedSeats,
			TotalCents: res.NewTotalCents,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":      res.BookingID,
		"swapped":         res.Swapped,
		"released_seats":  res.ReleasedSeats,
		"claimed_seats":   res.ClaimedSeats,
		"old_total_cents": res.OldTotalCents,
		"new_total_cents": res.NewTotalCents,
	})
}

// Cancel handles DELETE /v1/bookings/:id.  Cancelling twice is not an
// error; the second call reports the already-terminal state.
func (h *BookingHandler) Cancel(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	res, err := h.Engine.CancelBooking(c.Request().Context(), bookingID)
	if err != nil {
		return writeEngineError(c, err)
	}
	if !res.AlreadyCancelled {
		h.afterMutation(c, res.ShowID, queue.BookingEvent{
			Type:      queue.EventBookingCancelled,
			BookingID: res.BookingID,
			ShowID:    res.ShowID,
			SeatIDs:   res.ReleasedSeats,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":        res.BookingID,
		"released_seats":    res.ReleasedSeats,
		"already_cancelled": res.AlreadyCancelled,
	})
}

// Get handles GET /v1/bookings/:id, returning the ledger row plus the
// booking's current holdings.
func (h *BookingHandler) Get(c echo.Context) error {
	bookingID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	booking, held, err := h.Engine.GetBooking(c.Request().Context(), bookingID)
	if err != nil {
		return writeEngineError(c, err)
	}
	seats := make([]echo.Map, 0, len(held))
	var total uint32
	for _, s := range held {
		seats = append(seats, echo.Map{"seat_id": s.ID, "price_cents": s.PriceCents})
		total += s.PriceCents
	}
	return c.JSON(http.StatusOK, echo.Map{
		"booking_id":  booking.ID,
		"customer_id": booking.CustomerID,
		"show_id":     booking.ShowID,
		"status":      booking.Status,
		"seat_count":  booking.SeatCount,
		"created_at":  booking.CreatedAt,
		"seats":       seats,
		"total_cents": total,
	})
}

// afterMutation invalidates the show's availability cache and
// publishes the lifecycle event.  Failures are logged only.
func (h *BookingHandler) afterMutation(c echo.Context, showID uint64, ev queue.BookingEvent) {
	ctx := c.Request().Context()
	if err := h.Cache.Invalidate(ctx, showID); err != nil {
		h.Log.Warn("availability cache invalidation failed",
			zap.Uint64("show_id", showID), zap.Error(err))
	}
	if h.Events != nil {
		if err := h.Events.Publish(ctx, ev); err != nil {
			h.Log.Warn("event publish failed",
				zap.String("event_type", ev.Type), zap.Error(err))
		}
	}
}

// pathID parses a positive uint64 path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, echo.ErrBadRequest
	}
	return id, nil
}
