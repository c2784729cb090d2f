package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/cache"
	"github.com/rsahakyan/seatledger/internal/engine"
)

// SeatProvisioner is the store-side operation behind seat
// provisioning.  Both the MySQL and the in-memory stores implement it.
type SeatProvisioner interface {
	CreateUnits(ctx context.Context, showID uint64, prices []uint32) ([]uint64, error)
}

// ShowHandler serves the availability projection and seat
// provisioning for show occurrences.
type ShowHandler struct {
	Engine      *engine.Engine
	Cache       *cache.Availability
	Provisioner SeatProvisioner
	Catalog     engine.ShowCatalog
	Log         *zap.Logger
}

// NewShowHandler constructs a ShowHandler.  All dependencies must be
// non-nil.
func NewShowHandler(eng *engine.Engine, avail *cache.Availability, prov SeatProvisioner, catalog engine.ShowCatalog, log *zap.Logger) *ShowHandler {
	if eng == nil || avail == nil || prov == nil || catalog == nil {
		panic("nil dependency passed to NewShowHandler")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ShowHandler{Engine: eng, Cache: avail, Provisioner: prov, Catalog: catalog, Log: log}
}

// Availability handles GET /v1/shows/:id/availability.  The response
// is served from the Redis cache when present; a miss falls through to
// the inventory store and repopulates the cache.
func (h *ShowHandler) Availability(c echo.Context) error {
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	ctx := c.Request().Context()

	units, err := h.Cache.Get(ctx, showID)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			h.Log.Warn("availability cache read failed",
				zap.Uint64("show_id", showID), zap.Error(err))
		}
		units, err = h.Engine.Availability(ctx, showID)
		if err != nil {
			return writeEngineError(c, err)
		}
		if err := h.Cache.Set(ctx, showID, units); err != nil {
			h.Log.Warn("availability cache write failed",
				zap.Uint64("show_id", showID), zap.Error(err))
		}
	}

	seats := make([]echo.Map, 0, len(units))
	for _, u := range units {
		seats = append(seats, echo.Map{"seat_id": u.ID, "price_cents": u.PriceCents})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"show_id":   showID,
		"available": len(seats),
		"seats":     seats,
	})
}

// Provision handles POST /v1/shows/:id/seats, creating priced seat
// units for an existing show.  Prices are fixed here and immutable
// afterwards.
func (h *ShowHandler) Provision(c echo.Context) error {
	showID, err := pathID(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid show id"})
	}
	var body struct {
		Prices []uint32 `json:"prices"`
	}
	if err := c.Bind(&body); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if len(body.Prices) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "prices is required"})
	}
	ctx := c.Request().Context()

	ok, err := h.Catalog.ShowExists(ctx, showID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "show not found"})
	}

	ids, err := h.Provisioner.CreateUnits(ctx, showID, body.Prices)
	if err != nil {
		h.Log.Error("seat provisioning failed",
			zap.Uint64("show_id", showID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
	if err := h.Cache.Invalidate(ctx, showID); err != nil {
		h.Log.Warn("availability cache invalidation failed",
			zap.Uint64("show_id", showID), zap.Error(err))
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"show_id":  showID,
		"seat_ids": ids,
	})
}
