package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rsahakyan/seatledger/internal/engine"
)

// writeEngineError maps the engine's error taxonomy onto HTTP
// responses.  Contention gets a Retry-After hint since the whole
// operation is safe to retry.
func writeEngineError(c echo.Context, err error) error {
	switch {
	case engine.IsNotFound(err):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case engine.IsInvalidInput(err):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case engine.IsRetryable(err):
		c.Response().Header().Set("Retry-After", "1")
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": err.Error(), "retryable": true})
	case errors.Is(err, engine.ErrInsufficientInventory):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
	}
}
