package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/rsahakyan/seatledger/internal/config"
	"github.com/rsahakyan/seatledger/internal/handler"
	"github.com/rsahakyan/seatledger/internal/middleware"
)

// RegisterRoutes registers routes that carry no request body and no
// rate limiting.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// This endpoint can be used by load balancers or monitoring systems to
	// verify that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterBooking registers the reservation endpoints.  All of them
// live under /v1 and share the Redis token-bucket limiter; when Redis
// is unavailable the limiter is a pass-through.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, s *handler.ShowHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// Seat allocation for a show.  The body carries the customer id and
	// how many seats to claim.
	g.POST("/shows/:id/bookings", b.Allocate)
	// Swap part of a booking onto strictly cheaper seats.
	g.POST("/bookings/:id/swap", b.Swap)
	// Cancel a booking and release its seats immediately.
	g.DELETE("/bookings/:id", b.Cancel)
	// Look up a booking together with the seats it currently holds.
	g.GET("/bookings/:id", b.Get)

	// Availability is read-heavy and served cache-first.
	g.GET("/shows/:id/availability", s.Availability)
	// Provision the priced seat units of a show.
	g.POST("/shows/:id/seats", s.Provision)
}

// RegisterSweep registers the lifecycle maintenance endpoints.  These
// are operator-facing: mass-cancel every pending booking, or purge
// cancelled bookings after verifying they hold no seats.
func RegisterSweep(e *echo.Echo, h *handler.SweepHandler) {
	g := e.Group("/v1/sweep")
	g.POST("/cancel-pending", h.CancelPending)
	g.POST("/purge-cancelled", h.PurgeCancelled)
}
