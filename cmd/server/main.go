package main // Entry point package

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/cache"
	"github.com/rsahakyan/seatledger/internal/config"
	"github.com/rsahakyan/seatledger/internal/database"
	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/handler"
	"github.com/rsahakyan/seatledger/internal/lock"
	"github.com/rsahakyan/seatledger/internal/queue"
	"github.com/rsahakyan/seatledger/internal/repository"
	"github.com/rsahakyan/seatledger/internal/router"
	"github.com/rsahakyan/seatledger/internal/sweeper"
)

func main() {
	cfg := config.Load() // Load environment config

	logger, err := buildLogger(cfg.Env)
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer logger.Sync()

	// Store selection: MySQL when DB_HOST is set, the in-memory stores
	// otherwise.  The engine only sees the interfaces.
	var (
		seats       engine.SeatStore
		bookings    engine.BookingStore
		catalog     engine.ShowCatalog
		provisioner handler.SeatProvisioner
	)
	if cfg.DBHost != "" {
		db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
		if err != nil {
			logger.Fatal("database connection failed", zap.Error(err))
		}
		defer db.Close()
		seatRepo := repository.NewSeatUnitRepo(db)
		seats = seatRepo
		provisioner = seatRepo
		bookings = repository.NewBookingRepo(db)
		catalog = repository.NewShowRepo(db)
		logger.Info("using mysql stores", zap.String("host", cfg.DBHost))
	} else {
		mem := repository.NewMemoryStore()
		seats = mem
		bookings = mem
		catalog = mem
		provisioner = mem
		logger.Warn("DB_HOST not set, using in-memory stores")
	}

	// Redis backs the per-show lock, the availability cache and rate
	// limiting.  Without it the lock falls back to the process-local
	// implementation, which is only safe for a single instance.
	rdb := config.NewRedisClient()
	var locks engine.ShowLocker
	if rdb != nil {
		locks = lock.NewRedisLocker(rdb, cfg.LockTTL, cfg.LockWait, cfg.LockRetry)
		logger.Info("using redis show locks")
	} else {
		locks = lock.NewLocalLocker(cfg.LockWait)
		logger.Warn("redis unavailable, using local show locks")
	}
	avail := cache.NewAvailability(rdb, cfg.CacheTTL)

	eng := engine.New(seats, bookings, catalog, locks, logger)
	sweep := sweeper.New(eng, bookings, seats, logger)

	// Lifecycle events are optional: no broker URL means no events.
	var events handler.EventPublisher
	if cfg.AMQPURL != "" {
		pub := queue.NewPublisher(cfg.AMQPURL, logger)
		defer pub.Close()
		events = pub
		go func() {
			if err := queue.StartConsumer(cfg.AMQPURL, logger); err != nil {
				logger.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.PurgeInterval > 0 {
		go sweep.RunPeriodicPurge(ctx, cfg.PurgeInterval)
	}

	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e)
	router.RegisterBooking(e,
		handler.NewBookingHandler(eng, avail, events, logger),
		handler.NewShowHandler(eng, avail, provisioner, catalog, logger),
		config.LoadRateLimitConfig(), rdb)
	router.RegisterSweep(e, handler.NewSweepHandler(sweep))

	addr := ":" + cfg.Port
	go func() {
		logger.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env))
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server start failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

// buildLogger picks the zap preset by environment: human-readable in
// dev, JSON elsewhere.
func buildLogger(env string) (*zap.Logger, error) {
	if env == "dev" || env == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
