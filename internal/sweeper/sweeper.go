// Package sweeper implements the batch lifecycle operations over the
// booking ledger: mass-cancelling pending bookings and purging
// cancelled ones.  Each booking is processed atomically on its own, so
// an interrupted sweep leaves a mix of processed and unprocessed
// bookings that the next run picks up safely.
package sweeper

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rsahakyan/seatledger/internal/engine"
	"github.com/rsahakyan/seatledger/internal/model"
)

// Sweeper runs bulk transitions using the engine's per-booking
// primitives.
type Sweeper struct {
	engine   *engine.Engine
	bookings engine.BookingStore
	seats    engine.SeatStore
	log      *zap.Logger
}

// New constructs a Sweeper.  A nop logger is substituted when log is
// nil.
func New(eng *engine.Engine, bookings engine.BookingStore, seats engine.SeatStore, log *zap.Logger) *Sweeper {
	if eng == nil || bookings == nil || seats == nil {
		panic("nil dependency passed to sweeper.New")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{engine: eng, bookings: bookings, seats: seats, log: log}
}

// CancelReport summarizes a CancelAllPending run.
type CancelReport struct {
	Cancelled []uint64 `json:"cancelled"`
	Failed    []uint64 `json:"failed,omitempty"`
}

// PurgeReport summarizes a PurgeCancelled run.  Inconsistent lists
// cancelled bookings that still held seat units and were therefore
// skipped rather than deleted.
type PurgeReport struct {
	Purged       []uint64 `json:"purged"`
	Inconsistent []uint64 `json:"inconsistent,omitempty"`
	Failed       []uint64 `json:"failed,omitempty"`
}

// CancelAllPending cancels every PENDING booking and releases its
// seats.  Failures on individual bookings are logged and reported but
// do not stop the sweep; rerunning the sweep finishes the remainder.
func (s *Sweeper) CancelAllPending(ctx context.Context) (*CancelReport, error) {
	pending, err := s.bookings.ListByStatus(ctx, model.BookingPending)
	if err != nil {
		return nil, err
	}
	report := &CancelReport{Cancelled: []uint64{}}
	for _, b := range pending {
		if _, err := s.engine.CancelBooking(ctx, b.ID); err != nil {
			s.log.Warn("sweep: cancel failed",
				zap.Uint64("booking_id", b.ID), zap.Error(err))
			report.Failed = append(report.Failed, b.ID)
			continue
		}
		report.Cancelled = append(report.Cancelled, b.ID)
	}
	s.log.Info("pending bookings swept",
		zap.Int("cancelled", len(report.Cancelled)),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}

// PurgeCancelled deletes every CANCELLED booking that holds no seat
// units.  A cancelled booking still holding seats points at an
// interrupted cancellation or a bug; it is skipped and surfaced, never
// silently released.
func (s *Sweeper) PurgeCancelled(ctx context.Context) (*PurgeReport, error) {
	cancelled, err := s.bookings.ListByStatus(ctx, model.BookingCancelled)
	if err != nil {
		return nil, err
	}
	report := &PurgeReport{Purged: []uint64{}}
	for _, b := range cancelled {
		held, err := s.seats.HeldByBooking(ctx, b.ID)
		if err != nil {
			report.Failed = append(report.Failed, b.ID)
			continue
		}
		if len(held) > 0 {
			s.log.Warn("purge: skipping booking with leftover holdings",
				zap.Uint64("booking_id", b.ID),
				zap.Int("held_seats", len(held)),
				zap.Error(engine.ErrInconsistency))
			report.Inconsistent = append(report.Inconsistent, b.ID)
			continue
		}
		if err := s.bookings.Delete(ctx, b.ID); err != nil {
			s.log.Warn("purge: delete failed",
				zap.Uint64("booking_id", b.ID), zap.Error(err))
			report.Failed = append(report.Failed, b.ID)
			continue
		}
		report.Purged = append(report.Purged, b.ID)
	}
	s.log.Info("cancelled bookings purged",
		zap.Int("purged", len(report.Purged)),
		zap.Int("inconsistent", len(report.Inconsistent)))
	return report, nil
}

// RunPeriodicPurge purges cancelled bookings on a fixed interval until
// the context is cancelled.  Mass cancellation is never run
// automatically; it stays an operator action.
func (s *Sweeper) RunPeriodicPurge(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	s.log.Info("periodic purge started", zap.Duration("interval", every))
	for {
		select {
		case <-ctx.Done():
			s.log.Info("periodic purge stopped")
			return
		case <-ticker.C:
			if _, err := s.PurgeCancelled(ctx); err != nil {
				s.log.Error("periodic purge failed", zap.Error(err))
			}
		}
	}
}
