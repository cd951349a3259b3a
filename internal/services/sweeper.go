package services

import (
	"context"
	"fmt"
	"time"

	"tripbooking/internal/domain/models"
	"tripbooking/internal/logger"
	"tripbooking/internal/repositories"
	"tripbooking/internal/utils"
)

// Sweeper releases submissions whose request died mid-flight (process
// crash, lost fallback write). Released bookings keep their attempt open,
// so the next submission presents the same idempotency key.
type Sweeper struct {
	Ledger     PaymentLedger
	StaleAfter time.Duration
	Interval   time.Duration
	Now        func() time.Time
}

func (s Sweeper) ledger() PaymentLedger {
	if s.Ledger != nil {
		return s.Ledger
	}
	return repositories.PaymentRepository{}
}

func (s Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

// Run sweeps every Interval until ctx is done.
func (s Sweeper) Run(ctx context.Context) {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil {
				logger.ErrorLogger.WithError(err).Error("stale submission sweep failed")
			}
		}
	}
}

func (s Sweeper) SweepOnce(ctx context.Context) ([]models.Booking, error) {
	staleAfter := s.StaleAfter
	if staleAfter <= 0 {
		staleAfter = 2 * time.Minute
	}
	now := s.now()
	released, err := s.ledger().ReleaseStale(ctx, now.Add(-staleAfter), func(b models.Booking) models.PaymentLogEntry {
		return models.PaymentLogEntry{
			ID:             NewID(),
			BookingID:      b.ID,
			IdempotencyKey: IdempotencyKey(b.ID, b.PaymentAttempt),
			Attempt:        b.PaymentAttempt,
			Outcome:        models.OutcomeError,
			RawResponse:    fmt.Sprintf("stale submission released after %s", staleAfter),
			CreatedAt:      now,
		}
	})
	if err != nil {
		return nil, err
	}
	for _, b := range released {
		logger.Event("", "payments", "sweep").WithField("booking_id", b.ID).
			WithField("attempt", b.PaymentAttempt).Warn("stale submission released")
	}
	return released, nil
}
