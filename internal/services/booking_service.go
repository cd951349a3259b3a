package services

import (
	"context"
	"strings"
	"time"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/logger"
	"tripbooking/internal/repositories"
	"tripbooking/internal/utils"
)

// MaxSeatsPerBooking bounds a single request; capacity is still the real limit.
const MaxSeatsPerBooking = 50

type BookingService struct {
	Bookings  BookingLedger
	Trips     TripStore
	Payments  PaymentLedger
	RequestID string
	Now       func() time.Time
}

func (s BookingService) ledger() BookingLedger {
	if s.Bookings != nil {
		return s.Bookings
	}
	return repositories.BookingRepository{}
}

func (s BookingService) trips() TripStore {
	if s.Trips != nil {
		return s.Trips
	}
	return repositories.TripRepository{}
}

func (s BookingService) payments() PaymentLedger {
	if s.Payments != nil {
		return s.Payments
	}
	return repositories.PaymentRepository{}
}

func (s BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

// Admit claims seats on a trip. The capacity check runs inside the ledger's
// per-trip critical section against freshly read bookings; a rejected
// request leaves nothing behind.
func (s BookingService) Admit(ctx context.Context, actor domain.Actor, tripID string, seats int) (models.Booking, error) {
	tripID = strings.TrimSpace(tripID)
	if !actor.Valid() {
		return models.Booking{}, domain.ValidationError{Field: "actor", Msg: "missing"}
	}
	if tripID == "" {
		return models.Booking{}, domain.ValidationError{Field: "tripId", Msg: "required"}
	}
	if seats < 1 || seats > MaxSeatsPerBooking {
		return models.Booking{}, domain.ValidationError{Field: "seatsBooked", Msg: "must be between 1 and 50"}
	}

	now := s.now()
	booking, err := s.ledger().Admit(ctx, tripID, func(trip models.Trip, active []models.Booking) (models.Booking, error) {
		if !trip.Bookable() {
			return models.Booking{}, domain.AdmissionError{Reason: domain.TripNotBookable}
		}
		if avail := models.AvailableSeats(trip, active); seats > avail {
			return models.Booking{}, domain.AdmissionError{Reason: domain.CapacityExceeded, Requested: seats, Available: avail}
		}
		return models.Booking{
			ID:            NewID(),
			TripID:        trip.ID,
			RiderID:       actor.ID,
			SeatsBooked:   seats,
			Status:        models.BookingPending,
			PaymentStatus: models.PaymentUnpaid,
			Submission:    models.SubmissionIdle,
			CreatedAt:     now,
			UpdatedAt:     now,
		}, nil
	})

	log := logger.Event(s.RequestID, "bookings", "admit").WithField("trip_id", tripID).WithField("seats", seats)
	if err != nil {
		if domain.IsAdmission(err) {
			log.WithError(err).Info("admission rejected")
		} else if !domain.IsNotFound(err) {
			log.WithError(err).Error("admission failed")
		}
		return models.Booking{}, err
	}
	log.WithField("booking_id", booking.ID).Info("booking admitted")
	return booking, nil
}

// Get is visible to the rider and to the owner of the booked trip.
func (s BookingService) Get(ctx context.Context, actor domain.Actor, id string) (models.Booking, error) {
	b, err := s.ledger().Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return models.Booking{}, err
	}
	if b.RiderID == actor.ID {
		return b, nil
	}
	trip, err := s.trips().Get(ctx, b.TripID)
	if err != nil || trip.OwnerID != actor.ID {
		return models.Booking{}, domain.NotFoundError{Resource: "booking"}
	}
	return b, nil
}

func (s BookingService) ListMine(ctx context.Context, actor domain.Actor, page, limit int) ([]models.Booking, domain.Pagination, error) {
	return s.ledger().ListByRider(ctx, actor.ID, domain.NewPagination(page, limit))
}

func (s BookingService) Cancel(ctx context.Context, actor domain.Actor, id string) (models.Booking, error) {
	b, err := s.ledger().Cancel(ctx, actor.ID, strings.TrimSpace(id))
	if err != nil {
		return models.Booking{}, err
	}
	logger.Event(s.RequestID, "bookings", "cancel").WithField("booking_id", b.ID).Info("booking cancelled")
	return b, nil
}

// PaymentLogs returns the audit trail to anyone allowed to see the booking.
func (s BookingService) PaymentLogs(ctx context.Context, actor domain.Actor, id string) ([]models.PaymentLogEntry, error) {
	b, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	return s.payments().ListLogs(ctx, b.ID)
}
