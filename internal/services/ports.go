package services

import (
	"context"
	"time"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/repositories"
)

// TripStore is the durable trip record.
type TripStore interface {
	Create(ctx context.Context, trip models.Trip) error
	Get(ctx context.Context, id string) (models.Trip, error)
	GetOwned(ctx context.Context, ownerID, id string) (models.TripListing, error)
	Update(ctx context.Context, ownerID, id string, upd models.TripUpdate) (models.Trip, error)
	SoftDelete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, f models.TripFilter, page domain.Pagination) ([]models.TripListing, domain.Pagination, error)
	Earnings(ctx context.Context, ownerID string) (models.OwnerEarnings, error)
}

// BookingLedger records seat claims. Admit must serialize per trip.
type BookingLedger interface {
	Admit(ctx context.Context, tripID string, admit repositories.AdmitFunc) (models.Booking, error)
	Get(ctx context.Context, id string) (models.Booking, error)
	ListByRider(ctx context.Context, riderID string, page domain.Pagination) ([]models.Booking, domain.Pagination, error)
	Cancel(ctx context.Context, riderID, id string) (models.Booking, error)
}

// PaymentLedger guards submissions and owns the append-only payment log.
type PaymentLedger interface {
	BeginSubmission(ctx context.Context, id string) (models.Booking, error)
	RecordOutcome(ctx context.Context, entry models.PaymentLogEntry, tr models.Transition) (models.Booking, models.PaymentLogEntry, error)
	AppendLog(ctx context.Context, entry models.PaymentLogEntry) error
	ReleaseSubmission(ctx context.Context, id string, submittedAt *time.Time) error
	ReleaseStale(ctx context.Context, cutoff time.Time, entryFor func(models.Booking) models.PaymentLogEntry) ([]models.Booking, error)
	ListLogs(ctx context.Context, bookingID string) ([]models.PaymentLogEntry, error)
}

var (
	_ TripStore     = repositories.TripRepository{}
	_ BookingLedger = repositories.BookingRepository{}
	_ PaymentLedger = repositories.PaymentRepository{}
)
