package models

import "time"

type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

type PaymentStatus string

const (
	PaymentUnpaid PaymentStatus = "UNPAID"
	PaymentPaid   PaymentStatus = "PAID"
	PaymentFailed PaymentStatus = "FAILED"
)

// SubmissionState gates concurrent payment submissions for one booking.
// SUBMITTED is held only while a gateway call is in flight.
type SubmissionState string

const (
	SubmissionIdle      SubmissionState = "IDLE"
	SubmissionSubmitted SubmissionState = "SUBMITTED"
)

// PaymentMethodEVCPlus is the mobile-money wallet charged through the gateway.
const PaymentMethodEVCPlus = "evcplus"

// Booking is a rider's claim on seats of a trip.
type Booking struct {
	ID              string          `json:"id"`
	TripID          string          `json:"tripId"`
	RiderID         string          `json:"userId"`
	SeatsBooked     int             `json:"seatsBooked"`
	Status          BookingStatus   `json:"status"`
	PaymentStatus   PaymentStatus   `json:"paymentStatus"`
	PaymentVerified bool            `json:"paymentVerified"`
	PaymentMethod   string          `json:"paymentMethod,omitempty"`
	AmountPaid      float64         `json:"amountPaid"`
	TransactionID   string          `json:"transactionId,omitempty"`
	Submission      SubmissionState `json:"submissionState"`
	SubmittedAt     *time.Time      `json:"submittedAt,omitempty"`
	// PaymentAttempt numbers gateway submissions; it only advances once the
	// previous attempt reached a definitive outcome (AttemptOpen false).
	PaymentAttempt int       `json:"paymentAttempt"`
	AttemptOpen    bool      `json:"attemptOpen"`
	DeclineCount   int       `json:"declineCount"`
	IsDeleted      bool      `json:"isDeleted"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Active reports whether the booking counts against trip capacity.
func (b Booking) Active() bool {
	if b.IsDeleted {
		return false
	}
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// Payable reports whether a new payment submission may start.
func (b Booking) Payable() bool {
	if b.IsDeleted || b.Status != BookingPending {
		return false
	}
	if b.Submission == SubmissionSubmitted {
		return false
	}
	return b.PaymentStatus == PaymentUnpaid || b.PaymentStatus == PaymentFailed
}

// Cancellable reports whether the rider may still withdraw the booking.
func (b Booking) Cancellable() bool {
	return b.Payable()
}
