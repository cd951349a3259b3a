package models

import "time"

type TransitionKind int

const (
	// TransitionConfirm applies a gateway success.
	TransitionConfirm TransitionKind = iota + 1
	// TransitionDecline applies a definitive gateway decline.
	TransitionDecline
	// TransitionRelease ends a submission whose outcome is unknown.
	TransitionRelease
)

// Transition describes how a finished submission changes its booking.
type Transition struct {
	Kind          TransitionKind
	TransactionID string
	Amount        float64
	Method        string
	// MaxDeclines cancels the booking once reached; zero disables the limit.
	MaxDeclines int
	At          time.Time
	// Attempt and SubmittedAt identify the submission the outcome belongs
	// to. A zero Attempt skips the ownership check.
	Attempt     int
	SubmittedAt *time.Time
}

// BeginSubmission is the IDLE -> SUBMITTED compare-and-swap. A new attempt
// number is taken only when the previous attempt reached a definitive
// outcome, so retries after a timeout reuse the same idempotency key.
func (b *Booking) BeginSubmission(now time.Time) bool {
	if !b.Payable() {
		return false
	}
	if !b.AttemptOpen {
		b.PaymentAttempt++
		b.AttemptOpen = true
	}
	b.Submission = SubmissionSubmitted
	b.SubmittedAt = &now
	b.UpdatedAt = now
	return true
}

// Superseded reports whether the submission described by tr no longer owns
// b: its attempt was already settled or replaced, or b was released and a
// newer submission is now in flight. A released booking with the same
// attempt still open is owned, so a late answer can settle it.
func Superseded(b Booking, tr Transition) bool {
	if tr.Attempt == 0 {
		return false
	}
	if b.PaymentAttempt != tr.Attempt || !b.AttemptOpen {
		return true
	}
	if b.Submission != SubmissionSubmitted {
		return false
	}
	return b.SubmittedAt == nil || tr.SubmittedAt == nil || !b.SubmittedAt.Equal(*tr.SubmittedAt)
}

// ApplyTransition moves b out of SUBMITTED. activeSeats is the trip's seat
// total over active bookings, b included. For a confirm it reports false
// when the booking can no longer be confirmed (cancelled, trip gone, or
// over capacity); b is then only released and the charge must be logged as
// unapplied.
func ApplyTransition(b *Booking, trip Trip, activeSeats int, tr Transition) bool {
	b.Submission = SubmissionIdle
	b.SubmittedAt = nil
	b.UpdatedAt = tr.At

	switch tr.Kind {
	case TransitionConfirm:
		// money moved; the attempt is closed whether or not it applies
		b.AttemptOpen = false
		if !b.Active() || b.Status != BookingPending || !trip.Bookable() || activeSeats > trip.TotalSeats {
			return false
		}
		b.Status = BookingConfirmed
		b.PaymentStatus = PaymentPaid
		b.PaymentVerified = true
		b.AmountPaid = tr.Amount
		b.PaymentMethod = tr.Method
		b.TransactionID = tr.TransactionID
		return true

	case TransitionDecline:
		b.AttemptOpen = false
		b.DeclineCount++
		b.PaymentStatus = PaymentFailed
		if tr.MaxDeclines > 0 && b.DeclineCount >= tr.MaxDeclines && b.Status == BookingPending {
			b.Status = BookingCancelled
		}
		return true

	case TransitionRelease:
		return true
	}
	return false
}
