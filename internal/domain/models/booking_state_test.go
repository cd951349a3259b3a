package models

import (
	"testing"
	"time"
)

func pendingBooking() Booking {
	return Booking{
		ID:            "b1",
		TripID:        "t1",
		SeatsBooked:   2,
		Status:        BookingPending,
		PaymentStatus: PaymentUnpaid,
		Submission:    SubmissionIdle,
	}
}

func TestBeginSubmissionIsExclusive(t *testing.T) {
	b := pendingBooking()
	now := time.Now()

	if !b.BeginSubmission(now) {
		t.Fatalf("first submission should win")
	}
	if b.PaymentAttempt != 1 || !b.AttemptOpen {
		t.Fatalf("expected open attempt 1, got %d open=%v", b.PaymentAttempt, b.AttemptOpen)
	}
	if b.BeginSubmission(now) {
		t.Fatalf("second submission must lose while in flight")
	}
}

func TestReleaseKeepsAttemptOpen(t *testing.T) {
	b := pendingBooking()
	now := time.Now()
	b.BeginSubmission(now)

	ApplyTransition(&b, Trip{ID: "t1", TotalSeats: 3}, 2, Transition{Kind: TransitionRelease, At: now})
	if b.Submission != SubmissionIdle || !b.AttemptOpen {
		t.Fatalf("release should go idle with attempt open: %+v", b)
	}
	if b.PaymentStatus != PaymentUnpaid || b.Status != BookingPending {
		t.Fatalf("release must not touch payment state: %+v", b)
	}

	b.BeginSubmission(now)
	if b.PaymentAttempt != 1 {
		t.Fatalf("retry after release should reuse attempt 1, got %d", b.PaymentAttempt)
	}
}

func TestConfirmApplies(t *testing.T) {
	b := pendingBooking()
	now := time.Now()
	b.BeginSubmission(now)

	ok := ApplyTransition(&b, Trip{ID: "t1", TotalSeats: 3, Status: TripPending}, 2, Transition{
		Kind: TransitionConfirm, TransactionID: "TX1", Amount: 20, Method: PaymentMethodEVCPlus, At: now,
	})
	if !ok {
		t.Fatalf("expected confirm to apply")
	}
	if b.Status != BookingConfirmed || b.PaymentStatus != PaymentPaid || !b.PaymentVerified || b.TransactionID != "TX1" {
		t.Fatalf("unexpected booking after confirm: %+v", b)
	}
	if b.AttemptOpen {
		t.Fatalf("attempt should be closed after success")
	}
}

func TestConfirmRevalidatesCapacity(t *testing.T) {
	b := pendingBooking()
	now := time.Now()
	b.BeginSubmission(now)

	ok := ApplyTransition(&b, Trip{ID: "t1", TotalSeats: 3}, 4, Transition{Kind: TransitionConfirm, TransactionID: "TX1", At: now})
	if ok {
		t.Fatalf("confirm over capacity must not apply")
	}
	if b.Status != BookingPending || b.PaymentStatus != PaymentUnpaid {
		t.Fatalf("booking should be untouched: %+v", b)
	}
	if b.AttemptOpen || b.Submission != SubmissionIdle {
		t.Fatalf("attempt should be closed and idle: %+v", b)
	}
}

func TestDeclineCancelsAfterLimit(t *testing.T) {
	b := pendingBooking()
	now := time.Now()
	trip := Trip{ID: "t1", TotalSeats: 3}

	for i := 1; i <= 3; i++ {
		if !b.BeginSubmission(now) {
			t.Fatalf("attempt %d should start", i)
		}
		if b.PaymentAttempt != i {
			t.Fatalf("expected attempt %d, got %d", i, b.PaymentAttempt)
		}
		ApplyTransition(&b, trip, 2, Transition{Kind: TransitionDecline, MaxDeclines: 3, At: now})
	}

	if b.Status != BookingCancelled || b.PaymentStatus != PaymentFailed {
		t.Fatalf("expected cancelled/failed after 3 declines, got %s/%s", b.Status, b.PaymentStatus)
	}
	if b.BeginSubmission(now) {
		t.Fatalf("cancelled booking must not accept submissions")
	}
}

func TestSupersededOwnership(t *testing.T) {
	b := pendingBooking()
	t1 := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	b.BeginSubmission(t1)
	own := Transition{Kind: TransitionConfirm, Attempt: 1, SubmittedAt: &t1}

	if Superseded(b, own) {
		t.Fatalf("in-flight submission should own the booking")
	}
	if Superseded(b, Transition{Kind: TransitionConfirm}) {
		t.Fatalf("zero attempt is unchecked")
	}

	// swept, no retry yet: the late answer may still settle it
	ApplyTransition(&b, Trip{}, 0, Transition{Kind: TransitionRelease, At: t1})
	if Superseded(b, own) {
		t.Fatalf("released booking with the same open attempt should accept the outcome")
	}

	// retried on the same attempt
	t2 := t1.Add(3 * time.Minute)
	b.BeginSubmission(t2)
	if b.PaymentAttempt != 1 {
		t.Fatalf("retry should reuse attempt 1, got %d", b.PaymentAttempt)
	}
	if !Superseded(b, own) {
		t.Fatalf("late answer must not clear the retry's guard")
	}
	if Superseded(b, Transition{Kind: TransitionConfirm, Attempt: 1, SubmittedAt: &t2}) {
		t.Fatalf("retry should own the booking")
	}

	// settled by a decline
	ApplyTransition(&b, Trip{}, 0, Transition{Kind: TransitionDecline, At: t2})
	if !Superseded(b, Transition{Kind: TransitionConfirm, Attempt: 1, SubmittedAt: &t2}) {
		t.Fatalf("closed attempt must be superseded")
	}
}
