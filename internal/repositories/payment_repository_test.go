package repositories

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
)

func newPaymentMock(t *testing.T) (PaymentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	return PaymentRepository{DB: db}, mock, func() {
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("expectations: %v", err)
		}
		db.Close()
	}
}

func successEntry() models.PaymentLogEntry {
	return models.PaymentLogEntry{
		ID: "log-1", BookingID: "b1", PayerAccount: "252615551234", Amount: 50, Currency: "USD",
		InvoiceID: "INV-1", ReferenceID: "ref-1", TransactionID: "TX1", IdempotencyKey: "key-1",
		Attempt: 1, Outcome: models.OutcomeSuccess, RawResponse: `{"responseMsg":"RCS_SUCCESS"}`, CreatedAt: fixedNow,
	}
}

func confirmTransition() models.Transition {
	return models.Transition{Kind: models.TransitionConfirm, TransactionID: "TX1", Amount: 50, Method: models.PaymentMethodEVCPlus, At: fixedNow}
}

func TestBeginSubmissionWinsCAS(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	mock.ExpectExec(`UPDATE bookings SET payment_attempt = CASE WHEN attempt_open .* WHERE id = \? AND submission_state = 'IDLE'`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	row := bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)
	row[12], row[13] = int64(1), true
	mock.ExpectQuery(`FROM bookings b WHERE b.id=\?`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(row...))

	b, err := repo.BeginSubmission(context.Background(), "b1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if b.PaymentAttempt != 1 || b.Submission != models.SubmissionSubmitted {
		t.Fatalf("unexpected booking %+v", b)
	}
}

func TestBeginSubmissionLosesCAS(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	mock.ExpectExec(`UPDATE bookings SET payment_attempt`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "b1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`FROM bookings b WHERE b.id=\?`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)...))

	_, err := repo.BeginSubmission(context.Background(), "b1")
	if !domain.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func expectConfirmReads(mock sqlmock.Sqlmock, totalSeats, active int) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT trip_id FROM bookings WHERE id=\?`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows([]string{"trip_id"}).AddRow("t1"))
	mock.ExpectQuery(`FROM trips t WHERE t.id=\? FOR UPDATE`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows(tripCols).AddRow(tripValues("t1", totalSeats, models.TripPending)...))
	mock.ExpectQuery(`SELECT COALESCE\(SUM\(seats_booked\),0\)`).
		WithArgs("t1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(active))
	mock.ExpectQuery(`FROM bookings b WHERE b.id=\? FOR UPDATE`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingCols).
			AddRow(bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)...))
}

func TestRecordOutcomeConfirmCommitsLogAndBooking(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	expectConfirmReads(mock, 3, 2)
	mock.ExpectExec(`INSERT INTO payment_logs`).
		WithArgs("log-1", "b1", "252615551234", 50.0, "USD", "INV-1", "ref-1", "TX1", "key-1", int64(1),
			models.OutcomeSuccess, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE bookings SET status=\?, payment_status=\?`).
		WithArgs("CONFIRMED", "PAID", true, "evcplus", 50.0, "TX1", "IDLE", nil, int64(0), false, int64(0), fixedNow, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, entry, err := repo.RecordOutcome(context.Background(), successEntry(), confirmTransition())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if b.Status != models.BookingConfirmed || b.PaymentStatus != models.PaymentPaid || b.TransactionID != "TX1" {
		t.Fatalf("unexpected booking %+v", b)
	}
	if entry.Outcome != models.OutcomeSuccess {
		t.Fatalf("unexpected outcome %s", entry.Outcome)
	}
}

func TestRecordOutcomeRollsBackLogWhenBookingUpdateFails(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	expectConfirmReads(mock, 3, 2)
	mock.ExpectExec(`INSERT INTO payment_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE bookings SET status=\?`).WillReturnError(errors.New("lock wait timeout"))
	mock.ExpectRollback()

	_, _, err := repo.RecordOutcome(context.Background(), successEntry(), confirmTransition())
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRecordOutcomeOverCapacityIsUnapplied(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	expectConfirmReads(mock, 3, 4)
	mock.ExpectExec(`INSERT INTO payment_logs`).
		WithArgs(sqlmock.AnyArg(), "b1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.OutcomeSuccessUnapplied, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE bookings SET status=\?`).
		WithArgs("PENDING", "UNPAID", false, nil, 0.0, nil, "IDLE", nil, int64(0), false, int64(0), fixedNow, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	b, entry, err := repo.RecordOutcome(context.Background(), successEntry(), confirmTransition())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if entry.Outcome != models.OutcomeSuccessUnapplied || b.Status != models.BookingPending {
		t.Fatalf("expected unapplied success, got %s / %s", entry.Outcome, b.Status)
	}
}

func TestRecordOutcomeTransportErrorSkipsTripLock(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	row := bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)
	row[11], row[12], row[13] = fixedNow, int64(1), true

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings b WHERE b.id=\? FOR UPDATE`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(row...))
	mock.ExpectExec(`INSERT INTO payment_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE bookings SET status=\?`).
		WithArgs("PENDING", "UNPAID", false, nil, 0.0, nil, "IDLE", nil, int64(1), true, int64(0), fixedNow, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := successEntry()
	entry.Outcome = models.OutcomeError
	b, _, err := repo.RecordOutcome(context.Background(), entry, models.Transition{Kind: models.TransitionRelease, At: fixedNow})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !b.AttemptOpen || b.PaymentAttempt != 1 {
		t.Fatalf("attempt should stay open: %+v", b)
	}
}

func TestReleaseStaleLogsEachBooking(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	row := bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)
	row[11], row[12], row[13] = fixedNow, int64(1), true

	mock.ExpectBegin()
	mock.ExpectQuery(`WHERE b.submission_state='SUBMITTED' AND b.submitted_at < \? .* FOR UPDATE`).
		WithArgs(fixedNow, staleBatch).
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(row...))
	mock.ExpectExec(`INSERT INTO payment_logs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE bookings SET status=\?`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	released, err := repo.ReleaseStale(context.Background(), fixedNow, func(b models.Booking) models.PaymentLogEntry {
		return models.PaymentLogEntry{ID: "log-s", BookingID: b.ID, Outcome: models.OutcomeError, IdempotencyKey: "k", Attempt: b.PaymentAttempt}
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(released) != 1 || released[0].Submission != models.SubmissionIdle || !released[0].AttemptOpen {
		t.Fatalf("unexpected release %+v", released)
	}
}

func TestRecordOutcomeClipsLongDeclineCode(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	row := bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)
	row[11], row[12], row[13] = fixedNow, int64(1), true
	code := strings.Repeat("E", 100)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings b WHERE b.id=\? FOR UPDATE`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(row...))
	mock.ExpectExec(`INSERT INTO payment_logs`).
		WithArgs("log-1", "b1", "252615551234", 50.0, "USD", "INV-1", "ref-1", "TX1", "key-1", int64(1),
			code[:models.MaxOutcomeLen], sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE bookings SET status=\?`).
		WithArgs("PENDING", "FAILED", false, nil, 0.0, nil, "IDLE", nil, int64(1), false, int64(1), fixedNow, "b1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	entry := successEntry()
	entry.Outcome = code
	submitted := fixedNow
	b, _, err := repo.RecordOutcome(context.Background(), entry, models.Transition{
		Kind: models.TransitionDecline, At: fixedNow, Attempt: 1, SubmittedAt: &submitted,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if b.PaymentStatus != models.PaymentFailed || b.DeclineCount != 1 {
		t.Fatalf("decline not applied: %+v", b)
	}
}

func TestAppendLogClipsGatewayFields(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	long := strings.Repeat("r", 300)
	mock.ExpectExec(`INSERT INTO payment_logs`).
		WithArgs("log-1", "b1", "252615551234", 50.0, "USD", "INV-1", long[:models.MaxReferenceLen],
			long[:models.MaxReferenceLen], "key-1", int64(1), models.OutcomeUnreconciled, sqlmock.AnyArg(), fixedNow).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := successEntry()
	entry.ReferenceID, entry.TransactionID = long, long
	entry.Outcome = models.OutcomeUnreconciled
	if err := repo.AppendLog(context.Background(), entry); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}

func TestRecordOutcomeSupersededLeavesBookingAlone(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	retriedAt := fixedNow.Add(3 * time.Minute)
	row := bookingValues("b1", "t1", 2, models.BookingPending, models.PaymentUnpaid, models.SubmissionSubmitted)
	row[11], row[12], row[13] = retriedAt, int64(1), true

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM bookings b WHERE b.id=\? FOR UPDATE`).
		WithArgs("b1").
		WillReturnRows(sqlmock.NewRows(bookingCols).AddRow(row...))
	mock.ExpectExec(`INSERT INTO payment_logs`).
		WithArgs(sqlmock.AnyArg(), "b1", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			models.OutcomeSuperseded, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	entry := successEntry()
	entry.Outcome = "RCS_USER_REJECTED"
	submitted := fixedNow
	b, logged, err := repo.RecordOutcome(context.Background(), entry, models.Transition{
		Kind: models.TransitionDecline, At: fixedNow, Attempt: 1, SubmittedAt: &submitted,
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if logged.Outcome != models.OutcomeSuperseded {
		t.Fatalf("expected SUPERSEDED, got %q", logged.Outcome)
	}
	if b.Submission != models.SubmissionSubmitted || b.PaymentStatus != models.PaymentUnpaid {
		t.Fatalf("retry's booking must be untouched: %+v", b)
	}
}

func TestReleaseSubmissionMatchesSubmittedAt(t *testing.T) {
	repo, mock, done := newPaymentMock(t)
	defer done()

	mock.ExpectExec(`WHERE id=\? AND submission_state='SUBMITTED' AND submitted_at=\?`).
		WithArgs(sqlmock.AnyArg(), "b1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	submitted := fixedNow
	if err := repo.ReleaseSubmission(context.Background(), "b1", &submitted); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
}
