package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	intconfig "tripbooking/internal/config"
	intdb "tripbooking/internal/db"
	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/utils"
)

const bookingColumns = `b.id, b.trip_id, b.rider_id, b.seats_booked, b.status, b.payment_status,
	b.payment_verified, COALESCE(b.payment_method,''), b.amount_paid, COALESCE(b.transaction_id,''),
	b.submission_state, b.submitted_at, b.payment_attempt, b.attempt_open, b.decline_count,
	b.is_deleted, b.created_at, b.updated_at`

// AdmitFunc decides admission from a locked trip and its active bookings.
// It returns the booking to insert or an error that aborts the transaction.
type AdmitFunc func(trip models.Trip, active []models.Booking) (models.Booking, error)

type BookingRepository struct {
	DB *sql.DB
}

func (r BookingRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// Admit serializes admissions per trip with an InnoDB row lock on the trip:
// concurrent callers queue on SELECT ... FOR UPDATE, so each one sees the
// bookings committed by the previous holder.
func (r BookingRepository) Admit(ctx context.Context, tripID string, admit AdmitFunc) (models.Booking, error) {
	var out models.Booking
	err := intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips t WHERE t.id=? FOR UPDATE`, tripID)
		trip, err := scanTripOrNotFound(row)
		if err != nil {
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT `+bookingColumns+` FROM bookings b
			WHERE b.trip_id=? AND b.status IN ('PENDING','CONFIRMED') AND b.is_deleted=FALSE`, tripID)
		if err != nil {
			return fmt.Errorf("load active bookings: %w", err)
		}
		active, err := collectBookings(rows)
		if err != nil {
			return err
		}

		booking, err := admit(trip, active)
		if err != nil {
			return err
		}
		if err := insertBooking(ctx, tx, booking); err != nil {
			return err
		}
		out = booking
		return nil
	})
	return out, err
}

// Get returns a live booking; soft-deleted rows are not found.
func (r BookingRepository) Get(ctx context.Context, id string) (models.Booking, error) {
	row := r.db().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=? AND b.is_deleted=FALSE LIMIT 1`, id)
	return scanBookingOrNotFound(row)
}

func (r BookingRepository) ListByRider(ctx context.Context, riderID string, page domain.Pagination) ([]models.Booking, domain.Pagination, error) {
	var total int
	if err := r.db().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM bookings WHERE rider_id=? AND is_deleted=FALSE`, riderID,
	).Scan(&total); err != nil {
		return nil, page, fmt.Errorf("count bookings: %w", err)
	}
	page = page.WithTotal(total)

	rows, err := r.db().QueryContext(ctx, `
		SELECT `+bookingColumns+` FROM bookings b
		WHERE b.rider_id=? AND b.is_deleted=FALSE
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT ? OFFSET ?`, riderID, page.Limit, page.Offset())
	if err != nil {
		return nil, page, fmt.Errorf("list bookings: %w", err)
	}
	out, err := collectBookings(rows)
	return out, page, err
}

// Cancel withdraws a rider's booking while no payment is settled or in flight.
func (r BookingRepository) Cancel(ctx context.Context, riderID, id string) (models.Booking, error) {
	var out models.Booking
	err := intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `
			SELECT `+bookingColumns+` FROM bookings b
			WHERE b.id=? AND b.rider_id=? AND b.is_deleted=FALSE
			FOR UPDATE`, id, riderID)
		b, err := scanBookingOrNotFound(row)
		if err != nil {
			return err
		}
		if !b.Cancellable() {
			return domain.ConflictError{Resource: "booking", Msg: "booking can no longer be cancelled"}
		}

		b.Status = models.BookingCancelled
		b.UpdatedAt = utils.NowUTC()
		if _, err := tx.ExecContext(ctx,
			`UPDATE bookings SET status=?, updated_at=? WHERE id=?`,
			string(b.Status), b.UpdatedAt, b.ID,
		); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}
		out = b
		return nil
	})
	return out, err
}

func insertBooking(ctx context.Context, q intdb.Querier, b models.Booking) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO bookings (id, trip_id, rider_id, seats_booked, status, payment_status, payment_verified,
			amount_paid, submission_state, payment_attempt, attempt_open, decline_count, is_deleted,
			created_at, updated_at)
		VALUES (?,?,?,?,?,?,FALSE,0,?,0,FALSE,0,FALSE,?,?)`,
		b.ID, b.TripID, b.RiderID, b.SeatsBooked, string(b.Status), string(b.PaymentStatus),
		string(b.Submission), b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

// saveBookingState persists every field the payment state machine may touch.
func saveBookingState(ctx context.Context, q intdb.Querier, b models.Booking) error {
	var submittedAt any
	if b.SubmittedAt != nil {
		submittedAt = *b.SubmittedAt
	}
	_, err := q.ExecContext(ctx, `
		UPDATE bookings SET status=?, payment_status=?, payment_verified=?, payment_method=?, amount_paid=?,
			transaction_id=?, submission_state=?, submitted_at=?, payment_attempt=?, attempt_open=?,
			decline_count=?, updated_at=?
		WHERE id=?`,
		string(b.Status), string(b.PaymentStatus), b.PaymentVerified, intdb.NullIfEmpty(b.PaymentMethod),
		b.AmountPaid, intdb.NullIfEmpty(utils.Truncate(b.TransactionID, models.MaxReferenceLen)), string(b.Submission), submittedAt,
		b.PaymentAttempt, b.AttemptOpen, b.DeclineCount, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("save booking %s: %w", b.ID, err)
	}
	return nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	defer rows.Close()
	out := []models.Booking{}
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return out, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBookingOrNotFound(row intdb.RowScanner) (models.Booking, error) {
	b, err := scanBooking(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Booking{}, domain.NotFoundError{Resource: "booking", Err: err}
	}
	return b, err
}

func scanBooking(row intdb.RowScanner) (models.Booking, error) {
	var (
		b                             models.Booking
		status, payStatus, submission string
		submittedAt                   sql.NullTime
	)
	if err := row.Scan(
		&b.ID, &b.TripID, &b.RiderID, &b.SeatsBooked, &status, &payStatus,
		&b.PaymentVerified, &b.PaymentMethod, &b.AmountPaid, &b.TransactionID,
		&submission, &submittedAt, &b.PaymentAttempt, &b.AttemptOpen, &b.DeclineCount,
		&b.IsDeleted, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return models.Booking{}, err
	}
	b.Status = models.BookingStatus(status)
	b.PaymentStatus = models.PaymentStatus(payStatus)
	b.Submission = models.SubmissionState(submission)
	if submittedAt.Valid {
		t := submittedAt.Time
		b.SubmittedAt = &t
	}
	return b, nil
}
