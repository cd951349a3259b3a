package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	intconfig "tripbooking/internal/config"
	intdb "tripbooking/internal/db"
	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/utils"
)

// staleBatch bounds how many stuck submissions one sweep releases.
const staleBatch = 100

// PaymentRepository owns the submission compare-and-swap and the
// append-only payment log.
type PaymentRepository struct {
	DB *sql.DB
}

func (r PaymentRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// BeginSubmission flips IDLE -> SUBMITTED in a single conditional UPDATE.
// Exactly one concurrent caller sees a row affected; the rest get a
// ConflictError. MySQL applies SET assignments left to right, so the attempt
// CASE reads attempt_open before it is forced to TRUE.
func (r PaymentRepository) BeginSubmission(ctx context.Context, id string) (models.Booking, error) {
	now := utils.NowUTC()
	res, err := r.db().ExecContext(ctx, `
		UPDATE bookings
		SET payment_attempt = CASE WHEN attempt_open THEN payment_attempt ELSE payment_attempt + 1 END,
			attempt_open = TRUE,
			submission_state = 'SUBMITTED',
			submitted_at = ?,
			updated_at = ?
		WHERE id = ? AND submission_state = 'IDLE' AND status = 'PENDING'
		  AND payment_status IN ('UNPAID','FAILED') AND is_deleted = FALSE`,
		now, now, id,
	)
	if err != nil {
		return models.Booking{}, fmt.Errorf("begin submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Booking{}, err
	}

	row := r.db().QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=? AND b.is_deleted=FALSE LIMIT 1`, id)
	b, err := scanBookingOrNotFound(row)
	if err != nil {
		return models.Booking{}, err
	}
	if n == 0 {
		return b, submissionConflict(b)
	}
	return b, nil
}

// RecordOutcome appends the log entry and applies the transition in one
// transaction. For a confirm, the trip row is locked first (same order as
// admission) and capacity is re-checked; a confirm that can no longer apply
// is logged as SUCCESS_UNAPPLIED and leaves the booking's status untouched.
// An outcome whose submission no longer owns the booking is logged as
// SUPERSEDED and the booking row is not written.
func (r PaymentRepository) RecordOutcome(ctx context.Context, entry models.PaymentLogEntry, tr models.Transition) (models.Booking, models.PaymentLogEntry, error) {
	var out models.Booking
	err := intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		var (
			trip   models.Trip
			active int
		)
		if tr.Kind == models.TransitionConfirm {
			var tripID string
			if err := tx.QueryRowContext(ctx, `SELECT trip_id FROM bookings WHERE id=?`, entry.BookingID).Scan(&tripID); err != nil {
				if err == sql.ErrNoRows {
					return domain.NotFoundError{Resource: "booking", Err: err}
				}
				return fmt.Errorf("load booking trip: %w", err)
			}
			row := tx.QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips t WHERE t.id=? FOR UPDATE`, tripID)
			locked, err := scanTripOrNotFound(row)
			if err != nil {
				return err
			}
			trip = locked
			if active, err = activeSeats(ctx, tx, tripID); err != nil {
				return err
			}
		}

		row := tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings b WHERE b.id=? FOR UPDATE`, entry.BookingID)
		b, err := scanBookingOrNotFound(row)
		if err != nil {
			return err
		}

		if models.Superseded(b, tr) {
			entry.Outcome = models.OutcomeSuperseded
			if err := insertPaymentLog(ctx, tx, entry); err != nil {
				return err
			}
			out = b
			return nil
		}

		applied := models.ApplyTransition(&b, trip, active, tr)
		if tr.Kind == models.TransitionConfirm && !applied {
			entry.Outcome = models.OutcomeSuccessUnapplied
		}

		if err := insertPaymentLog(ctx, tx, entry); err != nil {
			return err
		}
		if err := saveBookingState(ctx, tx, b); err != nil {
			return err
		}
		out = b
		return nil
	})
	if err != nil {
		return models.Booking{}, entry, err
	}
	return out, entry, nil
}

// AppendLog writes a standalone entry, used when the outcome transaction
// itself could not commit.
func (r PaymentRepository) AppendLog(ctx context.Context, entry models.PaymentLogEntry) error {
	return insertPaymentLog(ctx, r.db(), entry)
}

// ReleaseSubmission returns a SUBMITTED booking to IDLE with its attempt
// left open. With submittedAt set, only that submission is released.
func (r PaymentRepository) ReleaseSubmission(ctx context.Context, id string, submittedAt *time.Time) error {
	query := `
		UPDATE bookings SET submission_state='IDLE', submitted_at=NULL, updated_at=?
		WHERE id=? AND submission_state='SUBMITTED'`
	args := []any{utils.NowUTC(), id}
	if submittedAt != nil {
		query += ` AND submitted_at=?`
		args = append(args, *submittedAt)
	}
	_, err := r.db().ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("release submission: %w", err)
	}
	return nil
}

// ReleaseStale releases submissions stuck since before cutoff, logging one
// entry per booking built by entryFor.
func (r PaymentRepository) ReleaseStale(ctx context.Context, cutoff time.Time, entryFor func(models.Booking) models.PaymentLogEntry) ([]models.Booking, error) {
	released := []models.Booking{}
	err := intdb.WithTx(ctx, r.db(), func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+bookingColumns+` FROM bookings b
			WHERE b.submission_state='SUBMITTED' AND b.submitted_at < ?
			ORDER BY b.submitted_at ASC
			LIMIT ?
			FOR UPDATE`, cutoff, staleBatch)
		if err != nil {
			return fmt.Errorf("find stale submissions: %w", err)
		}
		stale, err := collectBookings(rows)
		if err != nil {
			return err
		}

		now := utils.NowUTC()
		for _, b := range stale {
			models.ApplyTransition(&b, models.Trip{}, 0, models.Transition{Kind: models.TransitionRelease, At: now})
			if err := insertPaymentLog(ctx, tx, entryFor(b)); err != nil {
				return err
			}
			if err := saveBookingState(ctx, tx, b); err != nil {
				return err
			}
			released = append(released, b)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// ListLogs returns a booking's payment history, oldest first.
func (r PaymentRepository) ListLogs(ctx context.Context, bookingID string) ([]models.PaymentLogEntry, error) {
	rows, err := r.db().QueryContext(ctx, `
		SELECT id, booking_id, payer_account, amount, currency, invoice_id, COALESCE(reference_id,''),
			COALESCE(transaction_id,''), idempotency_key, attempt, outcome, COALESCE(raw_response,''), created_at
		FROM payment_logs
		WHERE booking_id=?
		ORDER BY created_at ASC, id ASC`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("list payment logs: %w", err)
	}
	defer rows.Close()

	out := []models.PaymentLogEntry{}
	for rows.Next() {
		var e models.PaymentLogEntry
		if err := rows.Scan(
			&e.ID, &e.BookingID, &e.PayerAccount, &e.Amount, &e.Currency, &e.InvoiceID, &e.ReferenceID,
			&e.TransactionID, &e.IdempotencyKey, &e.Attempt, &e.Outcome, &e.RawResponse, &e.CreatedAt,
		); err != nil {
			return out, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// fitLogColumns clips text fields to the payment_logs column widths.
func fitLogColumns(e models.PaymentLogEntry) models.PaymentLogEntry {
	e.PayerAccount = utils.Truncate(e.PayerAccount, models.MaxPayerAccountLen)
	e.Currency = utils.Truncate(e.Currency, models.MaxCurrencyLen)
	e.InvoiceID = utils.Truncate(e.InvoiceID, models.MaxInvoiceIDLen)
	e.ReferenceID = utils.Truncate(e.ReferenceID, models.MaxReferenceLen)
	e.TransactionID = utils.Truncate(e.TransactionID, models.MaxReferenceLen)
	e.Outcome = utils.Truncate(e.Outcome, models.MaxOutcomeLen)
	return e
}

func insertPaymentLog(ctx context.Context, q intdb.Querier, e models.PaymentLogEntry) error {
	e = fitLogColumns(e)
	_, err := q.ExecContext(ctx, `
		INSERT INTO payment_logs (id, booking_id, payer_account, amount, currency, invoice_id, reference_id,
			transaction_id, idempotency_key, attempt, outcome, raw_response, created_at)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.BookingID, e.PayerAccount, e.Amount, e.Currency, e.InvoiceID, intdb.NullIfEmpty(e.ReferenceID),
		intdb.NullIfEmpty(e.TransactionID), e.IdempotencyKey, e.Attempt, e.Outcome, e.RawResponse, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append payment log: %w", err)
	}
	return nil
}

func submissionConflict(b models.Booking) error {
	switch {
	case b.Submission == models.SubmissionSubmitted:
		return domain.ConflictError{Resource: "booking", Msg: "payment already in progress"}
	case b.PaymentStatus == models.PaymentPaid:
		return domain.ConflictError{Resource: "booking", Msg: "booking already paid"}
	default:
		return domain.ConflictError{Resource: "booking", Msg: "booking is not payable"}
	}
}
