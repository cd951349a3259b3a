package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	intconfig "tripbooking/internal/config"
	"tripbooking/internal/domain"
	"tripbooking/internal/domain/models"
	"tripbooking/internal/gateway"
	"tripbooking/internal/logger"
	"tripbooking/internal/repositories"
	"tripbooking/internal/utils"
)

// persistTimeout bounds ledger writes after the gateway answered. Those
// writes run detached from the caller so a dropped client cannot lose them.
const persistTimeout = intconfig.LedgerWriteTimeout

// PayInput is a rider's request to pay for a booking.
type PayInput struct {
	BookingID   string
	AccountNo   string
	InvoiceID   string
	Description string
	// Amount is optional; when sent it must match the server-side fare.
	Amount *float64
}

// PayResult reports what the ledger recorded for the submission.
type PayResult struct {
	Booking        models.Booking  `json:"booking"`
	Outcome        string          `json:"outcome"`
	Attempt        int             `json:"attempt"`
	IdempotencyKey string          `json:"idempotencyKey"`
	Gateway        json.RawMessage `json:"gatewayResponse,omitempty"`
}

// PaymentService drives one submission: gateway call, then the log entry
// and booking transition written together.
type PaymentService struct {
	Bookings    BookingLedger
	Trips       TripStore
	Ledger      PaymentLedger
	Gateway     gateway.Client
	Currency    string
	MaxDeclines int
	RequestID   string
	Now         func() time.Time
}

func (s PaymentService) bookings() BookingLedger {
	if s.Bookings != nil {
		return s.Bookings
	}
	return repositories.BookingRepository{}
}

func (s PaymentService) trips() TripStore {
	if s.Trips != nil {
		return s.Trips
	}
	return repositories.TripRepository{}
}

func (s PaymentService) ledger() PaymentLedger {
	if s.Ledger != nil {
		return s.Ledger
	}
	return repositories.PaymentRepository{}
}

func (s PaymentService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return utils.NowUTC()
}

func (s PaymentService) currency() string {
	if s.Currency != "" {
		return s.Currency
	}
	return "USD"
}

// Pay submits a booking's payment. Only one submission per booking runs at
// a time; a concurrent caller gets a ConflictError without reaching the
// gateway. Every gateway interaction leaves exactly one log entry.
func (s PaymentService) Pay(ctx context.Context, actor domain.Actor, in PayInput) (PayResult, error) {
	bookingID := strings.TrimSpace(in.BookingID)
	account := utils.DigitsOnly(in.AccountNo)
	if bookingID == "" {
		return PayResult{}, domain.ValidationError{Field: "bookingId", Msg: "required"}
	}
	if account == "" {
		return PayResult{}, domain.ValidationError{Field: "accountNo", Msg: "must contain digits"}
	}
	if len(account) > models.MaxPayerAccountLen {
		return PayResult{}, domain.ValidationError{Field: "accountNo", Msg: fmt.Sprintf("at most %d digits", models.MaxPayerAccountLen)}
	}
	invoiceID := strings.TrimSpace(in.InvoiceID)
	if utf8.RuneCountInString(invoiceID) > models.MaxInvoiceIDLen {
		return PayResult{}, domain.ValidationError{Field: "invoiceId", Msg: fmt.Sprintf("at most %d characters", models.MaxInvoiceIDLen)}
	}
	if s.Gateway == nil {
		return PayResult{}, domain.InternalError{Msg: "payment gateway not configured"}
	}

	booking, err := s.bookings().Get(ctx, bookingID)
	if err != nil {
		return PayResult{}, err
	}
	if booking.RiderID != actor.ID {
		return PayResult{}, domain.NotFoundError{Resource: "booking"}
	}
	trip, err := s.trips().Get(ctx, booking.TripID)
	if err != nil {
		return PayResult{}, err
	}
	if !trip.Bookable() {
		return PayResult{}, domain.ConflictError{Resource: "booking", Msg: "trip is no longer bookable"}
	}
	amount := utils.ComputeFare(booking.SeatsBooked, trip.Price)
	if amount <= 0 {
		return PayResult{}, domain.ValidationError{Field: "amount", Msg: "nothing to pay"}
	}
	if in.Amount != nil && !utils.SameAmount(*in.Amount, amount) {
		return PayResult{}, domain.ValidationError{
			Field: "amount",
			Msg:   fmt.Sprintf("expected %s", utils.FormatMoney(amount)),
		}
	}

	booking, err = s.ledger().BeginSubmission(ctx, bookingID)
	if err != nil {
		return PayResult{}, err
	}

	key := IdempotencyKey(booking.ID, booking.PaymentAttempt)
	if invoiceID == "" {
		invoiceID = booking.ID
	}
	log := logger.Event(s.RequestID, "payments", "submit").WithFields(logrus.Fields{
		"booking_id": booking.ID,
		"attempt":    booking.PaymentAttempt,
		"account":    utils.MaskAccount(account),
		"amount":     utils.FormatMoney(amount),
	})

	res, gwErr := s.Gateway.Purchase(ctx, gateway.PurchaseRequest{
		RequestID:    key,
		ReferenceID:  key,
		InvoiceID:    invoiceID,
		PayerAccount: account,
		Amount:       amount,
		Currency:     s.currency(),
		Description:  in.Description,
	})

	entry := models.PaymentLogEntry{
		ID:             NewID(),
		BookingID:      booking.ID,
		PayerAccount:   account,
		Amount:         amount,
		Currency:       s.currency(),
		InvoiceID:      invoiceID,
		ReferenceID:    res.ReferenceID,
		TransactionID:  res.TransactionID,
		IdempotencyKey: key,
		Attempt:        booking.PaymentAttempt,
		RawResponse:    string(res.Raw),
		CreatedAt:      s.now(),
	}
	tr := models.Transition{
		At:          entry.CreatedAt,
		MaxDeclines: s.MaxDeclines,
		Attempt:     booking.PaymentAttempt,
		SubmittedAt: booking.SubmittedAt,
	}
	var outcomeErr error

	switch {
	case gwErr != nil:
		entry.Outcome = models.OutcomeError
		entry.RawResponse = transportDetail(gwErr, res.Raw)
		tr.Kind = models.TransitionRelease
		if !domain.IsGatewayTransport(gwErr) {
			gwErr = domain.GatewayTransportError{Op: "purchase", Err: gwErr}
		}
		outcomeErr = gwErr
	case res.Succeeded():
		entry.Outcome = models.OutcomeSuccess
		tr.Kind = models.TransitionConfirm
		tr.TransactionID = firstNonEmpty(res.TransactionID, res.ReferenceID)
		tr.Amount = amount
		tr.Method = models.PaymentMethodEVCPlus
	default:
		entry.Outcome = res.DeclineCode()
		tr.Kind = models.TransitionDecline
		outcomeErr = domain.GatewayBusinessError{Code: res.DeclineCode(), Msg: res.ResponseCode}
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	updated, logged, err := s.ledger().RecordOutcome(pctx, entry, tr)
	if err != nil {
		return s.recordFallback(pctx, log, entry, tr, err)
	}

	result := PayResult{
		Booking:        updated,
		Outcome:        logged.Outcome,
		Attempt:        entry.Attempt,
		IdempotencyKey: key,
		Gateway:        rawJSON(res.Raw),
	}
	log = log.WithField("outcome", logged.Outcome)

	switch {
	case logged.Outcome == models.OutcomeSuperseded:
		log.WithField("gateway_outcome", entry.Outcome).Warn("late payment outcome; a newer submission owns the booking")
		return result, domain.ConflictError{Resource: "booking", Msg: "a newer payment submission is in progress"}
	case outcomeErr != nil && domain.IsGatewayTransport(outcomeErr):
		log.WithError(outcomeErr).Warn("payment outcome unknown, attempt left open")
		return result, outcomeErr
	case outcomeErr != nil:
		log.WithField("status", updated.Status).Info("payment declined")
		return result, outcomeErr
	case logged.Outcome == models.OutcomeSuccessUnapplied:
		log.Error("charge succeeded but booking can no longer be confirmed; refund required")
		return result, domain.ConflictError{Resource: "booking", Msg: "payment received but booking could not be confirmed"}
	}
	log.WithField("transaction_id", updated.TransactionID).Info("payment confirmed")
	return result, nil
}

// recordFallback runs when the outcome transaction did not commit, so
// neither the entry nor the transition is visible. The attempt is kept in
// the log standalone; a success becomes UNRECONCILED and the submission is
// released with its attempt open, so a retry reuses the same key.
func (s PaymentService) recordFallback(ctx context.Context, log *logrus.Entry, entry models.PaymentLogEntry, tr models.Transition, cause error) (PayResult, error) {
	if tr.Kind == models.TransitionConfirm {
		entry.Outcome = models.OutcomeUnreconciled
	}
	log = log.WithField("outcome", entry.Outcome).WithError(cause)

	if err := s.ledger().AppendLog(ctx, entry); err != nil {
		log.WithField("log_error", err.Error()).WithField("raw", entry.RawResponse).
			Error("payment log write failed; attempt recorded here only")
	}
	if err := s.ledger().ReleaseSubmission(ctx, entry.BookingID, tr.SubmittedAt); err != nil {
		log.WithField("release_error", err.Error()).Error("submission left SUBMITTED; sweeper will release it")
	}
	log.Error("payment outcome not applied")

	return PayResult{Outcome: entry.Outcome, Attempt: entry.Attempt, IdempotencyKey: entry.IdempotencyKey},
		domain.InternalError{Msg: "payment outcome could not be recorded; retry to reconcile", Err: cause}
}

func transportDetail(err error, raw []byte) string {
	var b strings.Builder
	b.WriteString(err.Error())
	if len(raw) > 0 {
		b.WriteString("\n")
		b.Write(raw)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		b.WriteString("\n(timeout)")
	}
	return b.String()
}

func rawJSON(raw []byte) json.RawMessage {
	if len(raw) == 0 || !json.Valid(raw) {
		return nil
	}
	return json.RawMessage(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
