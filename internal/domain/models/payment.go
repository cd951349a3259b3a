package models

import "time"

// Outcomes written to the payment log. A definitive decline is logged with
// the gateway's own response code instead.
const (
	OutcomeSuccess          = "SUCCESS"
	OutcomeError            = "ERROR"
	OutcomeSuccessUnapplied = "SUCCESS_UNAPPLIED"
	// OutcomeUnreconciled marks a gateway success whose confirmation could
	// not be persisted; the attempt stays open for an idempotent retry.
	OutcomeUnreconciled = "UNRECONCILED"
	// OutcomeSuperseded marks a late answer for a submission that no longer
	// owns its booking; the booking is left to the newer submission.
	OutcomeSuperseded = "SUPERSEDED"
)

// Column widths of payment_logs and bookings.transaction_id.
const (
	MaxPayerAccountLen = 32
	MaxCurrencyLen     = 8
	MaxInvoiceIDLen    = 128
	MaxReferenceLen    = 128
	MaxOutcomeLen      = 64
)

// PaymentLogEntry is one append-only record per gateway interaction.
type PaymentLogEntry struct {
	ID             string    `json:"id"`
	BookingID      string    `json:"bookingId"`
	PayerAccount   string    `json:"phoneNumber"`
	Amount         float64   `json:"amount"`
	Currency       string    `json:"currency"`
	InvoiceID      string    `json:"invoiceId"`
	ReferenceID    string    `json:"referenceId,omitempty"`
	TransactionID  string    `json:"transactionId,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey"`
	Attempt        int       `json:"attempt"`
	Outcome        string    `json:"status"`
	RawResponse    string    `json:"response"`
	CreatedAt      time.Time `json:"createdAt"`
}
