package services

import (
	"fmt"

	"github.com/google/uuid"
)

// idempotencyNamespace scopes payment idempotency keys; changing it would
// re-key every open attempt.
var idempotencyNamespace = uuid.MustParse("6f1c1e52-4b55-4a8e-9d0c-7f3e2b8a9c11")

// IdempotencyKey is deterministic per (booking, attempt): a retried attempt
// presents the same key to the gateway.
func IdempotencyKey(bookingID string, attempt int) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(fmt.Sprintf("%s:%d", bookingID, attempt))).String()
}

// NewID returns a time-ordered identifier for new rows.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
