package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbooking/internal/http/middleware"
	"tripbooking/internal/services"
)

type payRequest struct {
	BookingID   string   `json:"bookingId" binding:"required"`
	AccountNo   string   `json:"accountNo" binding:"required"`
	InvoiceID   string   `json:"invoiceId"`
	Description string   `json:"description"`
	Amount      *float64 `json:"amount"`
}

// POST /api/payments/pay
func PayBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req payRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	res, err := paymentService(middleware.GetRequestID(c)).Pay(c.Request.Context(), actor, services.PayInput{
		BookingID:   req.BookingID,
		AccountNo:   req.AccountNo,
		InvoiceID:   req.InvoiceID,
		Description: req.Description,
		Amount:      req.Amount,
	})
	if err != nil {
		var details any
		if res.Outcome != "" {
			details = gin.H{
				"outcome":        res.Outcome,
				"attempt":        res.Attempt,
				"idempotencyKey": res.IdempotencyKey,
				"bookingStatus":  res.Booking.Status,
				"paymentStatus":  res.Booking.PaymentStatus,
			}
		}
		respondDomainError(c, err, details)
		return
	}
	c.JSON(http.StatusOK, res)
}
