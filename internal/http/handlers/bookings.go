package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbooking/internal/domain/models"
	"tripbooking/internal/http/middleware"
)

type bookingRequest struct {
	TripID      string `json:"tripId" binding:"required"`
	SeatsBooked int    `json:"seatsBooked" binding:"required"`
}

// POST /api/bookings
func CreateBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	var req bookingRequest
	if !BindJSONOrError(c, &req) {
		return
	}
	b, err := bookingService(middleware.GetRequestID(c)).Admit(c.Request.Context(), actor, req.TripID, req.SeatsBooked)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// GET /api/bookings
func ListMyBookings(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	list, page, err := bookingService(middleware.GetRequestID(c)).ListMine(c.Request.Context(), actor,
		queryInt(c, "page", 1), queryInt(c, "limit", 0))
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if list == nil {
		list = []models.Booking{}
	}
	c.JSON(http.StatusOK, gin.H{
		"bookings":    list,
		"total":       page.Total,
		"totalPages":  page.TotalPages,
		"currentPage": page.Page,
	})
}

// GET /api/bookings/:id
func GetBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := bookingService(middleware.GetRequestID(c)).Get(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// POST /api/bookings/:id/cancel
func CancelBooking(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	b, err := bookingService(middleware.GetRequestID(c)).Cancel(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}

// GET /api/bookings/:id/payments
func GetBookingPayments(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logs, err := bookingService(middleware.GetRequestID(c)).PaymentLogs(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if logs == nil {
		logs = []models.PaymentLogEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"bookingId": id, "payments": logs})
}

// GET /api/bookings/:id/receipt
func GetBookingReceipt(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	pdf, filename, err := receiptService(middleware.GetRequestID(c)).Generate(c.Request.Context(), actor, id)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", pdf)
}
