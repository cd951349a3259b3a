package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tripbooking/internal/domain"
	"tripbooking/internal/http/middleware"
	"tripbooking/internal/logger"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		Message:   message,
		RequestID: middleware.GetRequestID(c),
		Details:   details,
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	respondDomainError(c, err, nil)
}

func respondDomainError(c *gin.Context, err error, details any) {
	var admission domain.AdmissionError
	var declined domain.GatewayBusinessError
	var internal domain.InternalError

	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "validation_error", err.Error(), details)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "not_found", err.Error(), details)
	case errors.As(err, &admission):
		respondError(c, http.StatusConflict, string(admission.Reason), err.Error(), gin.H{
			"requested": admission.Requested,
			"available": admission.Available,
		})
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "conflict", err.Error(), details)
	case errors.As(err, &declined):
		respondError(c, http.StatusPaymentRequired, "payment_declined", err.Error(), details)
	case domain.IsGatewayTransport(err):
		respondError(c, http.StatusBadGateway, "payment_indeterminate",
			"payment outcome unknown; retry to reconcile", details)
	case errors.As(err, &internal):
		logger.Event(middleware.GetRequestID(c), "http", "error").WithError(err).Error("internal error")
		respondError(c, http.StatusInternalServerError, "internal_error", internal.Error(), details)
	default:
		logger.Event(middleware.GetRequestID(c), "http", "error").WithError(err).Error("unhandled error")
		respondError(c, http.StatusInternalServerError, "internal_error", "internal error", details)
	}
}
