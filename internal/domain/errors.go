package domain

import (
	"errors"
	"fmt"
)

// DomainError keeps a machine-readable code next to the wrapped cause.
type DomainError struct {
	Code string
	Err  error
}

func (e DomainError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e DomainError) Unwrap() error {
	return e.Err
}

// NotFoundError is also returned when the record exists but is soft-deleted
// or owned by someone else, so foreign records stay indistinguishable from missing ones.
type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

// AdmissionReason names why a booking could not be admitted.
type AdmissionReason string

const (
	CapacityExceeded AdmissionReason = "capacity_exceeded"
	TripNotBookable  AdmissionReason = "trip_not_bookable"
)

// AdmissionError rejects a booking request without side effects.
type AdmissionError struct {
	Reason    AdmissionReason
	Requested int
	Available int
	Msg       string
}

func (e AdmissionError) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Reason == CapacityExceeded:
		return fmt.Sprintf("requested %d seats but only %d available", e.Requested, e.Available)
	case e.Reason == TripNotBookable:
		return "trip is not bookable"
	default:
		return "booking not admitted"
	}
}

// GatewayTransportError means the outcome of a charge is unknown: the request
// may or may not have reached the provider.
type GatewayTransportError struct {
	Op  string
	Err error
}

func (e GatewayTransportError) Error() string {
	if e.Err == nil {
		return "payment gateway unreachable"
	}
	if e.Op == "" {
		return fmt.Sprintf("payment gateway: %v", e.Err)
	}
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e GatewayTransportError) Unwrap() error { return e.Err }

// GatewayBusinessError is an explicit decline reported by the provider.
type GatewayBusinessError struct {
	Code string
	Msg  string
}

func (e GatewayBusinessError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("payment declined (%s): %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("payment declined (%s)", e.Code)
}

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}

func IsAdmission(err error) bool {
	var target AdmissionError
	return errors.As(err, &target)
}

func IsCapacityExceeded(err error) bool {
	var target AdmissionError
	return errors.As(err, &target) && target.Reason == CapacityExceeded
}

func IsTripNotBookable(err error) bool {
	var target AdmissionError
	return errors.As(err, &target) && target.Reason == TripNotBookable
}

func IsGatewayTransport(err error) bool {
	var target GatewayTransportError
	return errors.As(err, &target)
}

func IsGatewayBusiness(err error) bool {
	var target GatewayBusinessError
	return errors.As(err, &target)
}
