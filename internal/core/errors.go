package core

import (
	"errors"
	"fmt"
)

// InsufficientStockError means a medicine does not hold enough stock for a request.
// Nothing is mutated when it is returned.
type InsufficientStockError struct {
	MedicineID   int
	MedicineName string
	Available    int
	Requested    int
}

func (e *InsufficientStockError) Error() string {
	name := e.MedicineName
	if name == "" {
		name = fmt.Sprintf("medicine %d", e.MedicineID)
	}
	return fmt.Sprintf("insufficient stock for %s: available %d, requested %d", name, e.Available, e.Requested)
}

// InvalidTransitionError means the event is not allowed from the order's current status.
type InvalidTransitionError struct {
	OrderID int
	Current OrderStatus
	Event   Event
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %d cannot %s: status is %s", e.OrderID, e.Event, e.Current)
}

// UnauthorizedError means the actor is not allowed to act on the resource.
type UnauthorizedError struct {
	ActorID  int
	Required string
}

func (e *UnauthorizedError) Error() string {
	return fmt.Sprintf("user %d is not permitted: requires %s", e.ActorID, e.Required)
}

// NotFoundError means a referenced record does not exist.
type NotFoundError struct {
	Entity string
	ID     int
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// ValidationError means the request itself is malformed.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrorKind classifies errors returned by the services.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindInsufficientStock
	KindInvalidTransition
	KindUnauthorized
	KindNotFound
	KindValidation
)

// Code is the stable tag reported to callers.
func (k ErrorKind) Code() string {
	switch k {
	case KindInsufficientStock:
		return "INSUFFICIENT_STOCK"
	case KindInvalidTransition:
		return "INVALID_TRANSITION"
	case KindUnauthorized:
		return "FORBIDDEN"
	case KindNotFound:
		return "NOT_FOUND"
	case KindValidation:
		return "BAD_REQUEST"
	default:
		return "INTERNAL_ERROR"
	}
}

// KindOf classifies err. Anything unrecognised is a persistence failure.
func KindOf(err error) ErrorKind {
	var (
		stockErr *InsufficientStockError
		transErr *InvalidTransitionError
		authErr  *UnauthorizedError
		notFound *NotFoundError
		validErr *ValidationError
	)
	switch {
	case errors.As(err, &stockErr):
		return KindInsufficientStock
	case errors.As(err, &transErr):
		return KindInvalidTransition
	case errors.As(err, &authErr):
		return KindUnauthorized
	case errors.As(err, &notFound):
		return KindNotFound
	case errors.As(err, &validErr):
		return KindValidation
	default:
		return KindInternal
	}
}
