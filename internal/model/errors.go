package model

import (
	"errors"
	"fmt"
)

// Sentinel errors, checked with errors.Is. HTTP mapping lives in the
// handlers package; nothing below this layer knows about status codes.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("time slot conflicts with an existing booking")
	ErrUnauthenticated   = errors.New("unauthenticated")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient available balance")
	ErrInvalidRange      = errors.New("installment count out of range")
	ErrAlreadyPaid       = errors.New("installment is not pending")
	ErrNotOwner          = errors.New("caller does not own the payment plan")
)

// StateTransitionError reports an illegal booking status change.
type StateTransitionError struct {
	From BookingStatus
	To   BookingStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("illegal booking transition %s -> %s", e.From, e.To)
}

// ValidationError reports bad input shape. Always local, never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Validationf(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// GatewayError wraps a payment gateway failure.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
