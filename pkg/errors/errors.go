package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrNotFound is returned when a resource does not exist
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrUnauthorized is returned when credentials are missing or invalid
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	return fmt.Sprintf("unauthorized: %s", e.Message)
}

// ErrInvalidStateTransition is returned when an order status change is not allowed
type ErrInvalidStateTransition struct {
	From fmt.Stringer
	To   fmt.Stringer
}

func (e *ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid state transition from %s to %s", e.From, e.To)
}

// Validation codes
const (
	CodeInvalidAmount   = "invalid_amount"
	CodeTotalMismatch   = "total_mismatch"
	CodeMissingField    = "missing_field"
	CodeInvalidItem     = "invalid_item"
	CodeInvalidCurrency = "invalid_currency"
	CodeMissingPrice    = "missing_price"
)

// ValidationError means the caller sent something we cannot act on and must resubmit
type ValidationError struct {
	Code    string
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed (%s) on %s: %s", e.Code, e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed (%s): %s", e.Code, e.Message)
}

// AuthenticityError is returned when a webhook signature is absent or does not verify
type AuthenticityError struct {
	Reason string
}

func (e *AuthenticityError) Error() string {
	return fmt.Sprintf("webhook authenticity check failed: %s", e.Reason)
}

// ErrDuplicateOrder signals that an order for the payment already exists.
// Callers treat it as success and return the existing order.
type ErrDuplicateOrder struct {
	Key string
}

func (e *ErrDuplicateOrder) Error() string {
	return fmt.Sprintf("order already exists for %s", e.Key)
}

// DownstreamWriteFailure wraps a failed write against the CMS or another store
type DownstreamWriteFailure struct {
	Op  string
	Err error
}

func (e *DownstreamWriteFailure) Error() string {
	return fmt.Sprintf("downstream write failed (%s): %v", e.Op, e.Err)
}

func (e *DownstreamWriteFailure) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is or wraps an *ErrNotFound
func IsNotFound(err error) bool {
	var target *ErrNotFound
	return stderrors.As(err, &target)
}

// IsValidation reports whether err is or wraps a *ValidationError
func IsValidation(err error) bool {
	var target *ValidationError
	return stderrors.As(err, &target)
}

// IsDuplicate reports whether err is or wraps an *ErrDuplicateOrder
func IsDuplicate(err error) bool {
	var target *ErrDuplicateOrder
	return stderrors.As(err, &target)
}

// IsAuthenticity reports whether err is or wraps an *AuthenticityError
func IsAuthenticity(err error) bool {
	var target *AuthenticityError
	return stderrors.As(err, &target)
}
