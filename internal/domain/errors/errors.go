package errors

import (
	"errors"
	"fmt"
)

var (
	// Coupon errors
	ErrInvalidCouponCode = errors.New("Invalid coupon code")
	ErrCouponUnsupported = errors.New("coupon codes are not supported for this payment")
	ErrCouponRejected    = errors.New("coupon code rejected")
	ErrCouponSuperseded  = errors.New("coupon code superseded by a newer entry")

	// Session errors
	ErrSessionNotFound      = errors.New("payment session not found")
	ErrSessionFinished      = errors.New("payment session already finished")
	ErrSessionSetup         = errors.New("payment session setup failed")
	ErrSessionAlreadyActive = errors.New("payment session already presented")

	// Pricing errors
	ErrPricingUnavailable = errors.New("pricing service unavailable")
	ErrPricingTimeout     = errors.New("pricing service request timeout")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidCurrency  = errors.New("invalid currency")
	ErrEmptyOrder       = errors.New("order has no line items")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// SessionSetupError reports why a payment session could not be started.
// It matches both ErrSessionSetup and the underlying cause.
type SessionSetupError struct {
	Stage string
	Err   error
}

func (e *SessionSetupError) Error() string {
	return fmt.Sprintf("%s at %s: %v", ErrSessionSetup.Error(), e.Stage, e.Err)
}

func (e *SessionSetupError) Unwrap() []error {
	return []error{ErrSessionSetup, e.Err}
}

// NewSessionSetupError creates a new session setup error
func NewSessionSetupError(stage string, err error) *SessionSetupError {
	return &SessionSetupError{Stage: stage, Err: err}
}
