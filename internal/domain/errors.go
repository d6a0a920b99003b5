package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTenderTransition = errors.New("invalid tender state transition")
	ErrNoActiveSession         = errors.New("no active tender session")
	ErrNoFailedAttempt         = errors.New("no failed payment attempt to retry")
	ErrNotConnected            = errors.New("zone channel is not connected")
	ErrSessionClosed           = errors.New("tender session has been closed")
)

// ValidationError is bad operator input. It is handled where it occurs and
// never moves the tender into the payment_error state.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// PaymentDeclinedError is a declined capture. Retryable by the operator.
type PaymentDeclinedError struct {
	Method PaymentMethod
	Reason string
}

func (e *PaymentDeclinedError) Error() string {
	return fmt.Sprintf("payment declined (%s): %s", e.Method, e.Reason)
}

// TerminalError is a card terminal handshake or collection failure.
// Retryable by the operator.
type TerminalError struct {
	Op  string
	Err error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("card terminal %s failed: %v", e.Op, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// InsufficientBalanceError is a gift card with less value than the requested
// redemption. The tender stays in awaiting_gift_card so the operator can
// correct the amount or switch cards.
type InsufficientBalanceError struct {
	Available string
	Requested string
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("gift card balance %s is less than requested %s", e.Available, e.Requested)
}

// ApprovalRequiredError is not a failure: the operation was accepted by the
// backend as a pending approval request and the flow must suspend until a
// decision arrives.
type ApprovalRequiredError struct {
	RequestID string
	Operation string
}

func (e *ApprovalRequiredError) Error() string {
	return fmt.Sprintf("%s requires manager approval (request %s)", e.Operation, e.RequestID)
}

// PolicyViolationError is terminal for the attempt, e.g. a user approving
// their own request when the location policy disallows it.
type PolicyViolationError struct {
	Policy string
	Detail string
}

func (e *PolicyViolationError) Error() string {
	return fmt.Sprintf("policy violation (%s): %s", e.Policy, e.Detail)
}
