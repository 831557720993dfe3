package service

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

// ServiceError represents a business logic error with a code
type ServiceError struct {
	Err     error
	Message string
	Code    string
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Common error codes
const (
	ErrCodeInvalidAmount       = "invalid_amount"
	ErrCodeInvalidAddress      = "invalid_address"
	ErrCodeInvalidReference    = "invalid_reference"
	ErrCodeInvalidDescription  = "invalid_description"
	ErrCodeInvalidCommand      = "invalid_command"
	ErrCodeTransactionNotFound = "transaction_not_found"
	ErrCodeReferenceConflict   = "reference_conflict"
	ErrCodeInternalError       = "internal_error"
)

// ValidationError is a request rejected locally, before any network call
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ConflictError reports a terminal result that contradicts the one already recorded.
// The recorded result stands.
type ConflictError struct {
	Recorded      models.TerminalResult
	Rejected      models.TerminalResult
	Source        string
	TransactionID uuid.UUID
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflicting result for transaction %s from %s: recorded %s, rejected %s",
		e.TransactionID, e.Source, e.Recorded.State, e.Rejected.State)
}

// MalformedCallbackError reports a callback payload that cannot be interpreted.
// Redelivery will not change its shape, so it is never retried.
type MalformedCallbackError struct {
	Err  error
	Kind models.CallbackKind
}

func (e *MalformedCallbackError) Error() string {
	return fmt.Sprintf("malformed %s callback: %v", e.Kind, e.Err)
}

func (e *MalformedCallbackError) Unwrap() error {
	return e.Err
}

func internalError(message string, err error) *ServiceError {
	return &ServiceError{Code: ErrCodeInternalError, Message: message, Err: err}
}
