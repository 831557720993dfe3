package api

import "time"

// ErrorCode identifies an API error
type ErrorCode string

const (
	ErrorCodeInvalidRequest     ErrorCode = "invalid_request"
	ErrorCodeInvalidAmount      ErrorCode = "invalid_amount"
	ErrorCodeInvalidAddress     ErrorCode = "invalid_address"
	ErrorCodeInvalidReference   ErrorCode = "invalid_reference"
	ErrorCodeInvalidDescription ErrorCode = "invalid_description"
	ErrorCodeInvalidCommand     ErrorCode = "invalid_command"
	ErrorCodeNotFound           ErrorCode = "not_found"
	ErrorCodeReferenceConflict  ErrorCode = "reference_conflict"
	ErrorCodeGatewayRejected    ErrorCode = "gateway_rejected"
	ErrorCodeGatewayAuthFailed  ErrorCode = "gateway_auth_failed"
	ErrorCodeGatewayUnavailable ErrorCode = "gateway_unavailable"
	ErrorCodeGatewayBadResponse ErrorCode = "gateway_bad_response"
	ErrorCodeInternalError      ErrorCode = "internal_error"
)

// HealthStatus values
const (
	Healthy   = "healthy"
	Unhealthy = "unhealthy"
)

// Health is the body of GET /health
type Health struct {
	Status string `json:"status"`
}

// Error is the body of every non-2xx API response
type Error struct {
	Transaction *Transaction `json:"transaction,omitempty"`
	Error       ErrorCode    `json:"error"`
	Message     string       `json:"message"`
	Field       string       `json:"field,omitempty"`
}

// CreatePaymentRequest is the body of POST /api/v1/payments
type CreatePaymentRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
	Reference   string `json:"reference" validate:"required"`
	Description string `json:"description"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// CreateDisbursementRequest is the body of POST /api/v1/disbursements
type CreateDisbursementRequest struct {
	Reference   string `json:"reference" validate:"required"`
	PhoneNumber string `json:"phone_number" validate:"required"`
	CommandID   string `json:"command_id" validate:"required,oneof=BusinessPayment SalaryPayment PromotionPayment"`
	Remarks     string `json:"remarks" validate:"required"`
	Occasion    string `json:"occasion"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
}

// Transaction is the API view of a ledger entry
type Transaction struct {
	CreatedAt         time.Time  `json:"created_at"`
	FinalizedAt       *time.Time `json:"finalized_at,omitempty"`
	ResultCode        *int       `json:"result_code,omitempty"`
	ID                string     `json:"id"`
	Kind              string     `json:"kind"`
	State             string     `json:"state"`
	PhoneNumber       string     `json:"phone_number"`
	Reference         string     `json:"reference"`
	Description       string     `json:"description,omitempty"`
	CommandID         string     `json:"command_id,omitempty"`
	CorrelationID     string     `json:"correlation_id,omitempty"`
	MerchantRequestID string     `json:"merchant_request_id,omitempty"`
	ResultDescription string     `json:"result_description,omitempty"`
	ReceiptNumber     string     `json:"receipt_number,omitempty"`
	Warning           string     `json:"warning,omitempty"`
	Amount            int64      `json:"amount"`
}

// StatusResult is the body of POST /api/v1/payments/{paymentId}/query
type StatusResult struct {
	Transaction Transaction `json:"transaction"`
	Pending     bool        `json:"pending"`
}
