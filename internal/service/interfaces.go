package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

// HealthChecker validates system health.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PaymentInitiator starts customer push payments
type PaymentInitiator interface {
	Initiate(ctx context.Context, req PaymentRequest) (*models.Transaction, error)
	GetPayment(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// StatusQuerier resolves pending transactions on demand
type StatusQuerier interface {
	Query(ctx context.Context, id uuid.UUID) (*StatusResult, error)
}

// DisbursementInitiator starts outbound business-to-customer payments
type DisbursementInitiator interface {
	Disburse(ctx context.Context, req DisbursementRequest) (*models.Transaction, bool, error)
	GetDisbursement(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
}

// CallbackProcessor consumes gateway callbacks; every call is acknowledged
type CallbackProcessor interface {
	HandlePushCallback(ctx context.Context, raw []byte) Acknowledgement
	HandleDisbursementResult(ctx context.Context, raw []byte) Acknowledgement
	HandleDisbursementTimeout(ctx context.Context, raw []byte) Acknowledgement
}

// Ensure concrete types implement interfaces
var (
	_ PaymentInitiator      = (*PaymentService)(nil)
	_ StatusQuerier         = (*StatusService)(nil)
	_ DisbursementInitiator = (*DisbursementService)(nil)
	_ CallbackProcessor     = (*CallbackService)(nil)
)
