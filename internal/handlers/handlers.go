// Package handlers implements HTTP handlers for the payment gateway API.
package handlers

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/service"
)

// Handler serves the payment, disbursement and callback endpoints
type Handler struct {
	payments      service.PaymentInitiator
	status        service.StatusQuerier
	disbursements service.DisbursementInitiator
	callbacks     service.CallbackProcessor
	healthChecker service.HealthChecker
	validate      *validator.Validate
	logger        *slog.Logger
}

// NewHandler creates a new Handler with injected service dependencies.
func NewHandler(
	payments service.PaymentInitiator,
	status service.StatusQuerier,
	disbursements service.DisbursementInitiator,
	callbacks service.CallbackProcessor,
	healthChecker service.HealthChecker,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		payments:      payments,
		status:        status,
		disbursements: disbursements,
		callbacks:     callbacks,
		healthChecker: healthChecker,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
		logger:        logger.With("component", "http"),
	}
}
