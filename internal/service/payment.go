package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

// PaymentRequest asks a customer to approve a payment on their handset
type PaymentRequest struct {
	PhoneNumber string
	Reference   string
	Description string
	AmountMinor int64
}

// PaymentService creates customer push payments
type PaymentService struct {
	ledger  repository.TransactionRepository
	gw      *authorizedSender
	settler *Settler
	audit   auditTrail
	cfg     *config.GatewayConfig
	now     func() time.Time
	logger  *slog.Logger
	codec   AmountCodec
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	ledger repository.TransactionRepository,
	sender gateway.Sender,
	tokens gateway.TokenSource,
	settler *Settler,
	audit repository.AuditRepository,
	cfg *config.GatewayConfig,
	logger *slog.Logger,
) *PaymentService {
	logger = logger.With("component", "payment_initiator")
	return &PaymentService{
		ledger:  ledger,
		gw:      &authorizedSender{sender: sender, tokens: tokens, logger: logger},
		settler: settler,
		audit:   auditTrail{repo: audit, logger: logger},
		cfg:     cfg,
		now:     time.Now,
		logger:  logger,
		codec:   AmountCodec{Exponent: cfg.CurrencyExponent},
	}
}

// Initiate records a PENDING transaction and sends the push request.
//
// When the push was accepted the PENDING transaction carrying its correlation ids
// is returned. A synchronous rejection returns the FAILED transaction; a 2xx rejection
// is an outcome, not an error, while a refused request also returns the gateway error.
// When the outcome is unknown (transport failure, 5xx, malformed acknowledgement) the
// transaction stays PENDING and is returned together with the error.
func (s *PaymentService) Initiate(ctx context.Context, req PaymentRequest) (*models.Transaction, error) {
	phone, amount, description, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tx := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                models.TransactionKindCustomerPush,
		State:               models.TransactionStatePending,
		CounterpartyAddress: phone,
		AmountMinor:         req.AmountMinor,
		Reference:           req.Reference,
		Description:         description,
		CreatedAt:           now,
	}

	if err := s.ledger.Create(ctx, tx); err != nil {
		return nil, internalError("failed to record payment", err)
	}
	s.audit.record(ctx, &models.AuditEntry{
		TransactionID: &tx.ID,
		Event:         models.AuditEventTransactionCreated,
		Source:        SourceAPI,
		ToState:       models.TransactionStatePending,
	})
	s.logger.InfoContext(ctx, "payment created",
		"transaction_id", tx.ID,
		"reference", tx.Reference,
		"amount_minor", tx.AmountMinor,
	)

	timestamp := gateway.Timestamp(now)
	push := &gateway.STKPushRequest{
		BusinessShortCode: s.cfg.ShortCode,
		Password:          gateway.Password(s.cfg.ShortCode, s.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   s.cfg.TransactionType,
		Amount:            amount,
		PartyA:            phone,
		PartyB:            s.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       s.cfg.CallbackURL,
		AccountReference:  req.Reference,
		TransactionDesc:   description,
	}

	var resp gateway.STKPushResponse
	delivered, sendErr := s.gw.send(ctx, gateway.EndpointSTKPush, push, &resp)
	canceled := abandoned(ctx, sendErr)

	// The push may have gone out; from here the ledger must be written even if the caller gave up.
	ctx = context.WithoutCancel(ctx)

	if sendErr != nil {
		return s.handleSendError(ctx, tx, delivered, canceled, sendErr)
	}

	if !resp.Accepted() {
		code := parseResponseCode(resp.ResponseCode)
		s.logger.InfoContext(ctx, "payment rejected by gateway",
			"transaction_id", tx.ID,
			"response_code", resp.ResponseCode,
			"response_description", resp.ResponseDescription,
		)
		return s.fail(ctx, tx, failedResult(code, resp.ResponseDescription), nil)
	}

	if err := s.ledger.AttachCorrelation(ctx, tx.ID, resp.MerchantRequestID, resp.CheckoutRequestID); err != nil {
		// The entry stays PENDING without a correlation id; the hard timeout resolves it.
		s.logger.ErrorContext(ctx, "failed to record correlation ids",
			"transaction_id", tx.ID,
			"checkout_request_id", resp.CheckoutRequestID,
			"error", err,
		)
		return tx, nil
	}

	tx.MerchantRequestID = resp.MerchantRequestID
	tx.CorrelationID = resp.CheckoutRequestID
	s.audit.record(ctx, &models.AuditEntry{
		TransactionID: &tx.ID,
		Event:         models.AuditEventTransactionAccepted,
		Source:        SourceInitiator,
		FromState:     models.TransactionStatePending,
		ToState:       models.TransactionStatePending,
	})
	s.logger.InfoContext(ctx, "payment accepted by gateway",
		"transaction_id", tx.ID,
		"checkout_request_id", tx.CorrelationID,
	)

	return tx, nil
}

// GetPayment retrieves a push payment by ID
func (s *PaymentService) GetPayment(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return findTransaction(ctx, s.ledger, id, models.TransactionKindCustomerPush)
}

func (s *PaymentService) handleSendError(
	ctx context.Context,
	tx *models.Transaction,
	delivered bool,
	canceled bool,
	sendErr error,
) (*models.Transaction, error) {
	if canceled {
		s.logger.WarnContext(ctx, "caller gave up before the push completed, left pending",
			"transaction_id", tx.ID,
			"delivered", delivered,
			"error", sendErr,
		)
		return tx, sendErr
	}

	if !delivered {
		s.logger.WarnContext(ctx, "payment not sent", "transaction_id", tx.ID, "error", sendErr)
		return s.fail(ctx, tx, failedResult(nil, "not sent: "+sendErr.Error()), sendErr)
	}

	var gwErr *gateway.GatewayError
	if errors.As(sendErr, &gwErr) && gwErr.IsClientError() {
		s.logger.WarnContext(ctx, "payment refused by gateway",
			"transaction_id", tx.ID,
			"http_status", gwErr.HTTPStatus,
			"error_code", gwErr.ErrorCode,
		)
		return s.fail(ctx, tx, failedResult(nil, refusal(gwErr)), sendErr)
	}

	s.logger.WarnContext(ctx, "payment outcome unknown, left pending",
		"transaction_id", tx.ID,
		"error", sendErr,
	)
	return tx, sendErr
}

func (s *PaymentService) fail(
	ctx context.Context,
	tx *models.Transaction,
	result models.TerminalResult,
	cause error,
) (*models.Transaction, error) {
	settled, _, err := s.settler.Settle(ctx, tx, result, SourceInitiator, nil)
	if err != nil && !isConflict(err) {
		return tx, err
	}
	return settled, cause
}

func (s *PaymentService) validate(req PaymentRequest) (string, json.Number, string, error) {
	phone, err := NormalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return "", "", "", err
	}
	amount, err := s.codec.ToWire(req.AmountMinor)
	if err != nil {
		return "", "", "", err
	}
	if err := ValidateAccountReference(req.Reference); err != nil {
		return "", "", "", err
	}
	description, err := NormalizeDescription(req.Description)
	if err != nil {
		return "", "", "", err
	}
	return phone, amount, description, nil
}

func parseResponseCode(code string) *int {
	n, err := strconv.Atoi(code)
	if err != nil {
		return nil
	}
	return &n
}

func refusal(gwErr *gateway.GatewayError) string {
	if gwErr.ErrorMessage != "" {
		return fmt.Sprintf("%s %s", gwErr.ErrorCode, gwErr.ErrorMessage)
	}
	return fmt.Sprintf("gateway returned HTTP %d", gwErr.HTTPStatus)
}
