package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

// DisbursementRequest pays out to a customer. Reference is the caller's idempotency key.
type DisbursementRequest struct {
	Reference   string
	PhoneNumber string
	CommandID   string
	Remarks     string
	Occasion    string
	AmountMinor int64
}

// DisbursementService creates outbound business-to-customer payments
type DisbursementService struct {
	ledger             repository.TransactionRepository
	gw                 *authorizedSender
	settler            *Settler
	audit              auditTrail
	cfg                *config.GatewayConfig
	now                func() time.Time
	logger             *slog.Logger
	securityCredential string
	codec              AmountCodec
}

// NewDisbursementService creates a new DisbursementService. securityCredential is the
// encrypted initiator password sent with every request.
func NewDisbursementService(
	ledger repository.TransactionRepository,
	sender gateway.Sender,
	tokens gateway.TokenSource,
	settler *Settler,
	audit repository.AuditRepository,
	cfg *config.GatewayConfig,
	securityCredential string,
	logger *slog.Logger,
) *DisbursementService {
	logger = logger.With("component", "disbursement_initiator")
	return &DisbursementService{
		ledger:             ledger,
		gw:                 &authorizedSender{sender: sender, tokens: tokens, logger: logger},
		settler:            settler,
		audit:              auditTrail{repo: audit, logger: logger},
		cfg:                cfg,
		now:                time.Now,
		logger:             logger,
		securityCredential: securityCredential,
		codec:              AmountCodec{Exponent: cfg.CurrencyExponent},
	}
}

// Disburse records a PENDING disbursement and sends it to the gateway.
// A reference seen before returns the recorded disbursement with replayed set and
// nothing is sent. Gateway errors leave the entry PENDING, to be settled by the
// result callback or expiry.
func (s *DisbursementService) Disburse(ctx context.Context, req DisbursementRequest) (*models.Transaction, bool, error) {
	phone, amount, err := s.validate(req)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.ledger.FindByReference(ctx, models.TransactionKindDisbursement, req.Reference)
	switch {
	case err == nil:
		return s.replay(ctx, existing, phone, req)
	case !errors.Is(err, models.ErrNotFound):
		return nil, false, internalError("failed to look up disbursement reference", err)
	}

	tx := &models.Transaction{
		ID:                  uuid.New(),
		Kind:                models.TransactionKindDisbursement,
		State:               models.TransactionStatePending,
		CounterpartyAddress: phone,
		AmountMinor:         req.AmountMinor,
		Reference:           req.Reference,
		Description:         req.Remarks,
		CommandID:           req.CommandID,
		CreatedAt:           s.now().UTC(),
	}

	if err := s.ledger.Create(ctx, tx); err != nil {
		if !errors.Is(err, models.ErrDuplicateTransaction) {
			return nil, false, internalError("failed to record disbursement", err)
		}
		// Lost the race to a concurrent request with the same reference.
		existing, ferr := s.ledger.FindByReference(ctx, models.TransactionKindDisbursement, req.Reference)
		if ferr != nil {
			return nil, false, internalError("failed to load concurrent disbursement", ferr)
		}
		return s.replay(ctx, existing, phone, req)
	}

	s.audit.record(ctx, &models.AuditEntry{
		TransactionID: &tx.ID,
		Event:         models.AuditEventTransactionCreated,
		Source:        SourceAPI,
		ToState:       models.TransactionStatePending,
	})
	s.logger.InfoContext(ctx, "disbursement created",
		"transaction_id", tx.ID,
		"reference", tx.Reference,
		"amount_minor", tx.AmountMinor,
		"command_id", tx.CommandID,
	)

	payout := &gateway.B2CRequest{
		OriginatorConversationID: tx.ID.String(),
		InitiatorName:            s.cfg.InitiatorName,
		SecurityCredential:       s.securityCredential,
		CommandID:                req.CommandID,
		Amount:                   amount,
		PartyA:                   s.cfg.B2CShortCode,
		PartyB:                   phone,
		Remarks:                  req.Remarks,
		QueueTimeOutURL:          s.cfg.QueueTimeoutURL,
		ResultURL:                s.cfg.ResultURL,
		Occasion:                 req.Occasion,
	}

	var resp gateway.B2CResponse
	delivered, sendErr := s.gw.send(ctx, gateway.EndpointB2C, payout, &resp)
	canceled := abandoned(ctx, sendErr)

	ctx = context.WithoutCancel(ctx)

	if sendErr != nil {
		if !delivered && !canceled {
			s.logger.WarnContext(ctx, "disbursement not sent", "transaction_id", tx.ID, "error", sendErr)
			settled, err := s.fail(ctx, tx, failedResult(nil, "not sent: "+sendErr.Error()))
			if err != nil {
				return tx, false, err
			}
			return settled, false, sendErr
		}
		s.logger.WarnContext(ctx, "disbursement outcome unknown, left pending",
			"transaction_id", tx.ID,
			"error", sendErr,
		)
		return tx, false, sendErr
	}

	if !resp.Accepted() {
		// Not a reliable failure signal for payouts: the result callback or expiry decides.
		s.logger.WarnContext(ctx, "disbursement not acknowledged as accepted, left pending",
			"transaction_id", tx.ID,
			"response_code", resp.ResponseCode,
			"response_description", resp.ResponseDescription,
		)
		return tx, false, nil
	}

	originatorID := resp.OriginatorConversationID
	if originatorID == "" {
		originatorID = tx.ID.String()
	}
	if err := s.ledger.AttachCorrelation(ctx, tx.ID, originatorID, resp.ConversationID); err != nil {
		// Result callbacks still match through the OriginatorConversationID.
		s.logger.ErrorContext(ctx, "failed to record conversation id",
			"transaction_id", tx.ID,
			"conversation_id", resp.ConversationID,
			"error", err,
		)
		return tx, false, nil
	}

	tx.MerchantRequestID = originatorID
	tx.CorrelationID = resp.ConversationID
	s.audit.record(ctx, &models.AuditEntry{
		TransactionID: &tx.ID,
		Event:         models.AuditEventTransactionAccepted,
		Source:        SourceInitiator,
		FromState:     models.TransactionStatePending,
		ToState:       models.TransactionStatePending,
	})
	s.logger.InfoContext(ctx, "disbursement accepted by gateway",
		"transaction_id", tx.ID,
		"conversation_id", tx.CorrelationID,
	)

	return tx, false, nil
}

// GetDisbursement retrieves a disbursement by ID
func (s *DisbursementService) GetDisbursement(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	return findTransaction(ctx, s.ledger, id, models.TransactionKindDisbursement)
}

func (s *DisbursementService) replay(
	ctx context.Context,
	existing *models.Transaction,
	phone string,
	req DisbursementRequest,
) (*models.Transaction, bool, error) {
	if existing.AmountMinor != req.AmountMinor ||
		existing.CounterpartyAddress != phone ||
		existing.CommandID != req.CommandID {
		return nil, false, &ServiceError{
			Code: ErrCodeReferenceConflict,
			Message: fmt.Sprintf("reference %q was already used for a different disbursement (transaction %s)",
				existing.Reference, existing.ID),
		}
	}
	s.logger.InfoContext(ctx, "disbursement reference replayed",
		"transaction_id", existing.ID,
		"reference", existing.Reference,
		"state", existing.State,
	)
	return existing, true, nil
}

func (s *DisbursementService) fail(
	ctx context.Context,
	tx *models.Transaction,
	result models.TerminalResult,
) (*models.Transaction, error) {
	settled, _, err := s.settler.Settle(ctx, tx, result, SourceInitiator, nil)
	if err != nil && !isConflict(err) {
		return nil, err
	}
	return settled, nil
}

func (s *DisbursementService) validate(req DisbursementRequest) (string, json.Number, error) {
	if err := ValidateDisbursementReference(req.Reference); err != nil {
		return "", "", err
	}
	phone, err := NormalizeMSISDN(req.PhoneNumber)
	if err != nil {
		return "", "", err
	}
	amount, err := s.codec.ToWire(req.AmountMinor)
	if err != nil {
		return "", "", err
	}
	if err := ValidateCommandID(req.CommandID); err != nil {
		return "", "", err
	}
	if err := ValidateRemarks("remarks", req.Remarks, true); err != nil {
		return "", "", err
	}
	if err := ValidateRemarks("occasion", req.Occasion, false); err != nil {
		return "", "", err
	}
	return phone, amount, nil
}
