package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/config"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

const expiredDescription = "no terminal result before the hard timeout"

// StatusResult is the answer to a status query. Pending is set while the gateway
// has no terminal answer yet; Transaction is the ledger entry either way.
type StatusResult struct {
	Transaction *models.Transaction
	Pending     bool
}

// StatusService resolves PENDING transactions by asking the gateway
type StatusService struct {
	ledger      repository.TransactionRepository
	gw          *authorizedSender
	settler     *Settler
	cfg         *config.GatewayConfig
	now         func() time.Time
	logger      *slog.Logger
	hardTimeout time.Duration
}

// NewStatusService creates a new StatusService. Entries still pending hardTimeout
// after creation are expired.
func NewStatusService(
	ledger repository.TransactionRepository,
	sender gateway.Sender,
	tokens gateway.TokenSource,
	settler *Settler,
	cfg *config.GatewayConfig,
	hardTimeout time.Duration,
	logger *slog.Logger,
) *StatusService {
	logger = logger.With("component", "status_query")
	return &StatusService{
		ledger:      ledger,
		gw:          &authorizedSender{sender: sender, tokens: tokens, logger: logger},
		settler:     settler,
		cfg:         cfg,
		now:         time.Now,
		logger:      logger,
		hardTimeout: hardTimeout,
	}
}

// Query returns the terminal result of a transaction, querying the gateway when
// the ledger entry is still PENDING. Terminal entries are answered from the ledger.
func (s *StatusService) Query(ctx context.Context, id uuid.UUID) (*StatusResult, error) {
	return s.query(ctx, id, SourceStatusQuery)
}

func (s *StatusService) query(ctx context.Context, id uuid.UUID, source string) (*StatusResult, error) {
	tx, err := findTransaction(ctx, s.ledger, id, "")
	if err != nil {
		return nil, err
	}
	return s.resolve(ctx, tx, source)
}

func (s *StatusService) resolve(ctx context.Context, tx *models.Transaction, source string) (*StatusResult, error) {
	if tx.State.IsTerminal() {
		return &StatusResult{Transaction: tx}, nil
	}

	// Disbursements have no synchronous query and a push without a CheckoutRequestID
	// cannot be looked up; both wait for a callback or the hard timeout.
	if tx.Kind == models.TransactionKindDisbursement || tx.CorrelationID == "" {
		return s.pendingOrExpire(ctx, tx, source)
	}

	timestamp := gateway.Timestamp(s.now())
	req := &gateway.STKQueryRequest{
		BusinessShortCode: s.cfg.ShortCode,
		Password:          gateway.Password(s.cfg.ShortCode, s.cfg.PassKey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: tx.CorrelationID,
	}

	var resp gateway.STKQueryResponse
	if _, err := s.gw.send(ctx, gateway.EndpointSTKQuery, req, &resp); err != nil {
		var gwErr *gateway.GatewayError
		if errors.As(err, &gwErr) && gwErr.IsStillProcessing() {
			return s.pendingOrExpire(ctx, tx, source)
		}
		s.logger.WarnContext(ctx, "status query failed",
			"transaction_id", tx.ID,
			"retryable", gateway.IsRetryable(err),
			"error", err,
		)
		return nil, err
	}

	if resp.StillProcessing() {
		return s.pendingOrExpire(ctx, tx, source)
	}

	code := int(*resp.ResultCode)
	result := models.TerminalResult{
		State:             models.TransactionStateFailed,
		ResultCode:        &code,
		ResultDescription: resp.ResultDesc,
	}
	if code == 0 {
		result.State = models.TransactionStateSucceeded
	}

	payload, err := json.Marshal(&resp)
	if err != nil {
		payload = nil
	}

	settled, _, err := s.settler.Settle(context.WithoutCancel(ctx), tx, result, source, payload)
	if err != nil && !isConflict(err) {
		return nil, err
	}
	return &StatusResult{Transaction: settled}, nil
}

// Expire moves a PENDING transaction to EXPIRED. If a terminal result was recorded
// first, that result is returned unchanged.
func (s *StatusService) Expire(ctx context.Context, tx *models.Transaction, source string) (*StatusResult, error) {
	result := models.TerminalResult{
		State:             models.TransactionStateExpired,
		ResultDescription: expiredDescription,
	}
	settled, _, err := s.settler.Settle(context.WithoutCancel(ctx), tx, result, source, nil)
	if err != nil && !isConflict(err) {
		return nil, err
	}
	return &StatusResult{Transaction: settled, Pending: !settled.State.IsTerminal()}, nil
}

// HardExpired reports whether tx has outlived the hard timeout.
func (s *StatusService) HardExpired(tx *models.Transaction) bool {
	return s.now().Sub(tx.CreatedAt) >= s.hardTimeout
}

func (s *StatusService) pendingOrExpire(ctx context.Context, tx *models.Transaction, source string) (*StatusResult, error) {
	if !s.HardExpired(tx) {
		return &StatusResult{Transaction: tx, Pending: true}, nil
	}
	s.logger.InfoContext(ctx, "pending transaction past hard timeout",
		"transaction_id", tx.ID,
		"created_at", tx.CreatedAt,
	)
	return s.Expire(ctx, tx, source)
}
