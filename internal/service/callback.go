package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/gateway"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

const (
	orphanBatchSize    = 100
	queueTimeoutReason = "queue timeout"
)

// Acknowledgement is the body returned to the gateway for every callback
type Acknowledgement struct {
	ResultDesc string `json:"ResultDesc"`
	ResultCode int    `json:"ResultCode"`
}

func accepted() Acknowledgement {
	return Acknowledgement{ResultCode: 0, ResultDesc: "Accepted"}
}

// callbackResult is a callback reduced to what the ledger needs
type callbackResult struct {
	amountMinor   *int64
	kind          models.CallbackKind
	correlationID string
	originatorID  string
	result        models.TerminalResult
}

// CallbackService applies asynchronous gateway results to the ledger
type CallbackService struct {
	ledger  repository.TransactionRepository
	orphans repository.OrphanRepository
	settler *Settler
	audit   auditTrail
	now     func() time.Time
	logger  *slog.Logger
	window  time.Duration
	codec   AmountCodec
}

// NewCallbackService creates a new CallbackService. Unmatched callbacks are kept
// for orphanWindow before they are dropped.
func NewCallbackService(
	ledger repository.TransactionRepository,
	orphans repository.OrphanRepository,
	audit repository.AuditRepository,
	settler *Settler,
	codec AmountCodec,
	orphanWindow time.Duration,
	logger *slog.Logger,
) *CallbackService {
	logger = logger.With("component", "callback_processor")
	return &CallbackService{
		ledger:  ledger,
		orphans: orphans,
		settler: settler,
		audit:   auditTrail{repo: audit, logger: logger},
		now:     time.Now,
		logger:  logger,
		window:  orphanWindow,
		codec:   codec,
	}
}

// HandlePushCallback processes the result of a customer push
func (s *CallbackService) HandlePushCallback(ctx context.Context, raw []byte) Acknowledgement {
	_ = s.receive(ctx, models.CallbackKindPush, raw) //nolint:errcheck // logged and audited in receive
	return accepted()
}

// HandleDisbursementResult processes the result of a disbursement
func (s *CallbackService) HandleDisbursementResult(ctx context.Context, raw []byte) Acknowledgement {
	_ = s.receive(ctx, models.CallbackKindDisbursementResult, raw) //nolint:errcheck // logged and audited in receive
	return accepted()
}

// HandleDisbursementTimeout processes a disbursement that timed out in the gateway queue
func (s *CallbackService) HandleDisbursementTimeout(ctx context.Context, raw []byte) Acknowledgement {
	_ = s.receive(ctx, models.CallbackKindDisbursementTimeout, raw) //nolint:errcheck // logged and audited in receive
	return accepted()
}

func (s *CallbackService) receive(ctx context.Context, kind models.CallbackKind, raw []byte) error {
	// The gateway may hang up once it has delivered; processing continues regardless.
	ctx = context.WithoutCancel(ctx)

	s.audit.record(ctx, &models.AuditEntry{
		Event:   models.AuditEventCallbackReceived,
		Source:  string(kind),
		Payload: auditPayload(raw),
	})

	cb, err := s.parse(kind, raw)
	if err != nil {
		malformed := &MalformedCallbackError{Kind: kind, Err: err}
		s.logger.WarnContext(ctx, "malformed callback acknowledged and discarded",
			"kind", kind,
			"error", err,
		)
		s.audit.record(ctx, &models.AuditEntry{
			Event:   models.AuditEventCallbackMalformed,
			Source:  string(kind),
			Payload: auditPayload(raw),
		})
		callbacksCounter.WithLabelValues(string(kind), "malformed").Inc()
		return malformed
	}

	tx, err := s.locate(ctx, cb)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.ErrorContext(ctx, "callback lookup failed, parking as orphan",
				"kind", kind,
				"correlation_id", cb.correlationID,
				"error", err,
			)
		}
		return s.park(ctx, cb, raw)
	}

	outcome, err := s.apply(ctx, tx, cb, SourceCallback, raw)
	if outcome != "" {
		callbacksCounter.WithLabelValues(string(kind), string(outcome)).Inc()
	}
	return err
}

func (s *CallbackService) apply(
	ctx context.Context,
	tx *models.Transaction,
	cb *callbackResult,
	source string,
	raw []byte,
) (Outcome, error) {
	if cb.amountMinor != nil && *cb.amountMinor != tx.AmountMinor {
		s.logger.WarnContext(ctx, "callback amount differs from ledger amount",
			"transaction_id", tx.ID,
			"ledger_amount_minor", tx.AmountMinor,
			"callback_amount_minor", *cb.amountMinor,
		)
	}
	_, outcome, err := s.settler.Settle(ctx, tx, cb.result, source, raw)
	return outcome, err
}

// locate finds the ledger entry a callback belongs to. Disbursement results fall back
// to the OriginatorConversationID, which is the transaction id.
func (s *CallbackService) locate(ctx context.Context, cb *callbackResult) (*models.Transaction, error) {
	want := cb.kind.TransactionKind()

	if cb.correlationID != "" {
		tx, err := s.ledger.FindByCorrelationID(ctx, cb.correlationID)
		switch {
		case err == nil && tx.Kind == want:
			return tx, nil
		case err != nil && !errors.Is(err, models.ErrNotFound):
			return nil, err
		}
	}

	if want != models.TransactionKindDisbursement || cb.originatorID == "" {
		return nil, models.ErrNotFound
	}
	id, err := uuid.Parse(cb.originatorID)
	if err != nil {
		return nil, models.ErrNotFound
	}
	tx, err := s.ledger.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tx.Kind != want {
		return nil, models.ErrNotFound
	}
	return tx, nil
}

func (s *CallbackService) park(ctx context.Context, cb *callbackResult, raw []byte) error {
	now := s.now().UTC()
	key := cb.correlationID
	if key == "" {
		key = cb.originatorID
	}
	orphan := &models.OrphanCallback{
		ID:            uuid.New(),
		Kind:          cb.kind,
		CorrelationID: key,
		Payload:       raw,
		ReceivedAt:    now,
		ExpiresAt:     now.Add(s.window),
	}
	if err := s.orphans.Save(ctx, orphan); err != nil {
		s.logger.ErrorContext(ctx, "failed to park orphan callback",
			"kind", cb.kind,
			"correlation_id", key,
			"error", err,
		)
		return internalError("failed to park orphan callback", err)
	}

	s.audit.record(ctx, &models.AuditEntry{
		Event:   models.AuditEventCallbackOrphaned,
		Source:  string(cb.kind),
		ToState: cb.result.State,
		Payload: auditPayload(raw),
	})
	orphansCounter.WithLabelValues("parked").Inc()
	callbacksCounter.WithLabelValues(string(cb.kind), "orphaned").Inc()
	s.logger.InfoContext(ctx, "callback parked as orphan",
		"orphan_id", orphan.ID,
		"kind", cb.kind,
		"correlation_id", key,
		"expires_at", orphan.ExpiresAt,
	)
	return nil
}

// ReconcileOrphans retries the match of every open orphan callback. Orphans past
// their window are dropped.
func (s *CallbackService) ReconcileOrphans(ctx context.Context) (matched, dropped int, err error) {
	open, err := s.orphans.ListOpen(ctx, orphanBatchSize)
	if err != nil {
		return 0, 0, internalError("failed to list orphan callbacks", err)
	}

	for _, orphan := range open {
		if ctx.Err() != nil {
			return matched, dropped, ctx.Err()
		}

		now := s.now().UTC()
		cb, perr := s.parse(orphan.Kind, orphan.Payload)
		if perr != nil {
			s.drop(ctx, orphan, now, perr.Error())
			dropped++
			continue
		}

		tx, lerr := s.locate(ctx, cb)
		switch {
		case lerr == nil:
			outcome, serr := s.apply(ctx, tx, cb, SourceReconciler, orphan.Payload)
			if serr != nil && !isConflict(serr) {
				s.logger.ErrorContext(ctx, "failed to apply orphan callback", "orphan_id", orphan.ID, "error", serr)
				continue
			}
			if err := s.orphans.Resolve(ctx, orphan.ID, models.OrphanResolutionMatched, now); err != nil {
				s.logger.ErrorContext(ctx, "failed to resolve orphan callback", "orphan_id", orphan.ID, "error", err)
				continue
			}
			orphansCounter.WithLabelValues("matched").Inc()
			callbacksCounter.WithLabelValues(string(orphan.Kind), string(outcome)).Inc()
			s.logger.InfoContext(ctx, "orphan callback matched",
				"orphan_id", orphan.ID,
				"transaction_id", tx.ID,
				"outcome", outcome,
			)
			matched++

		case !errors.Is(lerr, models.ErrNotFound):
			s.logger.WarnContext(ctx, "orphan lookup failed", "orphan_id", orphan.ID, "error", lerr)

		case !now.Before(orphan.ExpiresAt):
			s.drop(ctx, orphan, now, "no matching transaction within the orphan window")
			dropped++

		default:
			if err := s.orphans.RecordAttempt(ctx, orphan.ID); err != nil {
				s.logger.WarnContext(ctx, "failed to record orphan attempt", "orphan_id", orphan.ID, "error", err)
			}
		}
	}

	return matched, dropped, nil
}

func (s *CallbackService) drop(ctx context.Context, orphan *models.OrphanCallback, at time.Time, reason string) {
	if err := s.orphans.Resolve(ctx, orphan.ID, models.OrphanResolutionDropped, at); err != nil {
		s.logger.ErrorContext(ctx, "failed to drop orphan callback", "orphan_id", orphan.ID, "error", err)
		return
	}
	s.audit.record(ctx, &models.AuditEntry{
		Event:   models.AuditEventOrphanDropped,
		Source:  SourceReconciler,
		Payload: auditPayload(orphan.Payload),
	})
	orphansCounter.WithLabelValues("dropped").Inc()
	s.logger.WarnContext(ctx, "orphan callback dropped",
		"orphan_id", orphan.ID,
		"kind", orphan.Kind,
		"correlation_id", orphan.CorrelationID,
		"attempts", orphan.Attempts,
		"reason", reason,
	)
}

// RunOrphanReconciler reconciles orphans every interval until ctx is done
func (s *CallbackService) RunOrphanReconciler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "orphan reconciler started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("orphan reconciler stopped")
			return nil
		case <-ticker.C:
			matched, dropped, err := s.ReconcileOrphans(ctx)
			if err != nil && ctx.Err() == nil {
				s.logger.ErrorContext(ctx, "orphan reconciliation failed", "error", err)
				continue
			}
			if matched > 0 || dropped > 0 {
				s.logger.InfoContext(ctx, "orphan reconciliation finished", "matched", matched, "dropped", dropped)
			}
		}
	}
}

func (s *CallbackService) parse(kind models.CallbackKind, raw []byte) (*callbackResult, error) {
	switch kind {
	case models.CallbackKindPush:
		return s.parsePush(raw)
	case models.CallbackKindDisbursementResult:
		return s.parseDisbursementResult(raw)
	case models.CallbackKindDisbursementTimeout:
		return parseDisbursementTimeout(raw)
	default:
		return nil, fmt.Errorf("unknown callback kind %q", kind)
	}
}

func (s *CallbackService) parsePush(raw []byte) (*callbackResult, error) {
	stk, err := gateway.DecodeSTKCallback(raw)
	if err != nil {
		return nil, err
	}

	code := int(*stk.ResultCode)
	cb := &callbackResult{
		kind:          models.CallbackKindPush,
		correlationID: stk.CheckoutRequestID,
	}
	if code != 0 {
		cb.result = failedResult(&code, stk.ResultDesc)
		return cb, nil
	}

	lookup := stk.CallbackMetadata.Lookup
	amount, err := requireItem(lookup, "Amount")
	if err != nil {
		return nil, err
	}
	receipt, err := requireItem(lookup, "MpesaReceiptNumber")
	if err != nil {
		return nil, err
	}
	date, err := requireItem(lookup, "TransactionDate")
	if err != nil {
		return nil, err
	}
	if _, err := gateway.ParseTimestamp(date); err != nil {
		return nil, fmt.Errorf("TransactionDate %q: %w", date, err)
	}
	if _, err := requireItem(lookup, "PhoneNumber"); err != nil {
		return nil, err
	}

	amountMinor, err := s.codec.FromWire(amount)
	if err != nil {
		return nil, fmt.Errorf("Amount: %w", err)
	}

	cb.amountMinor = &amountMinor
	cb.result = models.TerminalResult{
		State:             models.TransactionStateSucceeded,
		ResultCode:        &code,
		ResultDescription: stk.ResultDesc,
		ReceiptNumber:     receipt,
	}
	return cb, nil
}

func (s *CallbackService) parseDisbursementResult(raw []byte) (*callbackResult, error) {
	res, err := gateway.DecodeB2CResult(raw, true)
	if err != nil {
		return nil, err
	}

	code := int(*res.ResultCode)
	cb := &callbackResult{
		kind:          models.CallbackKindDisbursementResult,
		correlationID: res.ConversationID,
		originatorID:  res.OriginatorConversationID,
	}
	if code != 0 {
		cb.result = failedResult(&code, res.ResultDesc)
		return cb, nil
	}

	lookup := res.ResultParameters.Lookup
	amount, err := requireItem(lookup, "TransactionAmount")
	if err != nil {
		return nil, err
	}
	receipt, err := requireItem(lookup, "TransactionReceipt")
	if err != nil {
		return nil, err
	}
	amountMinor, err := s.codec.FromWire(amount)
	if err != nil {
		return nil, fmt.Errorf("TransactionAmount: %w", err)
	}

	cb.amountMinor = &amountMinor
	cb.result = models.TerminalResult{
		State:             models.TransactionStateSucceeded,
		ResultCode:        &code,
		ResultDescription: res.ResultDesc,
		ReceiptNumber:     receipt,
	}
	return cb, nil
}

func parseDisbursementTimeout(raw []byte) (*callbackResult, error) {
	res, err := gateway.DecodeB2CResult(raw, false)
	if err != nil {
		return nil, err
	}

	var code *int
	if res.ResultCode != nil {
		c := int(*res.ResultCode)
		code = &c
	}
	description := res.ResultDesc
	if description == "" {
		description = queueTimeoutReason
	}

	return &callbackResult{
		kind:          models.CallbackKindDisbursementTimeout,
		correlationID: res.ConversationID,
		originatorID:  res.OriginatorConversationID,
		result:        failedResult(code, description),
	}, nil
}

func requireItem(lookup func(string) (json.RawMessage, bool), name string) (string, error) {
	raw, ok := lookup(name)
	if !ok {
		return "", fmt.Errorf("%s is missing", name)
	}
	value, err := gateway.ScalarString(raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", name, err)
	}
	if value == "" {
		return "", fmt.Errorf("%s is empty", name)
	}
	return value, nil
}
