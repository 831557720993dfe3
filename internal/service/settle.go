package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/messagebroker"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

// Sources recorded on audit entries and transition metrics
const (
	SourceAPI         = "api"
	SourceInitiator   = "initiator"
	SourceCallback    = "callback"
	SourceStatusQuery = "status_query"
	SourceSweeper     = "sweeper"
	SourceReconciler  = "orphan_reconciler"
)

// Outcome describes what a Settle call did to the ledger
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeConflict  Outcome = "conflict"
	OutcomeLate      Outcome = "late"
)

// TransactionEvent is published on every effective terminal transition
type TransactionEvent struct {
	FinalizedAt       time.Time `json:"finalized_at"`
	ResultCode        *int      `json:"result_code,omitempty"`
	Kind              string    `json:"kind"`
	State             string    `json:"state"`
	Reference         string    `json:"reference"`
	CorrelationID     string    `json:"correlation_id,omitempty"`
	ResultDescription string    `json:"result_description,omitempty"`
	ReceiptNumber     string    `json:"receipt_number,omitempty"`
	Source            string    `json:"source"`
	AmountMinor       int64     `json:"amount_minor"`
	TransactionID     uuid.UUID `json:"transaction_id"`
}

// Settler is the single writer of terminal results. Callbacks, status queries
// and the sweeper all finalize through it so they share one conflict policy.
type Settler struct {
	ledger        repository.TransactionRepository
	audit         auditTrail
	events        messagebroker.Publisher
	logger        *slog.Logger
	subjectPrefix string
}

// NewSettler creates a Settler
func NewSettler(
	ledger repository.TransactionRepository,
	audit repository.AuditRepository,
	events messagebroker.Publisher,
	subjectPrefix string,
	logger *slog.Logger,
) *Settler {
	if events == nil {
		events = messagebroker.NopPublisher{}
	}
	logger = logger.With("component", "settler")
	return &Settler{
		ledger:        ledger,
		audit:         auditTrail{repo: audit, logger: logger},
		events:        events,
		logger:        logger,
		subjectPrefix: subjectPrefix,
	}
}

// Settle records result as the terminal outcome of tx if tx is still PENDING and
// returns the ledger's view afterwards. When a different result was recorded first,
// the recorded transaction is returned together with a *ConflictError.
func (s *Settler) Settle(
	ctx context.Context,
	tx *models.Transaction,
	result models.TerminalResult,
	source string,
	payload []byte,
) (*models.Transaction, Outcome, error) {
	if result.FinalizedAt.IsZero() {
		result.FinalizedAt = time.Now().UTC()
	}

	if tx.State.IsTerminal() {
		return s.resolveRecorded(ctx, tx, result, source, payload)
	}

	applied, err := s.ledger.Finalize(ctx, tx.ID, result)
	if err != nil {
		return nil, "", internalError("failed to finalize transaction", err)
	}

	if !applied {
		current, err := s.ledger.FindByID(ctx, tx.ID)
		if err != nil {
			return nil, "", internalError("failed to reload transaction", err)
		}
		return s.resolveRecorded(ctx, current, result, source, payload)
	}

	updated := tx.Clone()
	updated.State = result.State
	updated.ResultCode = result.ResultCode
	updated.ResultDescription = result.ResultDescription
	updated.ReceiptNumber = result.ReceiptNumber
	finalizedAt := result.FinalizedAt
	updated.FinalizedAt = &finalizedAt

	s.audit.record(ctx, &models.AuditEntry{
		TransactionID: &updated.ID,
		Event:         models.AuditEventTransactionFinalized,
		Source:        source,
		FromState:     models.TransactionStatePending,
		ToState:       updated.State,
		Payload:       auditPayload(payload),
	})
	transitionsCounter.WithLabelValues(string(updated.Kind), string(updated.State), source).Inc()

	s.logger.InfoContext(ctx, "transaction finalized",
		"transaction_id", updated.ID,
		"kind", updated.Kind,
		"state", updated.State,
		"result_code", result.ResultCode,
		"source", source,
	)

	s.publish(ctx, updated, source)
	return updated, OutcomeApplied, nil
}

func (s *Settler) resolveRecorded(
	ctx context.Context,
	current *models.Transaction,
	incoming models.TerminalResult,
	source string,
	payload []byte,
) (*models.Transaction, Outcome, error) {
	recorded := current.Result()

	if current.State == models.TransactionStateExpired && incoming.State != models.TransactionStateExpired {
		s.logger.WarnContext(ctx, "late result for expired transaction discarded",
			"transaction_id", current.ID,
			"incoming_state", incoming.State,
			"source", source,
		)
		s.audit.record(ctx, &models.AuditEntry{
			TransactionID: &current.ID,
			Event:         models.AuditEventCallbackLate,
			Source:        source,
			FromState:     current.State,
			ToState:       incoming.State,
			Payload:       auditPayload(payload),
		})
		return current, OutcomeLate, nil
	}

	if recorded.Equivalent(incoming) {
		s.logger.InfoContext(ctx, "duplicate terminal result ignored",
			"transaction_id", current.ID,
			"state", current.State,
			"source", source,
		)
		if recorded.ReceiptNumber == "" && incoming.ReceiptNumber != "" {
			// First write wins; the receipt survives in this log line and the audit payload.
			s.logger.WarnContext(ctx, "receipt number arrived after finalization, not recorded",
				"transaction_id", current.ID,
				"receipt_number", incoming.ReceiptNumber,
				"source", source,
			)
		}
		s.audit.record(ctx, &models.AuditEntry{
			TransactionID: &current.ID,
			Event:         models.AuditEventCallbackDuplicate,
			Source:        source,
			FromState:     current.State,
			ToState:       incoming.State,
			Payload:       auditPayload(payload),
		})
		return current, OutcomeDuplicate, nil
	}

	conflict := &ConflictError{
		TransactionID: current.ID,
		Recorded:      *recorded,
		Rejected:      incoming,
		Source:        source,
	}
	s.logger.ErrorContext(ctx, "conflicting terminal result, recorded result kept",
		"transaction_id", current.ID,
		"recorded_state", recorded.State,
		"recorded_code", recorded.ResultCode,
		"rejected_state", incoming.State,
		"rejected_code", incoming.ResultCode,
		"source", source,
	)
	s.audit.record(ctx, &models.AuditEntry{
		TransactionID: &current.ID,
		Event:         models.AuditEventResultConflict,
		Source:        source,
		FromState:     current.State,
		ToState:       incoming.State,
		Payload:       auditPayload(payload),
	})
	conflictsCounter.WithLabelValues(string(current.Kind), source).Inc()
	return current, OutcomeConflict, conflict
}

func (s *Settler) publish(ctx context.Context, tx *models.Transaction, source string) {
	event := TransactionEvent{
		TransactionID:     tx.ID,
		Kind:              string(tx.Kind),
		State:             string(tx.State),
		Reference:         tx.Reference,
		CorrelationID:     tx.CorrelationID,
		AmountMinor:       tx.AmountMinor,
		ResultCode:        tx.ResultCode,
		ResultDescription: tx.ResultDescription,
		ReceiptNumber:     tx.ReceiptNumber,
		Source:            source,
	}
	if tx.FinalizedAt != nil {
		event.FinalizedAt = *tx.FinalizedAt
	}

	data, err := json.Marshal(event)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to encode transaction event", "transaction_id", tx.ID, "error", err)
		return
	}

	subject := s.subjectPrefix + ".transaction." + strings.ToLower(string(tx.State))
	if err := s.events.Publish(ctx, subject, data); err != nil {
		s.logger.WarnContext(ctx, "failed to publish transaction event",
			"transaction_id", tx.ID,
			"subject", subject,
			"error", err,
		)
	}
}

// auditTrail appends to the audit repository. A failed append is logged, not propagated,
// so that the ledger transition it describes is not rolled back by it.
type auditTrail struct {
	repo   repository.AuditRepository
	logger *slog.Logger
}

func (a auditTrail) record(ctx context.Context, entry *models.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := a.repo.Append(ctx, entry); err != nil {
		a.logger.ErrorContext(ctx, "failed to append audit entry",
			"event", entry.Event,
			"transaction_id", entry.TransactionID,
			"error", err,
		)
	}
}

// auditPayload keeps raw bytes that are valid JSON and quotes anything else,
// so malformed callbacks are preserved verbatim in a JSON column.
func auditPayload(raw []byte) json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	if json.Valid(raw) {
		return json.RawMessage(raw)
	}
	// Non-JSON bodies are kept as a JSON string without HTML escaping.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(string(raw)); err != nil {
		return nil
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
}

func isConflict(err error) bool {
	var conflict *ConflictError
	return errors.As(err, &conflict)
}
