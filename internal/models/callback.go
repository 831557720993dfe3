package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CallbackKind identifies which gateway callback endpoint delivered a payload
type CallbackKind string

const (
	CallbackKindPush                CallbackKind = "PUSH"
	CallbackKindDisbursementResult  CallbackKind = "DISBURSEMENT_RESULT"
	CallbackKindDisbursementTimeout CallbackKind = "DISBURSEMENT_TIMEOUT"
)

// TransactionKind returns the ledger kind a callback of this kind resolves.
func (k CallbackKind) TransactionKind() TransactionKind {
	if k == CallbackKindPush {
		return TransactionKindCustomerPush
	}
	return TransactionKindDisbursement
}

// Orphan resolutions
const (
	OrphanResolutionMatched = "MATCHED"
	OrphanResolutionDropped = "DROPPED"
)

// OrphanCallback is a callback that could not be matched to a ledger entry on receipt
type OrphanCallback struct {
	ReceivedAt    time.Time    `db:"received_at"`
	ExpiresAt     time.Time    `db:"expires_at"`
	ResolvedAt    *time.Time   `db:"resolved_at"`
	Kind          CallbackKind `db:"kind"`
	CorrelationID string       `db:"correlation_id"`
	Resolution    string       `db:"resolution"`
	Payload       []byte       `db:"payload"`
	Attempts      int          `db:"attempts"`
	ID            uuid.UUID    `db:"id"`
}

// Audit events
const (
	AuditEventTransactionCreated   = "transaction.created"
	AuditEventTransactionAccepted  = "transaction.accepted"
	AuditEventTransactionFinalized = "transaction.finalized"
	AuditEventCallbackReceived     = "callback.received"
	AuditEventCallbackMalformed    = "callback.malformed"
	AuditEventCallbackDuplicate    = "callback.duplicate"
	AuditEventCallbackLate         = "callback.late"
	AuditEventCallbackOrphaned     = "callback.orphaned"
	AuditEventOrphanDropped        = "callback.orphan_dropped"
	AuditEventResultConflict       = "result.conflict"
)

// AuditEntry is one append-only record in the reconciliation audit trail
type AuditEntry struct {
	CreatedAt     time.Time        `db:"created_at"`
	TransactionID *uuid.UUID       `db:"transaction_id"`
	Event         string           `db:"event"`
	Source        string           `db:"source"`
	FromState     TransactionState `db:"from_state"`
	ToState       TransactionState `db:"to_state"`
	Payload       json.RawMessage  `db:"payload"`
}
