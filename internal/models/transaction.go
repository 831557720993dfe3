package models

import (
	"time"

	"github.com/google/uuid"
)

// TransactionKind distinguishes customer-initiated pushes from outbound disbursements
type TransactionKind string

const (
	TransactionKindCustomerPush TransactionKind = "CUSTOMER_PUSH"
	TransactionKindDisbursement TransactionKind = "DISBURSEMENT"
)

// TransactionState represents the lifecycle state of a transaction
type TransactionState string

const (
	TransactionStatePending   TransactionState = "PENDING"
	TransactionStateSucceeded TransactionState = "SUCCEEDED"
	TransactionStateFailed    TransactionState = "FAILED"
	TransactionStateExpired   TransactionState = "EXPIRED"
)

// IsTerminal reports whether no further transitions are accepted from this state.
func (s TransactionState) IsTerminal() bool {
	switch s {
	case TransactionStateSucceeded, TransactionStateFailed, TransactionStateExpired:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the known states.
func (s TransactionState) Valid() bool {
	return s == TransactionStatePending || s.IsTerminal()
}

// Transaction is a ledger entry for a single push payment or disbursement
type Transaction struct {
	CreatedAt           time.Time        `db:"created_at"`
	FinalizedAt         *time.Time       `db:"finalized_at"`
	ResultCode          *int             `db:"result_code"`
	Kind                TransactionKind  `db:"kind"`
	State               TransactionState `db:"state"`
	CounterpartyAddress string           `db:"counterparty_address"`
	Reference           string           `db:"reference"`
	Description         string           `db:"description"`
	CommandID           string           `db:"command_id"`
	MerchantRequestID   string           `db:"merchant_request_id"`
	CorrelationID       string           `db:"correlation_id"`
	ResultDescription   string           `db:"result_description"`
	ReceiptNumber       string           `db:"receipt_number"`
	AmountMinor         int64            `db:"amount_minor"`
	ID                  uuid.UUID        `db:"id"`
}

// Clone returns a deep copy so callers never share pointer fields with the ledger.
func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	c := *t
	if t.FinalizedAt != nil {
		finalizedAt := *t.FinalizedAt
		c.FinalizedAt = &finalizedAt
	}
	if t.ResultCode != nil {
		code := *t.ResultCode
		c.ResultCode = &code
	}
	return &c
}

// Result returns the terminal result recorded on the transaction, or nil while pending.
func (t *Transaction) Result() *TerminalResult {
	if !t.State.IsTerminal() {
		return nil
	}
	r := &TerminalResult{
		State:             t.State,
		ResultCode:        t.ResultCode,
		ResultDescription: t.ResultDescription,
		ReceiptNumber:     t.ReceiptNumber,
	}
	if t.FinalizedAt != nil {
		r.FinalizedAt = *t.FinalizedAt
	}
	return r
}

// TerminalResult carries the fields written once on the terminal transition
type TerminalResult struct {
	FinalizedAt       time.Time
	ResultCode        *int
	State             TransactionState
	ResultDescription string
	ReceiptNumber     string
}

// Equivalent reports whether two terminal results describe the same outcome.
// Descriptions and timestamps are informational and ignored.
func (r TerminalResult) Equivalent(other TerminalResult) bool {
	if r.State != other.State {
		return false
	}
	if (r.ResultCode == nil) != (other.ResultCode == nil) {
		return false
	}
	if r.ResultCode != nil && *r.ResultCode != *other.ResultCode {
		return false
	}
	if r.ReceiptNumber != "" && other.ReceiptNumber != "" && r.ReceiptNumber != other.ReceiptNumber {
		return false
	}
	return true
}

// IdempotencyKey tracks processed API requests so retried POSTs replay the first response
type IdempotencyKey struct {
	CreatedAt      time.Time `db:"created_at"`
	Key            string    `db:"key"`
	RequestPath    string    `db:"request_path"`
	ResponseBody   string    `db:"response_body"`
	ResponseStatus int       `db:"response_status"`
}
