// Package repository provides the transaction ledger and the callback intake stores.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/db"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

const uniqueViolation = "23505"

// TransactionRepository is the transaction ledger. Finalize is the only way an
// entry leaves PENDING and it succeeds at most once per entry.
type TransactionRepository interface {
	Create(ctx context.Context, tx *models.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error)
	FindByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error)
	FindByReference(ctx context.Context, kind models.TransactionKind, reference string) (*models.Transaction, error)
	AttachCorrelation(ctx context.Context, id uuid.UUID, merchantRequestID, correlationID string) error
	Finalize(ctx context.Context, id uuid.UUID, result models.TerminalResult) (bool, error)
	ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error)
}

// transactionRepository implements TransactionRepository on PostgreSQL
type transactionRepository struct {
	db *db.DB
}

// NewTransactionRepository creates a new TransactionRepository
func NewTransactionRepository(database *db.DB) TransactionRepository {
	return &transactionRepository{db: database}
}

const transactionColumns = `
	id, kind, state, counterparty_address, amount_minor, reference, description,
	command_id, merchant_request_id, correlation_id, result_code, result_description,
	receipt_number, created_at, finalized_at`

// Create inserts a new PENDING ledger entry
func (r *transactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO transactions (
			id, kind, state, counterparty_address, amount_minor, reference, description,
			command_id, merchant_request_id, correlation_id, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx, query,
		tx.ID,
		tx.Kind,
		tx.State,
		tx.CounterpartyAddress,
		tx.AmountMinor,
		tx.Reference,
		tx.Description,
		tx.CommandID,
		tx.MerchantRequestID,
		nullString(tx.CorrelationID),
		tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create transaction: %w", models.ErrDuplicateTransaction)
		}
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// FindByID retrieves a transaction by its UUID
func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE id = $1`
	return r.findOne(ctx, query, id)
}

// FindByCorrelationID retrieves a transaction by its gateway correlation id
func (r *transactionRepository) FindByCorrelationID(ctx context.Context, correlationID string) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + ` FROM transactions WHERE correlation_id = $1`
	return r.findOne(ctx, query, correlationID)
}

// FindByReference retrieves a transaction of the given kind by its caller reference.
// References are only unique for disbursements; for pushes the newest entry wins.
func (r *transactionRepository) FindByReference(ctx context.Context, kind models.TransactionKind, reference string) (*models.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE kind = $1 AND reference = $2
		ORDER BY created_at DESC
		LIMIT 1`
	return r.findOne(ctx, query, kind, reference)
}

// AttachCorrelation records the identifiers the gateway assigned on acceptance.
// It never overwrites an already attached correlation id.
func (r *transactionRepository) AttachCorrelation(ctx context.Context, id uuid.UUID, merchantRequestID, correlationID string) error {
	query := `
		UPDATE transactions
		SET merchant_request_id = $2, correlation_id = $3
		WHERE id = $1 AND correlation_id IS NULL
	`

	result, err := r.db.ExecContext(ctx, query, id, merchantRequestID, correlationID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to attach correlation id: %w", models.ErrDuplicateTransaction)
		}
		return fmt.Errorf("failed to attach correlation id: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("transaction %s without correlation id: %w", id, models.ErrNotFound)
	}

	return nil
}

// Finalize writes the terminal result if and only if the entry is still PENDING.
// It reports whether this call performed the transition.
func (r *transactionRepository) Finalize(ctx context.Context, id uuid.UUID, result models.TerminalResult) (bool, error) {
	if !result.State.IsTerminal() {
		return false, fmt.Errorf("cannot finalize into non-terminal state %s", result.State)
	}

	query := `
		UPDATE transactions
		SET state = $2, result_code = $3, result_description = $4, receipt_number = $5, finalized_at = $6
		WHERE id = $1 AND state = 'PENDING'
	`

	var code sql.NullInt64
	if result.ResultCode != nil {
		code = sql.NullInt64{Int64: int64(*result.ResultCode), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query,
		id,
		result.State,
		code,
		result.ResultDescription,
		result.ReceiptNumber,
		result.FinalizedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to finalize transaction: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rows == 1, nil
}

// ListPending returns PENDING entries created before createdBefore, oldest first
func (r *transactionRepository) ListPending(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	query := `SELECT` + transactionColumns + `
		FROM transactions
		WHERE state = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", err)
	}
	defer func() {
		_ = rows.Close() //nolint:errcheck // read-only query
	}()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txs = append(txs, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return txs, nil
}

func (r *transactionRepository) findOne(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	tx, err := scanTransaction(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction not found: %w", models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find transaction: %w", err)
	}
	return tx, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx            models.Transaction
		correlationID sql.NullString
		resultCode    sql.NullInt64
		finalizedAt   sql.NullTime
	)

	err := row.Scan(
		&tx.ID,
		&tx.Kind,
		&tx.State,
		&tx.CounterpartyAddress,
		&tx.AmountMinor,
		&tx.Reference,
		&tx.Description,
		&tx.CommandID,
		&tx.MerchantRequestID,
		&correlationID,
		&resultCode,
		&tx.ResultDescription,
		&tx.ReceiptNumber,
		&tx.CreatedAt,
		&finalizedAt,
	)
	if err != nil {
		return nil, err
	}

	tx.CorrelationID = correlationID.String
	if resultCode.Valid {
		code := int(resultCode.Int64)
		tx.ResultCode = &code
	}
	if finalizedAt.Valid {
		t := finalizedAt.Time
		tx.FinalizedAt = &t
	}

	return &tx, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
