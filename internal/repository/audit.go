package repository

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

// AuditRepository is the append-only reconciliation audit trail
type AuditRepository interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
	ListByTransaction(ctx context.Context, id uuid.UUID) ([]*models.AuditEntry, error)
}

type pgAuditRepository struct {
	db     PgxQuerier
	logger *slog.Logger
}

// NewAuditRepository creates an AuditRepository on a pgx pool
func NewAuditRepository(pool PgxQuerier, logger *slog.Logger) AuditRepository {
	return &pgAuditRepository{db: pool, logger: logger.With("component", "audit_repository_pg")}
}

func (r *pgAuditRepository) Append(ctx context.Context, entry *models.AuditEntry) error {
	var payload []byte
	if len(entry.Payload) > 0 {
		payload = entry.Payload
	}

	query := `INSERT INTO audit_log (transaction_id, event, source, from_state, to_state, payload, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		entry.TransactionID,
		entry.Event,
		entry.Source,
		string(entry.FromState),
		string(entry.ToState),
		payload,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error appending audit entry", "event", entry.Event, "error", err)
		return fmt.Errorf("appending audit entry: %w", err)
	}
	return nil
}

// ListByTransaction returns a transaction's audit entries in insertion order
func (r *pgAuditRepository) ListByTransaction(ctx context.Context, id uuid.UUID) ([]*models.AuditEntry, error) {
	query := `SELECT event, source, from_state, to_state, payload, created_at FROM audit_log WHERE transaction_id = $1 ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.AuditEntry
	for rows.Next() {
		var (
			e         models.AuditEntry
			fromState string
			toState   string
			payload   []byte
		)
		if err := rows.Scan(&e.Event, &e.Source, &fromState, &toState, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		txID := id
		e.TransactionID = &txID
		e.FromState = models.TransactionState(fromState)
		e.ToState = models.TransactionState(toState)
		e.Payload = payload
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}
	return entries, nil
}
