package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

// OrphanRepository parks callbacks whose transaction could not be found yet
type OrphanRepository interface {
	Save(ctx context.Context, orphan *models.OrphanCallback) error
	ListOpen(ctx context.Context, limit int) ([]*models.OrphanCallback, error)
	RecordAttempt(ctx context.Context, id uuid.UUID) error
	Resolve(ctx context.Context, id uuid.UUID, resolution string, at time.Time) error
}

type pgOrphanRepository struct {
	db     PgxQuerier
	logger *slog.Logger
}

// NewOrphanRepository creates an OrphanRepository on a pgx pool
func NewOrphanRepository(pool PgxQuerier, logger *slog.Logger) OrphanRepository {
	return &pgOrphanRepository{db: pool, logger: logger.With("component", "orphan_repository_pg")}
}

func (r *pgOrphanRepository) Save(ctx context.Context, orphan *models.OrphanCallback) error {
	if orphan.ID == uuid.Nil {
		orphan.ID = uuid.New()
	}

	query := `INSERT INTO orphan_callbacks (id, kind, correlation_id, payload, attempts, received_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.Exec(ctx, query,
		orphan.ID,
		string(orphan.Kind),
		orphan.CorrelationID,
		orphan.Payload,
		orphan.Attempts,
		orphan.ReceivedAt,
		orphan.ExpiresAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Error saving orphan callback", "correlation_id", orphan.CorrelationID, "error", err)
		return fmt.Errorf("saving orphan callback: %w", err)
	}
	return nil
}

// ListOpen returns unresolved orphans, oldest first
func (r *pgOrphanRepository) ListOpen(ctx context.Context, limit int) ([]*models.OrphanCallback, error) {
	query := `SELECT id, kind, correlation_id, payload, attempts, received_at, expires_at FROM orphan_callbacks WHERE resolved_at IS NULL ORDER BY received_at ASC LIMIT $1`
	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("listing open orphan callbacks: %w", err)
	}
	defer rows.Close()

	var orphans []*models.OrphanCallback
	for rows.Next() {
		var (
			o    models.OrphanCallback
			kind string
		)
		if err := rows.Scan(&o.ID, &kind, &o.CorrelationID, &o.Payload, &o.Attempts, &o.ReceivedAt, &o.ExpiresAt); err != nil {
			return nil, fmt.Errorf("scanning orphan callback: %w", err)
		}
		o.Kind = models.CallbackKind(kind)
		orphans = append(orphans, &o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating orphan callbacks: %w", err)
	}
	return orphans, nil
}

func (r *pgOrphanRepository) RecordAttempt(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE orphan_callbacks SET attempts = attempts + 1 WHERE id = $1`
	if _, err := r.db.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("recording orphan attempt: %w", err)
	}
	return nil
}

// Resolve closes an orphan; an already resolved orphan is left untouched
func (r *pgOrphanRepository) Resolve(ctx context.Context, id uuid.UUID, resolution string, at time.Time) error {
	query := `UPDATE orphan_callbacks SET resolution = $2, resolved_at = $3 WHERE id = $1 AND resolved_at IS NULL`
	tag, err := r.db.Exec(ctx, query, id, resolution, at)
	if err != nil {
		return fmt.Errorf("resolving orphan callback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		r.logger.DebugContext(ctx, "Orphan callback already resolved", "id", id)
	}
	return nil
}
