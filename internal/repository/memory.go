package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

// MemoryTransactionRepository is an in-process ledger for local runs and tests.
// It enforces the same uniqueness and compare-and-swap rules as the PostgreSQL ledger.
type MemoryTransactionRepository struct {
	byID          map[uuid.UUID]*models.Transaction
	byCorrelation map[string]uuid.UUID
	byDisbRef     map[string]uuid.UUID
	mu            sync.RWMutex
}

// NewMemoryTransactionRepository creates an empty in-memory ledger
func NewMemoryTransactionRepository() *MemoryTransactionRepository {
	return &MemoryTransactionRepository{
		byID:          make(map[uuid.UUID]*models.Transaction),
		byCorrelation: make(map[string]uuid.UUID),
		byDisbRef:     make(map[string]uuid.UUID),
	}
}

func (r *MemoryTransactionRepository) Create(_ context.Context, tx *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}

	if _, ok := r.byID[tx.ID]; ok {
		return fmt.Errorf("failed to create transaction: %w", models.ErrDuplicateTransaction)
	}
	if tx.CorrelationID != "" {
		if _, ok := r.byCorrelation[tx.CorrelationID]; ok {
			return fmt.Errorf("failed to create transaction: %w", models.ErrDuplicateTransaction)
		}
	}
	if tx.Kind == models.TransactionKindDisbursement {
		if _, ok := r.byDisbRef[tx.Reference]; ok {
			return fmt.Errorf("failed to create transaction: %w", models.ErrDuplicateTransaction)
		}
		r.byDisbRef[tx.Reference] = tx.ID
	}

	r.byID[tx.ID] = tx.Clone()
	if tx.CorrelationID != "" {
		r.byCorrelation[tx.CorrelationID] = tx.ID
	}
	return nil
}

func (r *MemoryTransactionRepository) FindByID(_ context.Context, id uuid.UUID) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tx, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %w", models.ErrNotFound)
	}
	return tx.Clone(), nil
}

func (r *MemoryTransactionRepository) FindByCorrelationID(_ context.Context, correlationID string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byCorrelation[correlationID]
	if !ok {
		return nil, fmt.Errorf("transaction not found: %w", models.ErrNotFound)
	}
	return r.byID[id].Clone(), nil
}

func (r *MemoryTransactionRepository) FindByReference(_ context.Context, kind models.TransactionKind, reference string) (*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if kind == models.TransactionKindDisbursement {
		id, ok := r.byDisbRef[reference]
		if !ok {
			return nil, fmt.Errorf("transaction not found: %w", models.ErrNotFound)
		}
		return r.byID[id].Clone(), nil
	}

	var newest *models.Transaction
	for _, tx := range r.byID {
		if tx.Kind == kind && tx.Reference == reference {
			if newest == nil || tx.CreatedAt.After(newest.CreatedAt) {
				newest = tx
			}
		}
	}
	if newest == nil {
		return nil, fmt.Errorf("transaction not found: %w", models.ErrNotFound)
	}
	return newest.Clone(), nil
}

func (r *MemoryTransactionRepository) AttachCorrelation(_ context.Context, id uuid.UUID, merchantRequestID, correlationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.byID[id]
	if !ok || tx.CorrelationID != "" {
		return fmt.Errorf("transaction %s without correlation id: %w", id, models.ErrNotFound)
	}
	if _, taken := r.byCorrelation[correlationID]; taken {
		return fmt.Errorf("failed to attach correlation id: %w", models.ErrDuplicateTransaction)
	}

	tx.MerchantRequestID = merchantRequestID
	tx.CorrelationID = correlationID
	r.byCorrelation[correlationID] = id
	return nil
}

func (r *MemoryTransactionRepository) Finalize(_ context.Context, id uuid.UUID, result models.TerminalResult) (bool, error) {
	if !result.State.IsTerminal() {
		return false, fmt.Errorf("cannot finalize into non-terminal state %s", result.State)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, ok := r.byID[id]
	if !ok || tx.State != models.TransactionStatePending {
		return false, nil
	}

	finalizedAt := result.FinalizedAt
	tx.State = result.State
	tx.FinalizedAt = &finalizedAt
	tx.ResultDescription = result.ResultDescription
	tx.ReceiptNumber = result.ReceiptNumber
	if result.ResultCode != nil {
		code := *result.ResultCode
		tx.ResultCode = &code
	}
	return true, nil
}

func (r *MemoryTransactionRepository) ListPending(_ context.Context, createdBefore time.Time, limit int) ([]*models.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var pending []*models.Transaction
	for _, tx := range r.byID {
		if tx.State == models.TransactionStatePending && tx.CreatedAt.Before(createdBefore) {
			pending = append(pending, tx.Clone())
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

// MemoryOrphanRepository is an in-process OrphanRepository
type MemoryOrphanRepository struct {
	orphans map[uuid.UUID]*models.OrphanCallback
	mu      sync.Mutex
}

// NewMemoryOrphanRepository creates an empty in-memory orphan store
func NewMemoryOrphanRepository() *MemoryOrphanRepository {
	return &MemoryOrphanRepository{orphans: make(map[uuid.UUID]*models.OrphanCallback)}
}

func (r *MemoryOrphanRepository) Save(_ context.Context, orphan *models.OrphanCallback) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if orphan.ID == uuid.Nil {
		orphan.ID = uuid.New()
	}
	c := *orphan
	c.Payload = append([]byte(nil), orphan.Payload...)
	r.orphans[c.ID] = &c
	return nil
}

func (r *MemoryOrphanRepository) ListOpen(_ context.Context, limit int) ([]*models.OrphanCallback, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var open []*models.OrphanCallback
	for _, o := range r.orphans {
		if o.ResolvedAt == nil {
			c := *o
			open = append(open, &c)
		}
	}
	sort.Slice(open, func(i, j int) bool {
		return open[i].ReceivedAt.Before(open[j].ReceivedAt)
	})
	if limit > 0 && len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (r *MemoryOrphanRepository) RecordAttempt(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if o, ok := r.orphans[id]; ok {
		o.Attempts++
	}
	return nil
}

func (r *MemoryOrphanRepository) Resolve(_ context.Context, id uuid.UUID, resolution string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orphans[id]
	if !ok || o.ResolvedAt != nil {
		return nil
	}
	o.Resolution = resolution
	o.ResolvedAt = &at
	return nil
}

// MemoryAuditRepository is an in-process AuditRepository
type MemoryAuditRepository struct {
	entries []*models.AuditEntry
	mu      sync.Mutex
}

// NewMemoryAuditRepository creates an empty in-memory audit trail
func NewMemoryAuditRepository() *MemoryAuditRepository {
	return &MemoryAuditRepository{}
}

func (r *MemoryAuditRepository) Append(_ context.Context, entry *models.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *entry
	r.entries = append(r.entries, &c)
	return nil
}

func (r *MemoryAuditRepository) ListByTransaction(_ context.Context, id uuid.UUID) ([]*models.AuditEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*models.AuditEntry
	for _, e := range r.entries {
		if e.TransactionID != nil && *e.TransactionID == id {
			c := *e
			out = append(out, &c)
		}
	}
	return out, nil
}

// Entries returns every entry appended so far, including those without a transaction.
func (r *MemoryAuditRepository) Entries() []*models.AuditEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*models.AuditEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// MemoryIdempotencyRepository is an in-process IdempotencyRepository
type MemoryIdempotencyRepository struct {
	keys map[string]*models.IdempotencyKey
	mu   sync.Mutex
}

// NewMemoryIdempotencyRepository creates an empty in-memory idempotency store
func NewMemoryIdempotencyRepository() *MemoryIdempotencyRepository {
	return &MemoryIdempotencyRepository{keys: make(map[string]*models.IdempotencyKey)}
}

func (r *MemoryIdempotencyRepository) Get(_ context.Context, key, requestPath string) (*models.IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k, ok := r.keys[requestPath+"\x00"+key]
	if !ok {
		return nil, nil
	}
	c := *k
	return &c, nil
}

func (r *MemoryIdempotencyRepository) Store(_ context.Context, idemKey *models.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := idemKey.RequestPath + "\x00" + idemKey.Key
	if _, ok := r.keys[id]; ok {
		return nil
	}
	c := *idemKey
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.keys[id] = &c
	return nil
}

var (
	_ TransactionRepository = (*MemoryTransactionRepository)(nil)
	_ OrphanRepository      = (*MemoryOrphanRepository)(nil)
	_ AuditRepository       = (*MemoryAuditRepository)(nil)
	_ IdempotencyRepository = (*MemoryIdempotencyRepository)(nil)
)
