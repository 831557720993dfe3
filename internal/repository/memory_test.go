package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
)

func newPush(createdAt time.Time) *models.Transaction {
	return &models.Transaction{
		Kind:                models.TransactionKindCustomerPush,
		State:               models.TransactionStatePending,
		CounterpartyAddress: "254712345678",
		AmountMinor:         100,
		Reference:           "INV-1",
		Description:         "Payment",
		CreatedAt:           createdAt,
	}
}

func intPtr(i int) *int { return &i }

func TestMemoryTransactionRepository_Finalize(t *testing.T) {
	ctx := context.Background()

	t.Run("only the first terminal write applies", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		tx := newPush(time.Now())
		require.NoError(t, repo.Create(ctx, tx))

		applied, err := repo.Finalize(ctx, tx.ID, models.TerminalResult{
			State:         models.TransactionStateSucceeded,
			ResultCode:    intPtr(0),
			ReceiptNumber: "NLJ7RT61SV",
			FinalizedAt:   time.Now(),
		})
		require.NoError(t, err)
		assert.True(t, applied)

		applied, err = repo.Finalize(ctx, tx.ID, models.TerminalResult{
			State:       models.TransactionStateFailed,
			ResultCode:  intPtr(1032),
			FinalizedAt: time.Now(),
		})
		require.NoError(t, err)
		assert.False(t, applied)

		stored, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStateSucceeded, stored.State)
		assert.Equal(t, "NLJ7RT61SV", stored.ReceiptNumber)
		require.NotNil(t, stored.ResultCode)
		assert.Equal(t, 0, *stored.ResultCode)
	})

	t.Run("concurrent finalizers produce exactly one transition", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		tx := newPush(time.Now())
		require.NoError(t, repo.Create(ctx, tx))

		var applied atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 50; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				state := models.TransactionStateSucceeded
				if i%2 == 1 {
					state = models.TransactionStateFailed
				}
				ok, err := repo.Finalize(ctx, tx.ID, models.TerminalResult{State: state, FinalizedAt: time.Now()})
				assert.NoError(t, err)
				if ok {
					applied.Add(1)
				}
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), applied.Load())
	})

	t.Run("non-terminal state is rejected", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		tx := newPush(time.Now())
		require.NoError(t, repo.Create(ctx, tx))

		_, err := repo.Finalize(ctx, tx.ID, models.TerminalResult{State: models.TransactionStatePending})
		assert.Error(t, err)
	})

	t.Run("returned entries are copies", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		tx := newPush(time.Now())
		require.NoError(t, repo.Create(ctx, tx))

		got, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		got.State = models.TransactionStateFailed

		again, err := repo.FindByID(ctx, tx.ID)
		require.NoError(t, err)
		assert.Equal(t, models.TransactionStatePending, again.State)
	})
}

func TestMemoryTransactionRepository_Uniqueness(t *testing.T) {
	ctx := context.Background()

	t.Run("disbursement reference is unique", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		first := newPush(time.Now())
		first.Kind = models.TransactionKindDisbursement
		first.Reference = "PAYOUT-7"
		require.NoError(t, repo.Create(ctx, first))

		second := newPush(time.Now())
		second.Kind = models.TransactionKindDisbursement
		second.Reference = "PAYOUT-7"
		err := repo.Create(ctx, second)
		assert.ErrorIs(t, err, models.ErrDuplicateTransaction)

		found, err := repo.FindByReference(ctx, models.TransactionKindDisbursement, "PAYOUT-7")
		require.NoError(t, err)
		assert.Equal(t, first.ID, found.ID)
	})

	t.Run("push references may repeat", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		require.NoError(t, repo.Create(ctx, newPush(time.Now().Add(-time.Minute))))
		latest := newPush(time.Now())
		require.NoError(t, repo.Create(ctx, latest))

		found, err := repo.FindByReference(ctx, models.TransactionKindCustomerPush, "INV-1")
		require.NoError(t, err)
		assert.Equal(t, latest.ID, found.ID)
	})

	t.Run("correlation id attaches once", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		a := newPush(time.Now())
		b := newPush(time.Now())
		require.NoError(t, repo.Create(ctx, a))
		require.NoError(t, repo.Create(ctx, b))

		require.NoError(t, repo.AttachCorrelation(ctx, a.ID, "m-1", "ws_CO_1"))
		assert.ErrorIs(t, repo.AttachCorrelation(ctx, a.ID, "m-2", "ws_CO_2"), models.ErrNotFound)
		assert.ErrorIs(t, repo.AttachCorrelation(ctx, b.ID, "m-3", "ws_CO_1"), models.ErrDuplicateTransaction)

		found, err := repo.FindByCorrelationID(ctx, "ws_CO_1")
		require.NoError(t, err)
		assert.Equal(t, a.ID, found.ID)
		assert.Equal(t, "m-1", found.MerchantRequestID)

		_, err = repo.FindByCorrelationID(ctx, "ws_CO_404")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("duplicate id", func(t *testing.T) {
		repo := NewMemoryTransactionRepository()
		tx := newPush(time.Now())
		tx.ID = uuid.New()
		require.NoError(t, repo.Create(ctx, tx))
		assert.ErrorIs(t, repo.Create(ctx, tx), models.ErrDuplicateTransaction)
	})
}

func TestMemoryTransactionRepository_ListPending(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryTransactionRepository()
	now := time.Now()

	old := newPush(now.Add(-10 * time.Minute))
	older := newPush(now.Add(-20 * time.Minute))
	fresh := newPush(now)
	done := newPush(now.Add(-30 * time.Minute))
	for _, tx := range []*models.Transaction{old, older, fresh, done} {
		require.NoError(t, repo.Create(ctx, tx))
	}
	_, err := repo.Finalize(ctx, done.ID, models.TerminalResult{State: models.TransactionStateFailed, FinalizedAt: now})
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx, now.Add(-2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, older.ID, pending[0].ID)
	assert.Equal(t, old.ID, pending[1].ID)

	limited, err := repo.ListPending(ctx, now.Add(-2*time.Minute), 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestMemoryOrphanRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryOrphanRepository()
	now := time.Now()

	first := &models.OrphanCallback{Kind: models.CallbackKindPush, CorrelationID: "ws_1", Payload: []byte(`{}`), ReceivedAt: now.Add(-time.Minute), ExpiresAt: now.Add(9 * time.Minute)}
	second := &models.OrphanCallback{Kind: models.CallbackKindPush, CorrelationID: "ws_2", Payload: []byte(`{}`), ReceivedAt: now, ExpiresAt: now.Add(10 * time.Minute)}
	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.Save(ctx, second))

	require.NoError(t, repo.RecordAttempt(ctx, first.ID))
	require.NoError(t, repo.Resolve(ctx, second.ID, models.OrphanResolutionMatched, now))

	open, err := repo.ListOpen(ctx, 10)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, "ws_1", open[0].CorrelationID)
	assert.Equal(t, 1, open[0].Attempts)
}

func TestMemoryIdempotencyRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryIdempotencyRepository()

	got, err := repo.Get(ctx, "k", "/api/v1/payments")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.Store(ctx, &models.IdempotencyKey{Key: "k", RequestPath: "/api/v1/payments", ResponseStatus: 202, ResponseBody: `{"a":1}`}))
	require.NoError(t, repo.Store(ctx, &models.IdempotencyKey{Key: "k", RequestPath: "/api/v1/payments", ResponseStatus: 500, ResponseBody: `{}`}))

	got, err = repo.Get(ctx, "k", "/api/v1/payments")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 202, got.ResponseStatus)

	other, err := repo.Get(ctx, "k", "/api/v1/disbursements")
	require.NoError(t, err)
	assert.Nil(t, other)
}
