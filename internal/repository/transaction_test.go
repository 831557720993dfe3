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

func TestTransactionRepository_CreateAndFind(t *testing.T) {
	database := setupTestDB(t)
	defer cleanupTestDB(t, database)
	truncateTables(t, database)

	repo := NewTransactionRepository(database)
	ctx := context.Background()

	tests := []struct {
		tx      *models.Transaction
		name    string
		wantErr bool
	}{
		{
			name: "create push",
			tx: &models.Transaction{
				Kind:                models.TransactionKindCustomerPush,
				State:               models.TransactionStatePending,
				CounterpartyAddress: "254712345678",
				AmountMinor:         100,
				Reference:           "INV-1",
				Description:         "Payment",
			},
		},
		{
			name: "create disbursement with pre-set ID",
			tx: &models.Transaction{
				ID:                  uuid.New(),
				Kind:                models.TransactionKindDisbursement,
				State:               models.TransactionStatePending,
				CounterpartyAddress: "254712345678",
				AmountMinor:         5000,
				Reference:           "PAYOUT-1",
				CommandID:           "BusinessPayment",
			},
		},
		{
			name: "zero amount violates constraint",
			tx: &models.Transaction{
				Kind:                models.TransactionKindCustomerPush,
				State:               models.TransactionStatePending,
				CounterpartyAddress: "254712345678",
				Reference:           "INV-2",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originalID := tt.tx.ID

			err := repo.Create(ctx, tt.tx)
			if tt.wantErr {
				assert.Error(t, err, "expected error")
				return
			}
			require.NoError(t, err)

			if originalID != uuid.Nil {
				assert.Equal(t, originalID, tt.tx.ID, "pre-set ID should be kept")
			} else {
				assert.NotEqual(t, uuid.Nil, tt.tx.ID, "ID should be generated")
			}

			found, err := repo.FindByID(ctx, tt.tx.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.tx.Kind, found.Kind)
			assert.Equal(t, tt.tx.AmountMinor, found.AmountMinor)
			assert.Equal(t, models.TransactionStatePending, found.State)
			assert.Nil(t, found.FinalizedAt)
			assert.Nil(t, found.ResultCode)
		})
	}

	_, err := repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestTransactionRepository_DisbursementReferenceUnique(t *testing.T) {
	database := setupTestDB(t)
	defer cleanupTestDB(t, database)
	truncateTables(t, database)

	repo := NewTransactionRepository(database)
	ctx := context.Background()

	newDisbursement := func() *models.Transaction {
		return &models.Transaction{
			Kind:                models.TransactionKindDisbursement,
			State:               models.TransactionStatePending,
			CounterpartyAddress: "254712345678",
			AmountMinor:         500,
			Reference:           "PAYOUT-42",
			CommandID:           "SalaryPayment",
		}
	}

	first := newDisbursement()
	require.NoError(t, repo.Create(ctx, first))

	err := repo.Create(ctx, newDisbursement())
	assert.ErrorIs(t, err, models.ErrDuplicateTransaction)

	found, err := repo.FindByReference(ctx, models.TransactionKindDisbursement, "PAYOUT-42")
	require.NoError(t, err)
	assert.Equal(t, first.ID, found.ID)
}

func TestTransactionRepository_AttachAndFinalize(t *testing.T) {
	database := setupTestDB(t)
	defer cleanupTestDB(t, database)
	truncateTables(t, database)

	repo := NewTransactionRepository(database)
	ctx := context.Background()

	tx := &models.Transaction{
		Kind:                models.TransactionKindCustomerPush,
		State:               models.TransactionStatePending,
		CounterpartyAddress: "254712345678",
		AmountMinor:         100,
		Reference:           "INV-9",
	}
	require.NoError(t, repo.Create(ctx, tx))
	require.NoError(t, repo.AttachCorrelation(ctx, tx.ID, "m-9", "ws_CO_9"))
	assert.ErrorIs(t, repo.AttachCorrelation(ctx, tx.ID, "m-10", "ws_CO_10"), models.ErrNotFound)

	byCorrelation, err := repo.FindByCorrelationID(ctx, "ws_CO_9")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byCorrelation.ID)

	code := 0
	var applied atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Finalize(ctx, tx.ID, models.TerminalResult{
				State:         models.TransactionStateSucceeded,
				ResultCode:    &code,
				ReceiptNumber: "NLJ7RT61SV",
				FinalizedAt:   time.Now().UTC(),
			})
			assert.NoError(t, err)
			if ok {
				applied.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), applied.Load())

	final, err := repo.FindByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStateSucceeded, final.State)
	assert.Equal(t, "NLJ7RT61SV", final.ReceiptNumber)
	require.NotNil(t, final.FinalizedAt)

	pending, err := repo.ListPending(ctx, time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
