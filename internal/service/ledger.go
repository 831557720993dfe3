package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/models"
	"github.com/OCHOLLA20/PesaGuru-Financial-Advisory-Chatbot-sub005/internal/repository"
)

// findTransaction loads a ledger entry of the given kind. Entries of another kind
// are reported as not found.
func findTransaction(
	ctx context.Context,
	ledger repository.TransactionRepository,
	id uuid.UUID,
	kind models.TransactionKind,
) (*models.Transaction, error) {
	tx, err := ledger.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFound(id)
		}
		return nil, internalError("failed to load transaction", err)
	}
	if kind != "" && tx.Kind != kind {
		return nil, notFound(id)
	}
	return tx, nil
}

func notFound(id uuid.UUID) *ServiceError {
	return &ServiceError{
		Code:    ErrCodeTransactionNotFound,
		Message: fmt.Sprintf("transaction %s not found", id),
	}
}

func failedResult(code *int, description string) models.TerminalResult {
	return models.TerminalResult{
		State:             models.TransactionStateFailed,
		ResultCode:        code,
		ResultDescription: description,
	}
}
