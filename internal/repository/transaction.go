package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

// TransactionRepository scopes transaction-record writes to a unit-of-work handle.
type TransactionRepository struct {
	store *LedgerStore
}

func NewTransactionRepository(store *LedgerStore) *TransactionRepository {
	return &TransactionRepository{store: store}
}

func (r *TransactionRepository) Create(ctx context.Context, h *uow.Handle, t *domain.Transaction) error {
	tx, err := h.Tx()
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	if err := r.store.InsertTransaction(ctx, tx, t); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *TransactionRepository) UpdateStatus(ctx context.Context, h *uow.Handle, id uuid.UUID, status domain.TransactionStatus, failureReason *string) (*domain.Transaction, error) {
	tx, err := h.Tx()
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	t, err := r.store.UpdateTransactionStatus(ctx, tx, id, status, failureReason)
	if err != nil {
		return nil, fmt.Errorf("UpdateStatus: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetCompletedByIdempotencyKey(ctx context.Context, h *uow.Handle, key string) (*domain.Transaction, error) {
	tx, err := h.Tx()
	if err != nil {
		return nil, fmt.Errorf("GetCompletedByIdempotencyKey: %w", err)
	}
	t, err := r.store.FindCompletedByIdempotencyKey(ctx, tx, key)
	if err != nil {
		return nil, fmt.Errorf("GetCompletedByIdempotencyKey: %w", err)
	}
	return t, nil
}

func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return r.store.GetTransaction(ctx, id)
}

func (r *TransactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	return r.store.ListTransactionsByWallet(ctx, walletID, limit, offset)
}
