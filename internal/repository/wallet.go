package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

// WalletRepository scopes wallet writes to a unit-of-work handle.
type WalletRepository struct {
	store *LedgerStore
}

func NewWalletRepository(store *LedgerStore) *WalletRepository {
	return &WalletRepository{store: store}
}

func (r *WalletRepository) GetForUpdate(ctx context.Context, h *uow.Handle, id uuid.UUID) (*domain.Wallet, error) {
	tx, err := h.Tx()
	if err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	w, err := r.store.ReadWalletForUpdate(ctx, tx, id)
	if err != nil {
		return nil, fmt.Errorf("GetForUpdate: %w", err)
	}
	return w, nil
}

func (r *WalletRepository) UpdateBalance(ctx context.Context, h *uow.Handle, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (int64, error) {
	tx, err := h.Tx()
	if err != nil {
		return 0, fmt.Errorf("UpdateBalance: %w", err)
	}
	v, err := r.store.WriteWalletBalance(ctx, tx, id, expectedVersion, newBalance)
	if err != nil {
		return 0, fmt.Errorf("UpdateBalance: %w", err)
	}
	return v, nil
}

func (r *WalletRepository) Create(ctx context.Context, h *uow.Handle, w *domain.Wallet) error {
	tx, err := h.Tx()
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	if err := r.store.InsertWallet(ctx, tx, w); err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WalletRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return r.store.GetWallet(ctx, id)
}

func (r *WalletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	return r.store.GetWalletByUserID(ctx, userID)
}
