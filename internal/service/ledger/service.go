// Package ledger moves money between wallets. Every operation runs inside a
// fresh unit of work, locks the wallets it touches in ascending id order and
// retries the whole unit when an optimistic version check fails.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

type walletRepo interface {
	GetForUpdate(ctx context.Context, h *uow.Handle, id uuid.UUID) (*domain.Wallet, error)
	UpdateBalance(ctx context.Context, h *uow.Handle, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (int64, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
}

type transactionRepo interface {
	Create(ctx context.Context, h *uow.Handle, t *domain.Transaction) error
	UpdateStatus(ctx context.Context, h *uow.Handle, id uuid.UUID, status domain.TransactionStatus, failureReason *string) (*domain.Transaction, error)
	GetCompletedByIdempotencyKey(ctx context.Context, h *uow.Handle, key string) (*domain.Transaction, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
}

type notificationRepo interface {
	Create(ctx context.Context, h *uow.Handle, n *domain.Notification) error
}

type walletCache interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Wallet, bool)
	GetByUser(ctx context.Context, userID uuid.UUID) (*domain.Wallet, bool)
	Set(ctx context.Context, w *domain.Wallet)
	Invalidate(ctx context.Context, committed ...*domain.Wallet)
}

type Options struct {
	// MaxRetries is how many times a conflicted operation is re-run after its first attempt.
	MaxRetries int
	// FeeWalletID receives transfer fees. When nil, fees leave the wallet ledger.
	FeeWalletID *uuid.UUID
	// RecordFailures persists business-rule failures as FAILED transactions.
	RecordFailures bool
}

type Service struct {
	units         *uow.Factory
	wallets       walletRepo
	transactions  transactionRepo
	notifications notificationRepo
	cache         walletCache
	opts          Options
}

func NewService(
	units *uow.Factory,
	wallets walletRepo,
	transactions transactionRepo,
	notifications notificationRepo,
	cache walletCache,
	opts Options,
) *Service {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if cache == nil {
		cache = noCache{}
	}
	return &Service{
		units:         units,
		wallets:       wallets,
		transactions:  transactions,
		notifications: notifications,
		cache:         cache,
		opts:          opts,
	}
}

func (s *Service) GetWallet(ctx context.Context, walletID uuid.UUID) (*domain.Wallet, error) {
	if w, ok := s.cache.Get(ctx, walletID); ok {
		return w, nil
	}
	w, err := s.wallets.GetByID(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("GetWallet: %w", err)
	}
	s.cache.Set(ctx, w)
	return w, nil
}

func (s *Service) GetUserWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	if w, ok := s.cache.GetByUser(ctx, userID); ok {
		return w, nil
	}
	w, err := s.wallets.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("GetUserWallet: %w", err)
	}
	s.cache.Set(ctx, w)
	return w, nil
}

func (s *Service) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (s *Service) ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	txns, total, err := s.transactions.ListByWallet(ctx, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactions: %w", err)
	}
	return txns, total, nil
}

type noCache struct{}

func (noCache) Get(context.Context, uuid.UUID) (*domain.Wallet, bool)       { return nil, false }
func (noCache) GetByUser(context.Context, uuid.UUID) (*domain.Wallet, bool) { return nil, false }
func (noCache) Set(context.Context, *domain.Wallet)                         {}
func (noCache) Invalidate(context.Context, ...*domain.Wallet)               {}
