package ledger

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

// RequestOptions are the optional fields shared by every money movement.
type RequestOptions struct {
	IdempotencyKey *string
	Description    *string
	Metadata       json.RawMessage
}

type DepositRequest struct {
	WalletID uuid.UUID
	Amount   decimal.Decimal
	RequestOptions
}

type WithdrawRequest struct {
	WalletID uuid.UUID
	Amount   decimal.Decimal
	RequestOptions
}

type TransferRequest struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	RequestOptions
}

// Deposit credits a wallet from outside the ledger.
func (s *Service) Deposit(ctx context.Context, req DepositRequest) (*domain.Transaction, error) {
	to := req.WalletID
	return s.run(ctx, "Deposit", movement{
		txType:         domain.TransactionTypeDeposit,
		to:             &to,
		amount:         req.Amount,
		fee:            decimal.Zero,
		idempotencyKey: req.IdempotencyKey,
		description:    req.Description,
		metadata:       req.Metadata,
	})
}

// Withdraw debits a wallet to outside the ledger. The balance never goes negative.
func (s *Service) Withdraw(ctx context.Context, req WithdrawRequest) (*domain.Transaction, error) {
	from := req.WalletID
	return s.run(ctx, "Withdraw", movement{
		txType:         domain.TransactionTypeWithdrawal,
		from:           &from,
		amount:         req.Amount,
		fee:            decimal.Zero,
		idempotencyKey: req.IdempotencyKey,
		description:    req.Description,
		metadata:       req.Metadata,
	})
}

// Transfer moves Amount between two wallets. The source is also charged Fee;
// the destination receives exactly Amount.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (*domain.Transaction, error) {
	from, to := req.FromWalletID, req.ToWalletID
	return s.run(ctx, "Transfer", movement{
		txType:         domain.TransactionTypeTransfer,
		from:           &from,
		to:             &to,
		amount:         req.Amount,
		fee:            req.Fee,
		idempotencyKey: req.IdempotencyKey,
		description:    req.Description,
		metadata:       req.Metadata,
	})
}
