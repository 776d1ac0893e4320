package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL"
	TransactionTypeTransfer   TransactionType = "TRANSFER"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition is allowed.
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// CanTransitionTo enforces PENDING -> COMPLETED | FAILED | CANCELLED and nothing else.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	return s == TransactionStatusPending && next.IsTerminal()
}

type Transaction struct {
	ID             uuid.UUID
	FromWalletID   *uuid.UUID
	ToWalletID     *uuid.UUID
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Type           TransactionType
	Status         TransactionStatus
	Description    *string
	IdempotencyKey *string
	Metadata       json.RawMessage
	FailureReason  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ValidateShape checks that the wallet references match the transaction type.
func (t *Transaction) ValidateShape() error {
	switch t.Type {
	case TransactionTypeDeposit:
		if t.FromWalletID != nil || t.ToWalletID == nil {
			return ErrInvalidRequest
		}
	case TransactionTypeWithdrawal:
		if t.FromWalletID == nil || t.ToWalletID != nil {
			return ErrInvalidRequest
		}
	case TransactionTypeTransfer:
		if t.FromWalletID == nil || t.ToWalletID == nil {
			return ErrInvalidRequest
		}
	default:
		return ErrInvalidRequest
	}
	return nil
}

// WalletIDs returns every wallet the transaction touches.
func (t *Transaction) WalletIDs() []uuid.UUID {
	var ids []uuid.UUID
	if t.FromWalletID != nil {
		ids = append(ids, *t.FromWalletID)
	}
	if t.ToWalletID != nil {
		ids = append(ids, *t.ToWalletID)
	}
	return ids
}
