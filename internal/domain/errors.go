package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                 = errors.New("not found")
	ErrWalletInactive           = errors.New("wallet inactive")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrInsufficientFunds        = errors.New("insufficient funds")
	ErrVersionConflict          = errors.New("optimistic lock conflict")
	ErrDuplicateIdempotencyKey  = errors.New("duplicate idempotency key")
	ErrInvalidTransition        = errors.New("invalid transaction status transition")
	ErrTransactionAlreadyActive = errors.New("transaction already active")
	ErrNoActiveTransaction      = errors.New("no active transaction")
	ErrConcurrencyExhausted     = errors.New("concurrent modification retries exhausted")

	ErrCurrencyMismatch   = errors.New("currency mismatch")
	ErrSelfTransfer       = errors.New("cannot transfer to same wallet")
	ErrInvalidRequest     = errors.New("invalid request")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user inactive")
)

// InsufficientFundsError carries the balance that blocked a debit.
type InsufficientFundsError struct {
	WalletID  uuid.UUID
	Requested decimal.Decimal
	Balance   decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("wallet %s: requested %s, balance %s: %s",
		e.WalletID, e.Requested.StringFixed(MoneyScale), e.Balance.StringFixed(MoneyScale), ErrInsufficientFunds)
}

func (e *InsufficientFundsError) Unwrap() error { return ErrInsufficientFunds }

// WalletError attaches the offending wallet id to a sentinel.
type WalletError struct {
	WalletID uuid.UUID
	Err      error
}

func (e *WalletError) Error() string {
	return fmt.Sprintf("wallet %s: %s", e.WalletID, e.Err)
}

func (e *WalletError) Unwrap() error { return e.Err }
