package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
)

type ledgerService interface {
	GetUserWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error)
	Deposit(ctx context.Context, req ledger.DepositRequest) (*domain.Transaction, error)
	Withdraw(ctx context.Context, req ledger.WithdrawRequest) (*domain.Transaction, error)
	Transfer(ctx context.Context, req ledger.TransferRequest) (*domain.Transaction, error)
}

type WalletHandler struct {
	ledger ledgerService
}

func NewWalletHandler(ledger ledgerService) *WalletHandler {
	return &WalletHandler{ledger: ledger}
}

type walletDTO struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   string    `json:"balance"`
	Currency  string    `json:"currency"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toWalletDTO(w *domain.Wallet) walletDTO {
	return walletDTO{
		ID:        w.ID,
		UserID:    w.UserID,
		Balance:   w.Balance.StringFixed(domain.MoneyScale),
		Currency:  string(w.Currency),
		IsActive:  w.IsActive,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type transactionDTO struct {
	ID             uuid.UUID       `json:"id"`
	Type           string          `json:"type"`
	Status         string          `json:"status"`
	FromWalletID   *uuid.UUID      `json:"from_wallet_id"`
	ToWalletID     *uuid.UUID      `json:"to_wallet_id"`
	Amount         string          `json:"amount"`
	Fee            string          `json:"fee"`
	Description    *string         `json:"description"`
	IdempotencyKey *string         `json:"idempotency_key"`
	Metadata       json.RawMessage `json:"metadata,omitempty"`
	FailureReason  *string         `json:"failure_reason,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func toTransactionDTO(t *domain.Transaction) transactionDTO {
	return transactionDTO{
		ID:             t.ID,
		Type:           string(t.Type),
		Status:         string(t.Status),
		FromWalletID:   t.FromWalletID,
		ToWalletID:     t.ToWalletID,
		Amount:         t.Amount.StringFixed(domain.MoneyScale),
		Fee:            t.Fee.StringFixed(domain.MoneyScale),
		Description:    t.Description,
		IdempotencyKey: t.IdempotencyKey,
		Metadata:       t.Metadata,
		FailureReason:  t.FailureReason,
		CreatedAt:      t.CreatedAt,
	}
}

type transactionPage struct {
	Items  []transactionDTO `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type movementRequest struct {
	Amount      string          `json:"amount"`
	Description *string         `json:"description"`
	Metadata    json.RawMessage `json:"metadata"`
}

func (r movementRequest) parse() (decimal.Decimal, []FieldError) {
	var errs []FieldError
	amount, err := parseMoney(r.Amount)
	if err != nil {
		errs = append(errs, FieldError{Field: "amount", Message: err.Error()})
	}
	if r.Description != nil && len(*r.Description) > 500 {
		errs = append(errs, FieldError{Field: "description", Message: "must be at most 500 characters"})
	}
	return amount, errs
}

type transferRequest struct {
	movementRequest
	ToWalletID string `json:"to_wallet_id"`
	Fee        string `json:"fee"`
}

func (r transferRequest) parse() (uuid.UUID, decimal.Decimal, decimal.Decimal, []FieldError) {
	amount, errs := r.movementRequest.parse()

	to, err := uuid.Parse(r.ToWalletID)
	if err != nil {
		errs = append(errs, FieldError{Field: "to_wallet_id", Message: "must be a valid UUID"})
	}

	fee := decimal.Zero
	if r.Fee != "" {
		fee, err = decimal.NewFromString(r.Fee)
		if err != nil || fee.IsNegative() || !domain.WithinMoneyRange(fee) {
			errs = append(errs, FieldError{Field: "fee", Message: "must be a non-negative decimal up to 9999999999999999.9999 with at most 4 decimal places"})
		}
	}
	return to, amount, fee, errs
}

type moneyError string

func (e moneyError) Error() string { return string(e) }

// parseMoney accepts a positive decimal string with at most four fractional digits.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, moneyError("required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, moneyError("must be a decimal string")
	}
	if !d.IsPositive() {
		return decimal.Zero, moneyError("must be greater than zero")
	}
	if !d.Equal(d.Round(domain.MoneyScale)) {
		return decimal.Zero, moneyError("must have at most 4 decimal places")
	}
	if d.GreaterThan(domain.MaxMoney) {
		return decimal.Zero, moneyError("must not exceed 9999999999999999.9999")
	}
	return d, nil
}

func (h *WalletHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, appErr := currentUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	wallet, err := h.ledger.GetUserWallet(r.Context(), userID)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to get wallet", "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusOK, toWalletDTO(wallet))
}

func (h *WalletHandler) Transactions(w http.ResponseWriter, r *http.Request) {
	userID, appErr := currentUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	limit, offset, fields := pagination(r)
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wallet, err := h.ledger.GetUserWallet(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	txns, total, err := h.ledger.ListTransactions(r.Context(), wallet.ID, limit, offset)
	if err != nil {
		logging.FromContext(r.Context()).Error("failed to list transactions", "error", err)
		RespondDomainError(w, err)
		return
	}

	items := make([]transactionDTO, len(txns))
	for i := range txns {
		items[i] = toTransactionDTO(&txns[i])
	}

	RespondSuccess(w, http.StatusOK, transactionPage{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, func(ctx context.Context, wallet *domain.Wallet, req movementRequest, amount decimal.Decimal) (*domain.Transaction, error) {
		return h.ledger.Deposit(ctx, ledger.DepositRequest{
			WalletID:       wallet.ID,
			Amount:         amount,
			RequestOptions: requestOptions(r, req),
		})
	})
}

func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, func(ctx context.Context, wallet *domain.Wallet, req movementRequest, amount decimal.Decimal) (*domain.Transaction, error) {
		return h.ledger.Withdraw(ctx, ledger.WithdrawRequest{
			WalletID:       wallet.ID,
			Amount:         amount,
			RequestOptions: requestOptions(r, req),
		})
	})
}

type moveFunc func(ctx context.Context, wallet *domain.Wallet, req movementRequest, amount decimal.Decimal) (*domain.Transaction, error)

func (h *WalletHandler) move(w http.ResponseWriter, r *http.Request, do moveFunc) {
	userID, appErr := currentUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req movementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	amount, fields := req.parse()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wallet, err := h.ledger.GetUserWallet(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	txn, err := do(r.Context(), wallet, req, amount)
	if err != nil {
		logging.FromContext(r.Context()).Warn("wallet operation rejected", "wallet_id", wallet.ID, "error", err)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, appErr := currentUser(r)
	if appErr != nil {
		RespondAppError(w, appErr, nil)
		return
	}

	var req transferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}
	to, amount, fee, fields := req.parse()
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	wallet, err := h.ledger.GetUserWallet(r.Context(), userID)
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	txn, err := h.ledger.Transfer(r.Context(), ledger.TransferRequest{
		FromWalletID:   wallet.ID,
		ToWalletID:     to,
		Amount:         amount,
		Fee:            fee,
		RequestOptions: requestOptions(r, req.movementRequest),
	})
	if err != nil {
		logging.FromContext(r.Context()).Warn("transfer rejected",
			"from_wallet_id", wallet.ID,
			"to_wallet_id", to,
			"error", err,
		)
		RespondDomainError(w, err)
		return
	}

	RespondSuccess(w, http.StatusCreated, toTransactionDTO(txn))
}

// IdempotencyKeyHeader is validated by middleware before it reaches a handler.
const IdempotencyKeyHeader = "Idempotency-Key"

func requestOptions(r *http.Request, req movementRequest) ledger.RequestOptions {
	var key *string
	if v := r.Header.Get(IdempotencyKeyHeader); v != "" {
		key = &v
	}
	return ledger.RequestOptions{
		IdempotencyKey: key,
		Description:    req.Description,
		Metadata:       req.Metadata,
	}
}
