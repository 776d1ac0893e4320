package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

const maxIdempotencyKeyLen = 255

// errKeyReused marks a key replayed with different parameters. Unlike a key
// race between two identical requests, retrying cannot resolve it.
var errKeyReused = fmt.Errorf("idempotency key reused with different parameters: %w", domain.ErrDuplicateIdempotencyKey)

// movement is one requested change to the ledger.
type movement struct {
	txType         domain.TransactionType
	from           *uuid.UUID
	to             *uuid.UUID
	amount         decimal.Decimal
	fee            decimal.Decimal
	idempotencyKey *string
	description    *string
	metadata       json.RawMessage
}

func (m movement) validate() error {
	if !m.amount.IsPositive() || !domain.WithinMoneyRange(m.amount) {
		return domain.ErrInvalidAmount
	}
	if m.fee.IsNegative() || !domain.WithinMoneyRange(m.fee) {
		return domain.ErrInvalidAmount
	}
	if !domain.WithinMoneyRange(m.amount.Add(m.fee)) {
		return domain.ErrInvalidAmount
	}
	if m.txType != domain.TransactionTypeTransfer && !m.fee.IsZero() {
		return domain.ErrInvalidAmount
	}
	if (m.from != nil && *m.from == uuid.Nil) || (m.to != nil && *m.to == uuid.Nil) {
		return domain.ErrInvalidRequest
	}
	if m.from != nil && m.to != nil && *m.from == *m.to {
		return domain.ErrSelfTransfer
	}
	if m.idempotencyKey != nil && (*m.idempotencyKey == "" || len(*m.idempotencyKey) > maxIdempotencyKeyLen) {
		return domain.ErrInvalidRequest
	}
	if len(m.metadata) > 0 && !json.Valid(m.metadata) {
		return domain.ErrInvalidRequest
	}
	return nil
}

// matches reports whether a stored transaction is a replay of m.
func (m movement) matches(t *domain.Transaction) bool {
	return t.Type == m.txType &&
		sameWallet(t.FromWalletID, m.from) &&
		sameWallet(t.ToWalletID, m.to) &&
		t.Amount.Equal(m.amount) &&
		t.Fee.Equal(m.fee)
}

func sameWallet(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (m movement) newTransaction(now time.Time) *domain.Transaction {
	return &domain.Transaction{
		ID:             uuid.New(),
		FromWalletID:   m.from,
		ToWalletID:     m.to,
		Amount:         m.amount,
		Fee:            m.fee,
		Type:           m.txType,
		Status:         domain.TransactionStatusPending,
		Description:    m.description,
		IdempotencyKey: m.idempotencyKey,
		Metadata:       m.metadata,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// deltas maps every affected wallet to its signed balance change.
func (m movement) deltas(feeWallet *uuid.UUID) map[uuid.UUID]decimal.Decimal {
	d := make(map[uuid.UUID]decimal.Decimal, 3)
	if m.from != nil {
		d[*m.from] = d[*m.from].Sub(m.amount.Add(m.fee))
	}
	if m.to != nil {
		d[*m.to] = d[*m.to].Add(m.amount)
	}
	if feeWallet != nil && m.fee.IsPositive() {
		d[*feeWallet] = d[*feeWallet].Add(m.fee)
	}
	return d
}

// lockOrder sorts wallet ids ascending so that concurrent operations over the
// same wallets always acquire row locks in the same sequence.
func lockOrder(ids []uuid.UUID) []uuid.UUID {
	sorted := make([]uuid.UUID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i][:], sorted[j][:]) < 0
	})
	return sorted
}

type outcome struct {
	txn      *domain.Transaction
	wallets  map[uuid.UUID]*domain.Wallet
	replayed bool
}

// run executes m with bounded retries on optimistic-lock conflicts.
func (s *Service) run(ctx context.Context, op string, m movement) (*domain.Transaction, error) {
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log := logging.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= s.opts.MaxRetries; attempt++ {
		out, err := s.attempt(ctx, m)
		if err == nil {
			if !out.replayed {
				s.cache.Invalidate(ctx, committedWallets(out.wallets)...)
				log.Info("ledger operation completed",
					"transaction_id", out.txn.ID,
					"type", out.txn.Type,
					"from_wallet", out.txn.FromWalletID,
					"to_wallet", out.txn.ToWalletID,
					"amount", out.txn.Amount.StringFixed(domain.MoneyScale),
					"fee", out.txn.Fee.StringFixed(domain.MoneyScale),
				)
			} else {
				log.Info("ledger operation replayed",
					"transaction_id", out.txn.ID,
					"idempotency_key", *m.idempotencyKey,
				)
			}
			return out.txn, nil
		}

		if !isRetryable(err) {
			if isRecordable(err) {
				s.recordFailure(ctx, m, err)
			}
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		lastErr = err
		log.Warn("ledger operation conflicted",
			"operation", op,
			"attempt", attempt+1,
			"error", err,
		)
	}

	return nil, fmt.Errorf("%s: %w after %d attempts: %v",
		op, domain.ErrConcurrencyExhausted, s.opts.MaxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if errors.Is(err, domain.ErrVersionConflict) {
		return true
	}
	// Two identical requests racing on one key: the loser re-runs and replays the winner.
	return errors.Is(err, domain.ErrDuplicateIdempotencyKey) && !errors.Is(err, errKeyReused)
}

// attempt performs m inside one fresh unit of work.
func (s *Service) attempt(ctx context.Context, m movement) (outcome, error) {
	var out outcome
	err := s.units.New().Execute(ctx, func(ctx context.Context, h *uow.Handle) error {
		if m.idempotencyKey != nil {
			existing, err := s.transactions.GetCompletedByIdempotencyKey(ctx, h, *m.idempotencyKey)
			switch {
			case err == nil:
				if !m.matches(existing) {
					return errKeyReused
				}
				out = outcome{txn: existing, replayed: true}
				return nil
			case !errors.Is(err, domain.ErrNotFound):
				return fmt.Errorf("idempotency lookup: %w", err)
			}
		}

		txn := m.newTransaction(time.Now().UTC())
		if err := s.transactions.Create(ctx, h, txn); err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}

		wallets, err := s.applyBalances(ctx, h, m)
		if err != nil {
			return err
		}

		completed, err := s.transactions.UpdateStatus(ctx, h, txn.ID, domain.TransactionStatusCompleted, nil)
		if err != nil {
			return fmt.Errorf("complete transaction: %w", err)
		}

		if err := s.notify(ctx, h, completed, wallets); err != nil {
			return err
		}

		out = outcome{txn: completed, wallets: wallets}
		return nil
	})
	return out, err
}

// applyBalances locks every affected wallet in ascending id order, then
// writes each new balance behind a version check. Balances are read under the
// lock, never reused from an earlier read.
func (s *Service) applyBalances(ctx context.Context, h *uow.Handle, m movement) (map[uuid.UUID]*domain.Wallet, error) {
	deltas := m.deltas(s.opts.FeeWalletID)
	ids := make([]uuid.UUID, 0, len(deltas))
	for id := range deltas {
		ids = append(ids, id)
	}
	ids = lockOrder(ids)

	locked := make(map[uuid.UUID]*domain.Wallet, len(ids))
	for _, id := range ids {
		w, err := s.wallets.GetForUpdate(ctx, h, id)
		if err != nil {
			return nil, fmt.Errorf("lock wallet: %w", err)
		}
		locked[id] = w
	}

	if err := checkCurrencies(locked); err != nil {
		return nil, err
	}

	for _, id := range ids {
		w := locked[id]
		newBalance := w.Balance.Add(deltas[id])
		if newBalance.IsNegative() {
			return nil, &domain.InsufficientFundsError{
				WalletID:  id,
				Requested: deltas[id].Neg(),
				Balance:   w.Balance,
			}
		}
		if newBalance.GreaterThan(domain.MaxMoney) {
			return nil, &domain.WalletError{WalletID: id, Err: domain.ErrInvalidAmount}
		}
		version, err := s.wallets.UpdateBalance(ctx, h, id, w.Version, newBalance)
		if err != nil {
			return nil, fmt.Errorf("write balance: %w", err)
		}
		w.Balance = newBalance
		w.Version = version
	}
	return locked, nil
}

func checkCurrencies(wallets map[uuid.UUID]*domain.Wallet) error {
	var currency domain.Currency
	for _, w := range wallets {
		if currency == "" {
			currency = w.Currency
			continue
		}
		if w.Currency != currency {
			return &domain.WalletError{WalletID: w.ID, Err: domain.ErrCurrencyMismatch}
		}
	}
	return nil
}

func committedWallets(wallets map[uuid.UUID]*domain.Wallet) []*domain.Wallet {
	out := make([]*domain.Wallet, 0, len(wallets))
	for _, w := range wallets {
		out = append(out, w)
	}
	return out
}
