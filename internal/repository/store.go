package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const walletColumns = `id, user_id, balance, currency, version, is_active, created_at, updated_at`

const transactionColumns = `id, from_wallet_id, to_wallet_id, amount, fee, type, status,
	description, idempotency_key, metadata, failure_reason, created_at, updated_at`

// LedgerStore owns the SQL for wallet and transaction rows. Mutating methods
// take the caller's *sql.Tx; the store never opens transactions itself.
type LedgerStore struct {
	db *sql.DB
}

func NewLedgerStore(db *sql.DB) *LedgerStore {
	return &LedgerStore{db: db}
}

// ReadWalletForUpdate locks the wallet row until tx ends.
func (s *LedgerStore) ReadWalletForUpdate(ctx context.Context, tx *sql.Tx, walletID uuid.UUID) (*domain.Wallet, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ReadWalletForUpdate: %w", &domain.WalletError{WalletID: walletID, Err: domain.ErrNotFound})
		}
		return nil, fmt.Errorf("ReadWalletForUpdate: %w", err)
	}
	if !w.IsActive {
		return nil, fmt.Errorf("ReadWalletForUpdate: %w", &domain.WalletError{WalletID: walletID, Err: domain.ErrWalletInactive})
	}
	return w, nil
}

// WriteWalletBalance sets the balance and bumps the version, provided nobody
// else committed a change since expectedVersion was read. It returns the new version.
func (s *LedgerStore) WriteWalletBalance(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (int64, error) {
	var newVersion int64
	err := tx.QueryRowContext(ctx,
		`UPDATE wallets SET balance = $1, version = version + 1, updated_at = now()
		WHERE id = $2 AND version = $3
		RETURNING version`,
		newBalance, walletID, expectedVersion,
	).Scan(&newVersion)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("WriteWalletBalance: %w", &domain.WalletError{WalletID: walletID, Err: domain.ErrVersionConflict})
		}
		if pqCode(err) == pqCheckViolation {
			return 0, fmt.Errorf("WriteWalletBalance: %w", &domain.WalletError{WalletID: walletID, Err: domain.ErrInsufficientFunds})
		}
		if pqCode(err) == pqNumericOverflow {
			return 0, fmt.Errorf("WriteWalletBalance: %w", &domain.WalletError{WalletID: walletID, Err: domain.ErrInvalidAmount})
		}
		return 0, fmt.Errorf("WriteWalletBalance: %w", err)
	}
	return newVersion, nil
}

func (s *LedgerStore) InsertWallet(ctx context.Context, tx *sql.Tx, w *domain.Wallet) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO wallets (`+walletColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Balance, w.Currency, w.Version, w.IsActive, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return fmt.Errorf("InsertWallet: user: %w", domain.ErrNotFound)
		}
		return fmt.Errorf("InsertWallet: %w", err)
	}
	return nil
}

// InsertTransaction stores t as PENDING. A key already used by a COMPLETED
// transaction is rejected; FAILED or CANCELLED rows do not reserve their key.
func (s *LedgerStore) InsertTransaction(ctx context.Context, tx *sql.Tx, t *domain.Transaction) error {
	if err := t.ValidateShape(); err != nil {
		return fmt.Errorf("InsertTransaction: %w", err)
	}

	if t.IdempotencyKey != nil {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM transactions WHERE idempotency_key = $1 AND status = 'COMPLETED')`,
			*t.IdempotencyKey,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("InsertTransaction: check key: %w", err)
		}
		if exists {
			return fmt.Errorf("InsertTransaction: %w", domain.ErrDuplicateIdempotencyKey)
		}
	}

	t.Status = domain.TransactionStatusPending
	t.FailureReason = nil
	metadata := "{}"
	if len(t.Metadata) > 0 {
		metadata = string(t.Metadata)
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.FromWalletID, t.ToWalletID, t.Amount, t.Fee, t.Type, t.Status,
		t.Description, t.IdempotencyKey, metadata, t.FailureReason, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return fmt.Errorf("InsertTransaction: wallet: %w", domain.ErrNotFound)
		}
		if pqCode(err) == pqNumericOverflow {
			return fmt.Errorf("InsertTransaction: %w", domain.ErrInvalidAmount)
		}
		return fmt.Errorf("InsertTransaction: %w", err)
	}
	return nil
}

// UpdateTransactionStatus moves a PENDING transaction to a terminal status.
// failureReason is stored only for FAILED.
func (s *LedgerStore) UpdateTransactionStatus(ctx context.Context, tx *sql.Tx, id uuid.UUID, status domain.TransactionStatus, failureReason *string) (*domain.Transaction, error) {
	if !domain.TransactionStatusPending.CanTransitionTo(status) {
		return nil, fmt.Errorf("UpdateTransactionStatus: to %s: %w", status, domain.ErrInvalidTransition)
	}
	if status != domain.TransactionStatusFailed {
		failureReason = nil
	}

	row := tx.QueryRowContext(ctx,
		`UPDATE transactions SET status = $1, failure_reason = $2, updated_at = now()
		WHERE id = $3 AND status = 'PENDING'
		RETURNING `+transactionColumns,
		status, failureReason, id,
	)
	t, err := scanTransaction(row)
	if err == nil {
		return t, nil
	}
	if isUniqueViolation(err, "transactions_idempotency_key_completed") {
		return nil, fmt.Errorf("UpdateTransactionStatus: %w", domain.ErrDuplicateIdempotencyKey)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("UpdateTransactionStatus: %w", err)
	}

	var current domain.TransactionStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM transactions WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("UpdateTransactionStatus: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("UpdateTransactionStatus: current status: %w", err)
	}
	return nil, fmt.Errorf("UpdateTransactionStatus: %s to %s: %w", current, status, domain.ErrInvalidTransition)
}

func (s *LedgerStore) FindCompletedByIdempotencyKey(ctx context.Context, tx *sql.Tx, key string) (*domain.Transaction, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE idempotency_key = $1 AND status = 'COMPLETED'`, key,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("FindCompletedByIdempotencyKey: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("FindCompletedByIdempotencyKey: %w", err)
	}
	return t, nil
}

func (s *LedgerStore) GetWallet(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetWallet: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetWallet: %w", err)
	}
	return w, nil
}

func (s *LedgerStore) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID,
	)
	w, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetWalletByUserID: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetWalletByUserID: %w", err)
	}
	return w, nil
}

func (s *LedgerStore) GetTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id,
	)
	t, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("GetTransaction: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	return t, nil
}

func (s *LedgerStore) ListTransactionsByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE from_wallet_id = $1 OR to_wallet_id = $1`, walletID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactionsByWallet: count: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("ListTransactionsByWallet: %w", err)
	}
	defer rows.Close()

	var txns []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListTransactionsByWallet: scan: %w", err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ListTransactionsByWallet: rows: %w", err)
	}
	return txns, total, nil
}

func scanWallet(s scanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.Scan(
		&w.ID, &w.UserID, &w.Balance, &w.Currency, &w.Version,
		&w.IsActive, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var t domain.Transaction
	var fromID, toID uuid.NullUUID
	var metadata []byte

	err := s.Scan(
		&t.ID, &fromID, &toID, &t.Amount, &t.Fee, &t.Type, &t.Status,
		&t.Description, &t.IdempotencyKey, &metadata, &t.FailureReason,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if fromID.Valid {
		t.FromWalletID = &fromID.UUID
	}
	if toID.Valid {
		t.ToWalletID = &toID.UUID
	}
	if len(metadata) > 0 {
		t.Metadata = metadata
	}
	return &t, nil
}
