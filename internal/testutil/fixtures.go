package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const TestPassword = "password123"

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: string(hash),
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, password_hash, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		u.ID, u.Email, u.Name, u.PasswordHash, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

func SeedTestWallet(t *testing.T, db *sql.DB, userID uuid.UUID, currency string, balance string) *domain.Wallet {
	t.Helper()

	now := time.Now().UTC()
	w := &domain.Wallet{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   decimal.RequireFromString(balance),
		Currency:  domain.Currency(currency),
		Version:   0,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := db.Exec(
		`INSERT INTO wallets (id, user_id, balance, currency, version, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Balance, w.Currency, w.Version, w.IsActive, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed test wallet %s/%s: %v", userID, currency, err)
	}
	return w
}

// SeedFundedWallet creates a user and a wallet holding balance in one step.
func SeedFundedWallet(t *testing.T, db *sql.DB, currency, balance string) *domain.Wallet {
	t.Helper()
	u := SeedTestUser(t, db, uuid.NewString()+"@test.com", "Test User")
	return SeedTestWallet(t, db, u.ID, currency, balance)
}

func DeactivateWallet(t *testing.T, db *sql.DB, walletID uuid.UUID) {
	t.Helper()
	if _, err := db.Exec(`UPDATE wallets SET is_active = FALSE WHERE id = $1`, walletID); err != nil {
		t.Fatalf("deactivate wallet %s: %v", walletID, err)
	}
}

func GetWalletBalance(t *testing.T, db *sql.DB, walletID uuid.UUID) decimal.Decimal {
	t.Helper()

	var balance decimal.Decimal
	err := db.QueryRow(`SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance)
	if err != nil {
		t.Fatalf("get wallet balance %s: %v", walletID, err)
	}
	return balance
}

func GetWalletVersion(t *testing.T, db *sql.DB, walletID uuid.UUID) int64 {
	t.Helper()

	var version int64
	err := db.QueryRow(`SELECT version FROM wallets WHERE id = $1`, walletID).Scan(&version)
	if err != nil {
		t.Fatalf("get wallet version %s: %v", walletID, err)
	}
	return version
}

func CountTransactions(t *testing.T, db *sql.DB, walletID uuid.UUID, status domain.TransactionStatus) int {
	t.Helper()

	var count int
	err := db.QueryRow(
		`SELECT COUNT(*) FROM transactions
		 WHERE (from_wallet_id = $1 OR to_wallet_id = $1) AND status = $2`,
		walletID, status,
	).Scan(&count)
	if err != nil {
		t.Fatalf("count transactions for wallet %s: %v", walletID, err)
	}
	return count
}

func CountNotifications(t *testing.T, db *sql.DB, userID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, userID).Scan(&count)
	if err != nil {
		t.Fatalf("count notifications for user %s: %v", userID, err)
	}
	return count
}

// AssertDecimal fails when got and want differ numerically, ignoring scale.
func AssertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	if !decimal.RequireFromString(want).Equal(got) {
		t.Errorf("decimal mismatch: want %s, got %s", want, got.String())
	}
}
