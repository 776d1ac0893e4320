package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/wallet-ledger/internal/cache"
	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/repository"
	"github.com/josh-kwaku/wallet-ledger/internal/service/ledger"
	"github.com/josh-kwaku/wallet-ledger/internal/testutil"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

type serviceDeps struct {
	wallets interface {
		GetForUpdate(ctx context.Context, h *uow.Handle, id uuid.UUID) (*domain.Wallet, error)
		UpdateBalance(ctx context.Context, h *uow.Handle, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (int64, error)
		GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
		GetByUserID(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	}
	cache *cache.WalletCache
	opts  ledger.Options
}

func setupLedgerService(t *testing.T, db *sql.DB, deps serviceDeps) *ledger.Service {
	t.Helper()
	store := repository.NewLedgerStore(db)
	if deps.wallets == nil {
		deps.wallets = repository.NewWalletRepository(store)
	}
	if deps.opts.MaxRetries == 0 {
		deps.opts.MaxRetries = 3
	}
	return ledger.NewService(
		uow.NewFactory(db),
		deps.wallets,
		repository.NewTransactionRepository(store),
		repository.NewNotificationRepository(db),
		deps.cache,
		deps.opts,
	)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func key() *string {
	k := uuid.NewString()
	return &k
}

// flakyWallets fails balance writes according to fail, counting every call.
type flakyWallets struct {
	*repository.WalletRepository
	calls atomic.Int32
	fail  func(call int32) error
}

func (f *flakyWallets) UpdateBalance(ctx context.Context, h *uow.Handle, id uuid.UUID, expectedVersion int64, newBalance decimal.Decimal) (int64, error) {
	n := f.calls.Add(1)
	if err := f.fail(n); err != nil {
		return 0, err
	}
	return f.WalletRepository.UpdateBalance(ctx, h, id, expectedVersion, newBalance)
}

func TestDeposit_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	w := testutil.SeedFundedWallet(t, db, "USD", "100")

	txn, err := svc.Deposit(ctx, ledger.DepositRequest{WalletID: w.ID, Amount: dec("25.5")})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusCompleted, txn.Status)
	assert.Equal(t, domain.TransactionTypeDeposit, txn.Type)
	assert.Nil(t, txn.FromWalletID)
	require.NotNil(t, txn.ToWalletID)
	assert.Equal(t, w.ID, *txn.ToWalletID)

	testutil.AssertDecimal(t, "125.5", testutil.GetWalletBalance(t, db, w.ID))
	assert.Equal(t, int64(1), testutil.GetWalletVersion(t, db, w.ID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusCompleted))
	assert.Equal(t, 1, testutil.CountNotifications(t, db, w.UserID))
}

func TestDeposit_IdempotentReplay(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	w := testutil.SeedFundedWallet(t, db, "USD", "100")
	k := key()

	first, err := svc.Deposit(ctx, ledger.DepositRequest{
		WalletID: w.ID, Amount: dec("50"),
		RequestOptions: ledger.RequestOptions{IdempotencyKey: k},
	})
	require.NoError(t, err)

	second, err := svc.Deposit(ctx, ledger.DepositRequest{
		WalletID: w.ID, Amount: dec("50"),
		RequestOptions: ledger.RequestOptions{IdempotencyKey: k},
	})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	testutil.AssertDecimal(t, "150", testutil.GetWalletBalance(t, db, w.ID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusCompleted))
}

func TestDeposit_KeyReusedWithDifferentAmount(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	w := testutil.SeedFundedWallet(t, db, "USD", "100")
	k := key()

	_, err := svc.Deposit(ctx, ledger.DepositRequest{
		WalletID: w.ID, Amount: dec("50"),
		RequestOptions: ledger.RequestOptions{IdempotencyKey: k},
	})
	require.NoError(t, err)

	_, err = svc.Deposit(ctx, ledger.DepositRequest{
		WalletID: w.ID, Amount: dec("60"),
		RequestOptions: ledger.RequestOptions{IdempotencyKey: k},
	})
	require.ErrorIs(t, err, domain.ErrDuplicateIdempotencyKey)
	assert.NotErrorIs(t, err, domain.ErrConcurrencyExhausted)
	testutil.AssertDecimal(t, "150", testutil.GetWalletBalance(t, db, w.ID))
}

func TestDeposit_ConcurrentSameKeyAppliesOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	w := testutil.SeedFundedWallet(t, db, "USD", "100")
	k := key()

	const workers = 5
	ids := make([]uuid.UUID, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			txn, err := svc.Deposit(ctx, ledger.DepositRequest{
				WalletID: w.ID, Amount: dec("10"),
				RequestOptions: ledger.RequestOptions{IdempotencyKey: k},
			})
			errs[i] = err
			if err == nil {
				ids[i] = txn.ID
			}
		}(i)
	}
	wg.Wait()

	for i := range workers {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	testutil.AssertDecimal(t, "110", testutil.GetWalletBalance(t, db, w.ID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusCompleted))
}

func TestDeposit_WalletNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{opts: ledger.Options{RecordFailures: true}})

	_, err := svc.Deposit(context.Background(), ledger.DepositRequest{WalletID: uuid.New(), Amount: dec("10")})

	require.ErrorIs(t, err, domain.ErrNotFound)
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestDeposit_BalanceOverflowRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	w := testutil.SeedFundedWallet(t, db, "USD", "9999999999999999")

	_, err := svc.Deposit(context.Background(), ledger.DepositRequest{WalletID: w.ID, Amount: dec("1")})

	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	testutil.AssertDecimal(t, "9999999999999999", testutil.GetWalletBalance(t, db, w.ID))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusCompleted))
}

func TestWithdraw_HappyPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	w := testutil.SeedFundedWallet(t, db, "USD", "100")

	txn, err := svc.Withdraw(context.Background(), ledger.WithdrawRequest{WalletID: w.ID, Amount: dec("100")})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeWithdrawal, txn.Type)
	testutil.AssertDecimal(t, "0", testutil.GetWalletBalance(t, db, w.ID))
}

func TestWithdraw_InsufficientFundsRecordsFailure(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{opts: ledger.Options{RecordFailures: true}})
	w := testutil.SeedFundedWallet(t, db, "USD", "30")

	_, err := svc.Withdraw(context.Background(), ledger.WithdrawRequest{WalletID: w.ID, Amount: dec("50")})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	var insufficient *domain.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, w.ID, insufficient.WalletID)
	testutil.AssertDecimal(t, "30", insufficient.Balance)

	testutil.AssertDecimal(t, "30", testutil.GetWalletBalance(t, db, w.ID))
	assert.Equal(t, int64(0), testutil.GetWalletVersion(t, db, w.ID))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusCompleted))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusFailed))
	assert.Equal(t, 0, testutil.CountNotifications(t, db, w.UserID))

	var reason string
	require.NoError(t, db.QueryRow(
		`SELECT failure_reason FROM transactions WHERE from_wallet_id = $1`, w.ID).Scan(&reason))
	assert.Contains(t, reason, "insufficient funds")
}

func TestWithdraw_FailureNotRecordedWhenDisabled(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	w := testutil.SeedFundedWallet(t, db, "USD", "30")

	_, err := svc.Withdraw(context.Background(), ledger.WithdrawRequest{WalletID: w.ID, Amount: dec("50")})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.Equal(t, 0, testutil.CountTransactions(t, db, w.ID, domain.TransactionStatusFailed))
}

func TestWithdraw_InactiveWallet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	w := testutil.SeedFundedWallet(t, db, "USD", "100")
	testutil.DeactivateWallet(t, db, w.ID)

	_, err := svc.Withdraw(context.Background(), ledger.WithdrawRequest{WalletID: w.ID, Amount: dec("10")})

	require.ErrorIs(t, err, domain.ErrWalletInactive)
	testutil.AssertDecimal(t, "100", testutil.GetWalletBalance(t, db, w.ID))
}

func TestTransfer_WithFee(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	txn, err := svc.Transfer(ctx, ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("50"), Fee: dec("1"),
	})

	require.NoError(t, err)
	assert.Equal(t, domain.TransactionTypeTransfer, txn.Type)
	testutil.AssertDecimal(t, "1", txn.Fee)
	testutil.AssertDecimal(t, "49", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "50", testutil.GetWalletBalance(t, db, b.ID))
	assert.Equal(t, 1, testutil.CountNotifications(t, db, a.UserID))
	assert.Equal(t, 1, testutil.CountNotifications(t, db, b.UserID))
}

func TestTransfer_FeeCreditedToFeeWallet(t *testing.T) {
	db := testutil.SetupTestDB(t)
	feeWallet := testutil.SeedFundedWallet(t, db, "USD", "0")
	svc := setupLedgerService(t, db, serviceDeps{opts: ledger.Options{FeeWalletID: &feeWallet.ID}})
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("50"), Fee: dec("1.25"),
	})

	require.NoError(t, err)
	testutil.AssertDecimal(t, "48.75", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "50", testutil.GetWalletBalance(t, db, b.ID))
	testutil.AssertDecimal(t, "1.25", testutil.GetWalletBalance(t, db, feeWallet.ID))
}

func TestTransfer_FeeCausesInsufficientFunds(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	a := testutil.SeedFundedWallet(t, db, "USD", "50")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("50"), Fee: dec("0.01"),
	})

	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	testutil.AssertDecimal(t, "50", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "0", testutil.GetWalletBalance(t, db, b.ID))
}

func TestTransfer_CurrencyMismatch(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "EUR", "0")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("10"),
	})

	require.ErrorIs(t, err, domain.ErrCurrencyMismatch)
	testutil.AssertDecimal(t, "100", testutil.GetWalletBalance(t, db, a.ID))
}

func TestTransfer_SelfTransferRejected(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	a := testutil.SeedFundedWallet(t, db, "USD", "100")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: a.ID, Amount: dec("10"),
	})

	require.ErrorIs(t, err, domain.ErrSelfTransfer)
}

func TestTransfer_RolledBackWhenSecondWriteFails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	boom := errors.New("connection reset")
	wallets := &flakyWallets{
		WalletRepository: repository.NewWalletRepository(repository.NewLedgerStore(db)),
		fail: func(call int32) error {
			if call == 2 {
				return boom
			}
			return nil
		},
	}
	svc := setupLedgerService(t, db, serviceDeps{wallets: wallets})
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "100")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("40"),
	})

	require.ErrorIs(t, err, boom)
	testutil.AssertDecimal(t, "100", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "100", testutil.GetWalletBalance(t, db, b.ID))
	assert.Equal(t, int64(0), testutil.GetWalletVersion(t, db, a.ID))
	assert.Equal(t, int64(0), testutil.GetWalletVersion(t, db, b.ID))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, a.ID, domain.TransactionStatusPending))
	assert.Equal(t, 0, testutil.CountNotifications(t, db, a.UserID))
}

func TestTransfer_RetriesVersionConflict(t *testing.T) {
	db := testutil.SetupTestDB(t)
	wallets := &flakyWallets{
		WalletRepository: repository.NewWalletRepository(repository.NewLedgerStore(db)),
		fail: func(call int32) error {
			if call <= 2 {
				return domain.ErrVersionConflict
			}
			return nil
		},
	}
	svc := setupLedgerService(t, db, serviceDeps{wallets: wallets, opts: ledger.Options{MaxRetries: 3}})
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30"),
	})

	require.NoError(t, err)
	testutil.AssertDecimal(t, "70", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "30", testutil.GetWalletBalance(t, db, b.ID))
	assert.Equal(t, 1, testutil.CountTransactions(t, db, a.ID, domain.TransactionStatusCompleted))
}

func TestTransfer_ConcurrencyExhausted(t *testing.T) {
	db := testutil.SetupTestDB(t)
	wallets := &flakyWallets{
		WalletRepository: repository.NewWalletRepository(repository.NewLedgerStore(db)),
		fail:             func(int32) error { return domain.ErrVersionConflict },
	}
	svc := setupLedgerService(t, db, serviceDeps{
		wallets: wallets,
		opts:    ledger.Options{MaxRetries: 2, RecordFailures: true},
	})
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	_, err := svc.Transfer(context.Background(), ledger.TransferRequest{
		FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30"),
	})

	require.ErrorIs(t, err, domain.ErrConcurrencyExhausted)
	assert.NotErrorIs(t, err, domain.ErrVersionConflict)
	assert.Equal(t, int32(3), wallets.calls.Load())
	testutil.AssertDecimal(t, "100", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "0", testutil.GetWalletBalance(t, db, b.ID))
	assert.Equal(t, 0, testutil.CountTransactions(t, db, a.ID, domain.TransactionStatusFailed))
}

func TestTransfer_ConcurrentOppositeDirections(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	a := testutil.SeedFundedWallet(t, db, "USD", "1000")
	b := testutil.SeedFundedWallet(t, db, "USD", "1000")

	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, rounds*2)
	for range rounds {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferRequest{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("7")})
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferRequest{FromWalletID: b.ID, ToWalletID: a.ID, Amount: dec("3")})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	testutil.AssertDecimal(t, "920", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "1080", testutil.GetWalletBalance(t, db, b.ID))
	assert.Equal(t, int64(rounds*2), testutil.GetWalletVersion(t, db, a.ID))
}

func TestTransfer_ConcurrentOverdraft(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	const workers = 10
	var wg sync.WaitGroup
	var succeeded atomic.Int32
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, ledger.TransferRequest{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("30")})
			if err == nil {
				succeeded.Add(1)
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), succeeded.Load())
	testutil.AssertDecimal(t, "10", testutil.GetWalletBalance(t, db, a.ID))
	testutil.AssertDecimal(t, "90", testutil.GetWalletBalance(t, db, b.ID))
}

func TestLedger_TotalBalanceConserved(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()

	wallets := make([]*domain.Wallet, 4)
	for i := range wallets {
		wallets[i] = testutil.SeedFundedWallet(t, db, "USD", "250")
	}

	var wg sync.WaitGroup
	for i := range 40 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from := wallets[i%len(wallets)]
			to := wallets[(i+1+i/len(wallets))%len(wallets)]
			if from.ID == to.ID {
				return
			}
			amount := dec(fmt.Sprintf("%d.25", i%9+1))
			_, err := svc.Transfer(ctx, ledger.TransferRequest{FromWalletID: from.ID, ToWalletID: to.ID, Amount: amount})
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
			}
		}(i)
	}
	wg.Wait()

	total := decimal.Zero
	for _, w := range wallets {
		balance := testutil.GetWalletBalance(t, db, w.ID)
		assert.False(t, balance.IsNegative())
		total = total.Add(balance)
	}
	testutil.AssertDecimal(t, "1000", total)
}

func TestLedger_HistoryNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := setupLedgerService(t, db, serviceDeps{})
	ctx := context.Background()
	a := testutil.SeedFundedWallet(t, db, "USD", "100")
	b := testutil.SeedFundedWallet(t, db, "USD", "0")

	_, err := svc.Deposit(ctx, ledger.DepositRequest{WalletID: a.ID, Amount: dec("1")})
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	last, err := svc.Transfer(ctx, ledger.TransferRequest{FromWalletID: a.ID, ToWalletID: b.ID, Amount: dec("2")})
	require.NoError(t, err)

	txns, total, err := svc.ListTransactions(ctx, a.ID, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, txns, 1)
	assert.Equal(t, last.ID, txns[0].ID)

	got, err := svc.GetTransaction(ctx, last.ID)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "2", got.Amount)
}

func TestLedger_CacheInvalidatedAfterCommit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	client := testutil.SetupTestRedis(t)
	wc := cache.NewWalletCache(client, time.Minute)
	svc := setupLedgerService(t, db, serviceDeps{cache: wc})
	ctx := context.Background()
	w := testutil.SeedFundedWallet(t, db, "USD", "100")

	stale, err := svc.GetWallet(ctx, w.ID)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "100", stale.Balance)
	_, ok := wc.Get(ctx, w.ID)
	require.True(t, ok)

	_, err = svc.Deposit(ctx, ledger.DepositRequest{WalletID: w.ID, Amount: dec("5")})
	require.NoError(t, err)

	_, ok = wc.Get(ctx, w.ID)
	assert.False(t, ok)

	// A reader that loaded the row before the commit finishes its write-back late.
	wc.Set(ctx, stale)
	_, ok = wc.Get(ctx, w.ID)
	assert.False(t, ok)

	got, err := svc.GetUserWallet(ctx, w.UserID)
	require.NoError(t, err)
	testutil.AssertDecimal(t, "105", got.Balance)

	cached, ok := wc.Get(ctx, w.ID)
	require.True(t, ok)
	testutil.AssertDecimal(t, "105", cached.Balance)
	assert.Equal(t, int64(1), cached.Version)
}
