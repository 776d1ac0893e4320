// Package uow demarcates database transaction boundaries. A UnitOfWork runs one
// body inside one Postgres transaction and hands the body an explicit Handle;
// repositories refuse to touch the database without a live Handle.
package uow

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
)

// Handle is the transactional handle bound to one Execute call. It is
// invalidated when that call commits or rolls back.
type Handle struct {
	tx     *sql.Tx
	closed atomic.Bool
}

// Tx returns the underlying transaction, or ErrNoActiveTransaction once the
// owning unit of work has finished.
func (h *Handle) Tx() (*sql.Tx, error) {
	if h == nil || h.tx == nil || h.closed.Load() {
		return nil, domain.ErrNoActiveTransaction
	}
	return h.tx, nil
}

// Body is the work executed inside a unit of work.
type Body func(ctx context.Context, h *Handle) error

type UnitOfWork struct {
	db   *sql.DB
	opts *sql.TxOptions

	mu     sync.Mutex
	active bool
}

func New(db *sql.DB, opts *sql.TxOptions) *UnitOfWork {
	return &UnitOfWork{db: db, opts: opts}
}

// IsActive reports whether a transaction is currently open on this instance.
func (u *UnitOfWork) IsActive() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.active
}

// Execute opens a transaction, runs body with its handle and commits when body
// returns nil. Any error from body, including a recovered panic, rolls the
// transaction back and is returned unchanged.
func (u *UnitOfWork) Execute(ctx context.Context, body Body) (err error) {
	if err := u.acquire(); err != nil {
		return fmt.Errorf("Execute: %w", err)
	}
	defer u.release()

	log := logging.FromContext(ctx)

	tx, err := u.db.BeginTx(ctx, u.opts)
	if err != nil {
		return fmt.Errorf("Execute: begin tx: %w", err)
	}
	h := &Handle{tx: tx}
	log.Debug("unit of work started")

	committed := false
	defer func() {
		h.closed.Store(true)
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			log.Error("unit of work rollback failed", "error", rbErr)
		}
		if p := recover(); p != nil {
			log.Warn("unit of work rolled back after panic", "panic", p)
			panic(p)
		}
		log.Warn("unit of work rolled back", "error", err)
	}()

	if err = body(ctx, h); err != nil {
		return err
	}

	// No repository call may slip in between the body returning and commit.
	h.closed.Store(true)
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("Execute: commit: %w", err)
	}
	committed = true
	log.Debug("unit of work committed")
	return nil
}

func (u *UnitOfWork) acquire() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.active {
		return domain.ErrTransactionAlreadyActive
	}
	u.active = true
	return nil
}

func (u *UnitOfWork) release() {
	u.mu.Lock()
	u.active = false
	u.mu.Unlock()
}

// Run executes body in a fresh unit of work and returns its result.
func Run[T any](ctx context.Context, f *Factory, body func(ctx context.Context, h *Handle) (T, error)) (T, error) {
	var result T
	err := f.New().Execute(ctx, func(ctx context.Context, h *Handle) error {
		r, err := body(ctx, h)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
