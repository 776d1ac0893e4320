package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/logging"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

// isRecordable reports whether err is a business-rule rejection worth keeping
// an audit row for. Missing wallets cannot be referenced, so they are skipped.
func isRecordable(err error) bool {
	return errors.Is(err, domain.ErrInsufficientFunds) ||
		errors.Is(err, domain.ErrWalletInactive) ||
		errors.Is(err, domain.ErrCurrencyMismatch)
}

// recordFailure writes a FAILED transaction for a rejected movement in its own
// unit of work. The attempt that failed has already rolled back.
func (s *Service) recordFailure(ctx context.Context, m movement, cause error) {
	if !s.opts.RecordFailures {
		return
	}
	log := logging.FromContext(ctx)

	// The key stays free for a corrected retry by the caller.
	m.idempotencyKey = nil
	reason := cause.Error()

	err := s.units.New().Execute(ctx, func(ctx context.Context, h *uow.Handle) error {
		txn := m.newTransaction(time.Now().UTC())
		if err := s.transactions.Create(ctx, h, txn); err != nil {
			return err
		}
		_, err := s.transactions.UpdateStatus(ctx, h, txn.ID, domain.TransactionStatusFailed, &reason)
		return err
	})
	if err != nil {
		log.Error("failed to record failed transaction",
			"type", m.txType,
			"cause", cause,
			"error", err,
		)
	}
}
