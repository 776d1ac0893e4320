package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

type transactionNotice struct {
	TransactionID uuid.UUID `json:"transaction_id"`
	WalletID      uuid.UUID `json:"wallet_id"`
	Type          string    `json:"type"`
	Amount        string    `json:"amount"`
	Balance       string    `json:"balance"`
}

// notify writes one TRANSACTION notification per wallet owner touched by t,
// inside the same unit of work as the balance change.
func (s *Service) notify(ctx context.Context, h *uow.Handle, t *domain.Transaction, wallets map[uuid.UUID]*domain.Wallet) error {
	if s.notifications == nil {
		return nil
	}
	now := time.Now().UTC()
	for _, id := range t.WalletIDs() {
		w, ok := wallets[id]
		if !ok {
			continue
		}
		title, message := describe(t, id)
		meta, err := json.Marshal(transactionNotice{
			TransactionID: t.ID,
			WalletID:      id,
			Type:          string(t.Type),
			Amount:        t.Amount.StringFixed(domain.MoneyScale),
			Balance:       w.Balance.StringFixed(domain.MoneyScale),
		})
		if err != nil {
			return fmt.Errorf("encode notification: %w", err)
		}
		n := &domain.Notification{
			ID:        uuid.New(),
			UserID:    w.UserID,
			Type:      domain.NotificationTypeTransaction,
			Status:    domain.NotificationStatusUnread,
			Title:     title,
			Message:   message,
			Metadata:  meta,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.notifications.Create(ctx, h, n); err != nil {
			return fmt.Errorf("create notification: %w", err)
		}
	}
	return nil
}

func describe(t *domain.Transaction, walletID uuid.UUID) (string, string) {
	amount := t.Amount.StringFixed(2)
	switch t.Type {
	case domain.TransactionTypeDeposit:
		return "Deposit received", fmt.Sprintf("%s was deposited to your wallet.", amount)
	case domain.TransactionTypeWithdrawal:
		return "Withdrawal completed", fmt.Sprintf("%s was withdrawn from your wallet.", amount)
	}
	if t.FromWalletID != nil && *t.FromWalletID == walletID {
		msg := fmt.Sprintf("You sent %s.", amount)
		if t.Fee.IsPositive() {
			msg = fmt.Sprintf("You sent %s (fee %s).", amount, t.Fee.StringFixed(2))
		}
		return "Transfer sent", msg
	}
	return "Transfer received", fmt.Sprintf("You received %s.", amount)
}
