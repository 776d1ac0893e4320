package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
	"github.com/josh-kwaku/wallet-ledger/internal/uow"
)

const notificationColumns = `id, user_id, type, status, title, message, metadata, read_at, created_at, updated_at`

type NotificationRepository struct {
	db *sql.DB
}

func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, h *uow.Handle, n *domain.Notification) error {
	tx, err := h.Tx()
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	metadata := "{}"
	if len(n.Metadata) > 0 {
		metadata = string(n.Metadata)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO notifications (`+notificationColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		n.ID, n.UserID, n.Type, n.Status, n.Title, n.Message, metadata, n.ReadAt, n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

// ListByUser returns a user's notifications newest first, excluding archived ones.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+notificationColumns+` FROM notifications
		WHERE user_id = $1 AND status <> 'ARCHIVED'
		ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`,
		userID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("ListByUser: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("ListByUser: scan: %w", err)
		}
		out = append(out, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ListByUser: rows: %w", err)
	}
	return out, nil
}

// MarkRead is a no-op for notifications that are already read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'READ', read_at = COALESCE(read_at, $1), updated_at = now()
		WHERE id = $2 AND user_id = $3 AND status IN ('UNREAD', 'READ')`,
		at, id, userID,
	)
	if err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("MarkRead: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("MarkRead: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *NotificationRepository) ArchiveReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'ARCHIVED', updated_at = now()
		WHERE status = 'READ' AND read_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("ArchiveReadBefore: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("ArchiveReadBefore: rows affected: %w", err)
	}
	return n, nil
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var metadata []byte
	err := s.Scan(
		&n.ID, &n.UserID, &n.Type, &n.Status, &n.Title, &n.Message,
		&metadata, &n.ReadAt, &n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		n.Metadata = metadata
	}
	return &n, nil
}
