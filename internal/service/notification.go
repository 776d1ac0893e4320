package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/josh-kwaku/wallet-ledger/internal/domain"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type notificationRepo interface {
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) error
	ArchiveReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type NotificationService struct {
	notifications notificationRepo
}

func NewNotificationService(notifications notificationRepo) *NotificationService {
	return &NotificationService{notifications: notifications}
}

func (s *NotificationService) List(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = defaultNotificationLimit
	}
	if limit > maxNotificationLimit {
		limit = maxNotificationLimit
	}
	if offset < 0 {
		offset = 0
	}
	list, err := s.notifications.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("List: %w", err)
	}
	return list, nil
}

// MarkRead marks one of the user's notifications as read. Notifications owned
// by someone else report ErrNotFound.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if err := s.notifications.MarkRead(ctx, notificationID, userID, time.Now().UTC()); err != nil {
		return fmt.Errorf("MarkRead: %w", err)
	}
	return nil
}

// NotificationArchiver periodically archives read notifications older than
// the retention window.
type NotificationArchiver struct {
	notifications notificationRepo
	logger        *slog.Logger
	interval      time.Duration
	retention     time.Duration
	now           func() time.Time
}

func NewNotificationArchiver(
	notifications notificationRepo,
	logger *slog.Logger,
	interval time.Duration,
	retention time.Duration,
) *NotificationArchiver {
	return &NotificationArchiver{
		notifications: notifications,
		logger:        logger,
		interval:      interval,
		retention:     retention,
		now:           time.Now,
	}
}

func (a *NotificationArchiver) Start(ctx context.Context) {
	a.logger.Info("notification archiver started", "interval", a.interval, "retention", a.retention)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("notification archiver stopped")
			return
		case <-ticker.C:
			a.sweep(ctx)
		}
	}
}

func (a *NotificationArchiver) sweep(ctx context.Context) {
	cutoff := a.now().UTC().Add(-a.retention)
	n, err := a.notifications.ArchiveReadBefore(ctx, cutoff)
	if err != nil {
		a.logger.Error("failed to archive notifications", "error", err)
		return
	}
	if n > 0 {
		a.logger.Info("notifications archived", "count", n, "cutoff", cutoff)
	}
}
